// Engine test doubles shared by the controller tests.
package webcodecs

import "sync"

// fakeEncoderSession implements VideoEncoderSession. Without an encodeFn it
// echoes the frame pixels back as a single chunk, key or delta per the flag.
type fakeEncoderSession struct {
	config VideoEncoderConfig

	mu       sync.Mutex
	encodeFn func(frame *VideoFrame, forceKeyframe bool) ([]*EncodedVideoChunk, error)
	calls    int
	closed   bool
}

func (s *fakeEncoderSession) Encode(frame *VideoFrame, forceKeyframe bool) ([]*EncodedVideoChunk, error) {
	s.mu.Lock()
	s.calls++
	fn := s.encodeFn
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrSessionLost
	}
	if fn != nil {
		return fn(frame, forceKeyframe)
	}
	typ := ChunkTypeDelta
	if forceKeyframe {
		typ = ChunkTypeKey
	}
	data := make([]byte, len(frame.pixels()))
	copy(data, frame.pixels())
	return []*EncodedVideoChunk{newAdoptedVideoChunk(data, typ, frame.Timestamp, frame.Duration)}, nil
}

func (s *fakeEncoderSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeEncoderSession) setEncodeFn(fn func(*VideoFrame, bool) ([]*EncodedVideoChunk, error)) {
	s.mu.Lock()
	s.encodeFn = fn
	s.mu.Unlock()
}

func (s *fakeEncoderSession) encodeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeEncoderSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeDecoderSession implements VideoDecoderSession. Without a decodeFn it
// produces one I420 frame per chunk at the configured geometry, payload
// copied into the Y plane, timing carried over.
type fakeDecoderSession struct {
	config VideoDecoderConfig

	mu       sync.Mutex
	decodeFn func(chunk *EncodedVideoChunk) ([]*VideoFrame, error)
	calls    int
	closed   bool
}

func (s *fakeDecoderSession) Decode(chunk *EncodedVideoChunk) ([]*VideoFrame, error) {
	s.mu.Lock()
	s.calls++
	fn := s.decodeFn
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrSessionLost
	}
	if fn != nil {
		return fn(chunk)
	}
	w, h := s.config.CodedWidth, s.config.CodedHeight
	if w == 0 {
		w = 16
	}
	if h == 0 {
		h = 16
	}
	size, err := allocationSize(PixelFormatI420, w, h)
	if err != nil {
		return nil, err
	}
	data := make([]byte, size)
	copy(data, chunk.bytes())
	return []*VideoFrame{newAdoptedFrame(data, VideoFrameInit{
		Format:      PixelFormatI420,
		CodedWidth:  w,
		CodedHeight: h,
		Timestamp:   chunk.Timestamp,
		Duration:    chunk.Duration,
	})}, nil
}

func (s *fakeDecoderSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeDecoderSession) setDecodeFn(fn func(*EncodedVideoChunk) ([]*VideoFrame, error)) {
	s.mu.Lock()
	s.decodeFn = fn
	s.mu.Unlock()
}

func (s *fakeDecoderSession) decodeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeDecoderSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeEngine implements CodecEngine. The zero value supports every codec and
// opens echo sessions; tests tune it through the exported-in-test fields.
type fakeEngine struct {
	name          string
	unsupported   map[VideoCodec]bool
	openEncodeErr error
	openDecodeErr error
	encodeFn      func(*VideoFrame, bool) ([]*EncodedVideoChunk, error)
	decodeFn      func(*EncodedVideoChunk) ([]*VideoFrame, error)

	mu          sync.Mutex
	lastEncoder *fakeEncoderSession
	lastDecoder *fakeDecoderSession
	encodeOpens int
	decodeOpens int
}

func (e *fakeEngine) Name() string {
	if e.name == "" {
		return "fake"
	}
	return e.name
}

func (e *fakeEngine) SupportsVideoEncode(codec VideoCodec) bool {
	return !e.unsupported[codec]
}

func (e *fakeEngine) SupportsVideoDecode(codec VideoCodec) bool {
	return !e.unsupported[codec]
}

func (e *fakeEngine) OpenVideoEncoder(config VideoEncoderConfig) (VideoEncoderSession, error) {
	if e.openEncodeErr != nil {
		return nil, e.openEncodeErr
	}
	session := &fakeEncoderSession{config: config, encodeFn: e.encodeFn}
	e.mu.Lock()
	e.lastEncoder = session
	e.encodeOpens++
	e.mu.Unlock()
	return session, nil
}

func (e *fakeEngine) OpenVideoDecoder(config VideoDecoderConfig) (VideoDecoderSession, error) {
	if e.openDecodeErr != nil {
		return nil, e.openDecodeErr
	}
	session := &fakeDecoderSession{config: config, decodeFn: e.decodeFn}
	e.mu.Lock()
	e.lastDecoder = session
	e.decodeOpens++
	e.mu.Unlock()
	return session, nil
}

func (e *fakeEngine) encoder() *fakeEncoderSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEncoder
}

func (e *fakeEngine) decoder() *fakeDecoderSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDecoder
}

// fakeAudioDecoderSession implements AudioDecoderSession. Without a decodeFn
// it reinterprets the payload as mono 48kHz S16 samples.
type fakeAudioDecoderSession struct {
	config AudioDecoderConfig

	mu       sync.Mutex
	decodeFn func(chunk *EncodedAudioChunk) ([]*AudioData, error)
	calls    int
	closed   bool
}

func (s *fakeAudioDecoderSession) Decode(chunk *EncodedAudioChunk) ([]*AudioData, error) {
	s.mu.Lock()
	s.calls++
	fn := s.decodeFn
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrSessionLost
	}
	if fn != nil {
		return fn(chunk)
	}
	data := make([]byte, len(chunk.bytes())/2*2)
	copy(data, chunk.bytes())
	return []*AudioData{newAdoptedAudioData(data, SampleFormatS16, 48000, 1, len(data)/2, chunk.Timestamp)}, nil
}

func (s *fakeAudioDecoderSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeAudioDecoderSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeAudioEngine implements AudioEngine over fakeAudioDecoderSession.
type fakeAudioEngine struct {
	name          string
	unsupported   map[AudioCodec]bool
	openDecodeErr error
	decodeFn      func(*EncodedAudioChunk) ([]*AudioData, error)

	mu          sync.Mutex
	lastDecoder *fakeAudioDecoderSession
}

func (e *fakeAudioEngine) Name() string {
	if e.name == "" {
		return "fake-audio"
	}
	return e.name
}

func (e *fakeAudioEngine) SupportsDecode(codec AudioCodec) bool {
	return !e.unsupported[codec]
}

func (e *fakeAudioEngine) OpenDecoder(config AudioDecoderConfig) (AudioDecoderSession, error) {
	if e.openDecodeErr != nil {
		return nil, e.openDecodeErr
	}
	session := &fakeAudioDecoderSession{config: config, decodeFn: e.decodeFn}
	e.mu.Lock()
	e.lastDecoder = session
	e.mu.Unlock()
	return session, nil
}

func (e *fakeAudioEngine) decoder() *fakeAudioDecoderSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDecoder
}
