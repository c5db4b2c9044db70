// Opus audio engine backed by the pure Go pion/opus decoder.
package webcodecs

import (
	"fmt"
	"sync"

	"github.com/pion/opus"
)

// opusDecodeBufferSize covers the largest PCM run one Opus packet can
// produce at 48 kHz stereo S16.
const opusDecodeBufferSize = 1920 * 2

// opusEngine is the built-in AudioEngine. Being pure Go it needs no native
// library and installs itself unconditionally at init.
type opusEngine struct{}

func (opusEngine) Name() string { return "pion-opus" }

func (opusEngine) SupportsDecode(codec AudioCodec) bool {
	return codec == AudioCodecOpus
}

func (opusEngine) OpenDecoder(config AudioDecoderConfig) (AudioDecoderSession, error) {
	info, err := ParseAudioCodecString(config.Codec)
	if err != nil {
		return nil, err
	}
	if info.Codec != AudioCodecOpus {
		return nil, fmt.Errorf("%w: codec %q", ErrNotSupported, config.Codec)
	}
	decoder := opus.NewDecoder()
	return &opusDecoderSession{decoder: &decoder}, nil
}

// opusDecoderSession decodes one Opus stream. The decoder carries
// inter-packet state, so calls are serialized.
type opusDecoderSession struct {
	mu      sync.Mutex
	decoder *opus.Decoder
	scratch []byte
	closed  bool
}

func (s *opusDecoderSession) Decode(chunk *EncodedAudioChunk) ([]*AudioData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionLost
	}
	data := chunk.bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("empty chunk payload")
	}
	if s.scratch == nil {
		s.scratch = make([]byte, opusDecodeBufferSize)
	}

	bandwidth, isStereo, err := s.decoder.Decode(data, s.scratch)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}

	channels := 1
	if isStereo {
		channels = 2
	}
	sampleRate := int(bandwidth.SampleRate())
	frames := len(s.scratch) / (channels * 2)

	pcm := make([]byte, len(s.scratch))
	copy(pcm, s.scratch)
	out := newAdoptedAudioData(pcm, SampleFormatS16, sampleRate, channels, frames, chunk.Timestamp)
	return []*AudioData{out}, nil
}

func (s *opusDecoderSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func init() {
	SetDefaultAudioEngine(opusEngine{})
}
