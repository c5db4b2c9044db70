// Audio sample types and the audio controller pair.
package webcodecs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// SampleFormat represents audio sample formats.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	SampleFormatS16                  // signed 16-bit PCM, little-endian, interleaved
)

func (f SampleFormat) String() string {
	if f == SampleFormatS16 {
		return "S16"
	}
	return "Unknown"
}

// BytesPerSample returns the size of one sample in this format.
func (f SampleFormat) BytesPerSample() int {
	if f == SampleFormatS16 {
		return 2
	}
	return 0
}

// AudioDataInit carries the construction parameters for NewAudioData.
type AudioDataInit struct {
	Format     SampleFormat
	SampleRate int
	Channels   int
	Frames     int   // samples per channel
	Timestamp  int64 // microseconds
	Data       []byte
}

// AudioData holds one run of uncompressed PCM samples plus metadata. Same
// ownership rules as VideoFrame: the bytes are an owned copy and Close
// releases them.
type AudioData struct {
	Format     SampleFormat
	SampleRate int
	Channels   int
	Frames     int   // samples per channel
	Timestamp  int64 // microseconds

	buf byteBuffer
}

// NewAudioData builds an AudioData from caller-provided samples. The bytes
// are copied. Data must cover Frames * Channels samples in the given
// format.
func NewAudioData(init AudioDataInit) (*AudioData, error) {
	if init.Format.BytesPerSample() == 0 {
		return nil, fmt.Errorf("%w: sample format %s", ErrNotSupported, init.Format)
	}
	if init.SampleRate <= 0 || init.Channels <= 0 || init.Frames <= 0 {
		return nil, fmt.Errorf("%w: invalid audio geometry", ErrData)
	}
	size := init.Frames * init.Channels * init.Format.BytesPerSample()
	if len(init.Data) < size {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrBufferTooSmall, size, len(init.Data))
	}
	return &AudioData{
		Format:     init.Format,
		SampleRate: init.SampleRate,
		Channels:   init.Channels,
		Frames:     init.Frames,
		Timestamp:  init.Timestamp,
		buf:        borrowBytes(init.Data[:size]).retain(),
	}, nil
}

// newAdoptedAudioData wraps already-owned bytes without copying.
func newAdoptedAudioData(data []byte, format SampleFormat, sampleRate, channels, frames int, timestamp int64) *AudioData {
	return &AudioData{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Frames:     frames,
		Timestamp:  timestamp,
		buf:        adoptBytes(data),
	}
}

// ByteLength returns the sample payload size in bytes, 0 once closed.
func (d *AudioData) ByteLength() int {
	return d.buf.len()
}

// CopyTo copies the samples into dst.
func (d *AudioData) CopyTo(dst []byte) error {
	if d.buf.released() {
		return fmt.Errorf("%w: audio data closed", ErrInvalidState)
	}
	if len(dst) < d.buf.len() {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrBufferTooSmall, d.buf.len(), len(dst))
	}
	copy(dst, d.buf.data)
	return nil
}

// Clone creates an independent copy.
func (d *AudioData) Clone() (*AudioData, error) {
	if d.buf.released() {
		return nil, fmt.Errorf("%w: audio data closed", ErrInvalidState)
	}
	dup := *d
	dup.buf = d.buf.clone()
	return &dup, nil
}

// Close releases the sample buffer. Idempotent.
func (d *AudioData) Close() {
	d.buf.release()
}

// Closed reports whether Close has released the buffer.
func (d *AudioData) Closed() bool {
	return d.buf.released()
}

// AudioDecoderConfig configures an audio decoder.
type AudioDecoderConfig struct {
	Codec      string // codec identifier string, e.g. "opus"
	SampleRate int    // expected sample rate, 0 when the bitstream self-describes
	Channels   int    // expected channel count, 0 when the bitstream self-describes
}

// AudioDecoderSupport is the result of IsAudioDecoderConfigSupported.
type AudioDecoderSupport struct {
	Supported bool
	Config    AudioDecoderConfig
}

// IsAudioDecoderConfigSupported checks a configuration against the process
// default audio engine without opening a session.
func IsAudioDecoderConfigSupported(config AudioDecoderConfig) AudioDecoderSupport {
	if config.SampleRate < 0 || config.Channels < 0 {
		return AudioDecoderSupport{Supported: false, Config: config}
	}
	info, err := ParseAudioCodecString(config.Codec)
	engine := DefaultAudioEngine()
	return AudioDecoderSupport{
		Supported: err == nil && engine != nil && engine.SupportsDecode(info.Codec),
		Config:    config,
	}
}

// AudioDecoderInit carries the construction parameters for NewAudioDecoder.
type AudioDecoderInit struct {
	// Output receives every decoded sample run, in submission order.
	// Required.
	Output func(data *AudioData)
	// Error receives codec errors routed through the asynchronous path.
	// Required.
	Error func(err error)
	// Engine overrides the process default audio engine. Nil means
	// DefaultAudioEngine() at configure time.
	Engine AudioEngine
}

// pendingAudioChunk is one queued decode operation.
type pendingAudioChunk struct {
	chunk *EncodedAudioChunk
}

// AudioDecoder turns compressed audio chunks into PCM sample runs. Same
// queueing and callback discipline as VideoDecoder.
type AudioDecoder struct {
	output         func(data *AudioData)
	onError        func(err error)
	engineOverride AudioEngine

	mu          sync.Mutex
	state       CodecState
	config      AudioDecoderConfig
	session     AudioDecoderSession
	pending     []pendingAudioChunk
	flushing    bool
	generation  uint64
	keyRequired bool
}

// NewAudioDecoder creates an unconfigured decoder. Both callbacks are
// required.
func NewAudioDecoder(init AudioDecoderInit) (*AudioDecoder, error) {
	if init.Output == nil || init.Error == nil {
		return nil, fmt.Errorf("%w: output and error callbacks are required", ErrData)
	}
	return &AudioDecoder{
		output:         init.Output,
		onError:        init.Error,
		engineOverride: init.Engine,
	}, nil
}

// State returns the controller state.
func (d *AudioDecoder) State() CodecState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// DecodeQueueSize returns the number of queued chunks not yet processed.
func (d *AudioDecoder) DecodeQueueSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *AudioDecoder) engine() AudioEngine {
	if d.engineOverride != nil {
		return d.engineOverride
	}
	return DefaultAudioEngine()
}

// Configure binds the decoder to a codec and opens an engine session. Same
// synchronous/asynchronous error split as the video controllers.
func (d *AudioDecoder) Configure(config AudioDecoderConfig) error {
	d.mu.Lock()
	if d.state == CodecStateClosed {
		d.mu.Unlock()
		return fmt.Errorf("%w: configure on closed decoder", ErrInvalidState)
	}
	if config.SampleRate < 0 || config.Channels < 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: negative decoder configuration value", ErrData)
	}

	engine := d.engine()
	info, parseErr := ParseAudioCodecString(config.Codec)
	supported := parseErr == nil && engine != nil && engine.SupportsDecode(info.Codec)
	old := d.session
	d.session = nil
	d.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if !supported {
		d.fail(fmt.Errorf("%w: codec %q", ErrNotSupported, config.Codec))
		return nil
	}

	session, err := engine.OpenDecoder(config)
	if err != nil {
		d.fail(fmt.Errorf("%w: codec %q: %v", ErrNotSupported, config.Codec, err))
		return nil
	}

	d.mu.Lock()
	if d.state == CodecStateClosed {
		d.mu.Unlock()
		_ = session.Close()
		return fmt.Errorf("%w: configure on closed decoder", ErrInvalidState)
	}
	d.generation++
	d.session = session
	d.config = config
	d.state = CodecStateConfigured
	d.keyRequired = true
	d.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"component":   "webcodecs",
		"codec":       config.Codec,
		"sample_rate": config.SampleRate,
		"channels":    config.Channels,
	}).Debug("audio decoder configured")
	return nil
}

// Decode queues one chunk for decompression. The payload is copied on
// submission. The first chunk after Configure or Reset must be marked key.
func (d *AudioDecoder) Decode(chunk *EncodedAudioChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: nil chunk", ErrData)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != CodecStateConfigured {
		return fmt.Errorf("%w: decode on %s decoder", ErrInvalidState, d.state)
	}
	if d.keyRequired && chunk.Type != ChunkTypeKey {
		return fmt.Errorf("%w: a key chunk is required after configure or reset", ErrData)
	}
	captured, err := chunk.clone()
	if err != nil {
		return err
	}
	if chunk.Type == ChunkTypeKey {
		d.keyRequired = false
	}
	d.pending = append(d.pending, pendingAudioChunk{chunk: captured})
	return nil
}

// Flush drains the queue in FIFO order and returns once it is empty. Same
// single-flight, abort, and error rules as the video controllers.
func (d *AudioDecoder) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.state != CodecStateConfigured {
		d.mu.Unlock()
		return fmt.Errorf("%w: flush on %s decoder", ErrInvalidState, d.state)
	}
	if d.flushing {
		d.mu.Unlock()
		return fmt.Errorf("%w: flush already in progress", ErrInvalidState)
	}
	d.flushing = true
	gen := d.generation
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.flushing = false
		d.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d.mu.Lock()
		if d.generation != gen || d.state != CodecStateConfigured {
			d.mu.Unlock()
			return nil
		}
		if len(d.pending) == 0 {
			d.mu.Unlock()
			return nil
		}
		op := d.pending[0]
		session := d.session
		codec := d.config.Codec
		d.mu.Unlock()

		outputs, err := session.Decode(op.chunk)

		if d.flushAborted(gen) {
			return nil
		}

		if err != nil {
			lost := errors.Is(err, ErrSessionLost)
			if !lost {
				err = fmt.Errorf("%w: %v", ErrOperation, err)
			}
			d.onError(err)
			if !d.completeHead(gen) {
				return nil
			}
			op.chunk.Close()
			if lost {
				logrus.WithFields(logrus.Fields{
					"component": "webcodecs",
					"codec":     codec,
				}).WithError(err).Error("audio decoder session lost")
				d.drainAs(err)
				d.Close()
				return nil
			}
			continue
		}

		for _, data := range outputs {
			d.output(data)
		}
		if !d.completeHead(gen) {
			return nil
		}
		op.chunk.Close()
	}
}

func (d *AudioDecoder) flushAborted(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation != gen
}

func (d *AudioDecoder) completeHead(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation != gen {
		return false
	}
	d.pending = d.pending[1:]
	return true
}

func (d *AudioDecoder) drainAs(err error) {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		op := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()

		op.chunk.Close()
		d.onError(err)
	}
}

// Reset returns the decoder to unconfigured, dropping queued chunks without
// producing outputs for them.
func (d *AudioDecoder) Reset() error {
	d.mu.Lock()
	if d.state == CodecStateClosed {
		d.mu.Unlock()
		return fmt.Errorf("%w: reset on closed decoder", ErrInvalidState)
	}
	d.generation++
	dropped := d.pending
	d.pending = nil
	session := d.session
	d.session = nil
	d.state = CodecStateUnconfigured
	d.keyRequired = true
	d.mu.Unlock()

	for _, op := range dropped {
		op.chunk.Close()
	}
	if session != nil {
		_ = session.Close()
	}
	return nil
}

// Close releases the decoder and its session. Idempotent.
func (d *AudioDecoder) Close() {
	d.mu.Lock()
	if d.state == CodecStateClosed {
		d.mu.Unlock()
		return
	}
	d.generation++
	dropped := d.pending
	d.pending = nil
	session := d.session
	d.session = nil
	d.state = CodecStateClosed
	d.mu.Unlock()

	for _, op := range dropped {
		op.chunk.Close()
	}
	if session != nil {
		_ = session.Close()
	}
}

// fail transitions to closed and reports err on the error callback.
func (d *AudioDecoder) fail(err error) {
	d.mu.Lock()
	d.generation++
	dropped := d.pending
	d.pending = nil
	session := d.session
	d.session = nil
	d.state = CodecStateClosed
	d.mu.Unlock()

	for _, op := range dropped {
		op.chunk.Close()
	}
	if session != nil {
		_ = session.Close()
	}
	d.onError(err)
}

// AudioEncoderConfig configures an audio encoder.
type AudioEncoderConfig struct {
	Codec      string // codec identifier string
	SampleRate int
	Channels   int
	Bitrate    int // target bitrate in bits per second
}

// AudioEncoderInit carries the construction parameters for NewAudioEncoder.
type AudioEncoderInit struct {
	Output func(chunk *EncodedAudioChunk)
	Error  func(err error)
}

// AudioEncoder is the encode-side twin of AudioDecoder. No audio encode
// engine ships yet, so Configure always reports ErrNotSupported through the
// error callback and closes the controller.
type AudioEncoder struct {
	output  func(chunk *EncodedAudioChunk)
	onError func(err error)

	mu    sync.Mutex
	state CodecState
}

// NewAudioEncoder creates an unconfigured encoder. Both callbacks are
// required.
func NewAudioEncoder(init AudioEncoderInit) (*AudioEncoder, error) {
	if init.Output == nil || init.Error == nil {
		return nil, fmt.Errorf("%w: output and error callbacks are required", ErrData)
	}
	return &AudioEncoder{output: init.Output, onError: init.Error}, nil
}

// State returns the controller state.
func (e *AudioEncoder) State() CodecState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// EncodeQueueSize returns 0; nothing can be queued on an unconfigurable
// encoder.
func (e *AudioEncoder) EncodeQueueSize() int {
	return 0
}

// Configure reports ErrNotSupported on the error callback and closes the
// encoder.
func (e *AudioEncoder) Configure(config AudioEncoderConfig) error {
	e.mu.Lock()
	if e.state == CodecStateClosed {
		e.mu.Unlock()
		return fmt.Errorf("%w: configure on closed encoder", ErrInvalidState)
	}
	e.state = CodecStateClosed
	e.mu.Unlock()

	e.onError(fmt.Errorf("%w: audio encoding has no engine, codec %q", ErrNotSupported, config.Codec))
	return nil
}

// Encode always fails; the encoder can never reach configured.
func (e *AudioEncoder) Encode(data *AudioData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Errorf("%w: encode on %s encoder", ErrInvalidState, e.state)
}

// Flush always fails; the encoder can never reach configured.
func (e *AudioEncoder) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Errorf("%w: flush on %s encoder", ErrInvalidState, e.state)
}

// Reset returns the encoder to unconfigured.
func (e *AudioEncoder) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == CodecStateClosed {
		return fmt.Errorf("%w: reset on closed encoder", ErrInvalidState)
	}
	e.state = CodecStateUnconfigured
	return nil
}

// Close releases the encoder. Idempotent.
func (e *AudioEncoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = CodecStateClosed
}
