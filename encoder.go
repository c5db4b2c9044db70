// VideoEncoder controller: configure/encode/flush/reset/close over a codec
// engine session.
package webcodecs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// VideoEncoderConfig configures a video encoder.
type VideoEncoderConfig struct {
	Codec     string  // codec identifier string, e.g. "vp8" or "vp09.00.10.08"
	Width     int     // coded frame width
	Height    int     // coded frame height
	Bitrate   int     // target bitrate in bits per second
	Framerate float64 // expected frames per second
}

// Defaults applied by Configure for zero-valued fields.
const (
	DefaultEncodeWidth   = 640
	DefaultEncodeHeight  = 480
	DefaultEncodeBitrate = 1_000_000
	DefaultEncodeFPS     = 30
)

func applyVideoEncoderDefaults(config *VideoEncoderConfig) {
	if config.Width == 0 {
		config.Width = DefaultEncodeWidth
	}
	if config.Height == 0 {
		config.Height = DefaultEncodeHeight
	}
	if config.Bitrate == 0 {
		config.Bitrate = DefaultEncodeBitrate
	}
	if config.Framerate == 0 {
		config.Framerate = DefaultEncodeFPS
	}
}

// VideoEncoderSupport is the result of IsVideoEncoderConfigSupported: the
// verdict plus the recognized configuration with defaults filled in.
type VideoEncoderSupport struct {
	Supported bool
	Config    VideoEncoderConfig
}

// IsVideoEncoderConfigSupported checks a configuration against the process
// default engine without opening a session or mutating any encoder.
func IsVideoEncoderConfigSupported(config VideoEncoderConfig) VideoEncoderSupport {
	normalized := config
	applyVideoEncoderDefaults(&normalized)

	if normalized.Width < 0 || normalized.Height < 0 || normalized.Bitrate < 0 || normalized.Framerate < 0 {
		return VideoEncoderSupport{Supported: false, Config: normalized}
	}
	info, err := ParseVideoCodecString(normalized.Codec)
	engine := DefaultEngine()
	return VideoEncoderSupport{
		Supported: err == nil && engine != nil && engine.SupportsVideoEncode(info.Codec),
		Config:    normalized,
	}
}

// EncodedVideoChunkMetadata accompanies chunks on the output callback.
// DecoderConfig is non-nil only on the first chunk produced by a newly
// configured session and carries what a decoder needs to consume the
// stream.
type EncodedVideoChunkMetadata struct {
	DecoderConfig *VideoDecoderConfig
}

// VideoEncodeOptions adjusts a single Encode call.
type VideoEncodeOptions struct {
	// KeyFrame forces the frame to be encoded as a keyframe.
	KeyFrame bool
}

// VideoEncoderInit carries the construction parameters for NewVideoEncoder.
type VideoEncoderInit struct {
	// Output receives every produced chunk, in submission order. Required.
	Output func(chunk *EncodedVideoChunk, metadata *EncodedVideoChunkMetadata)
	// Error receives codec errors routed through the asynchronous path.
	// Required.
	Error func(err error)
	// Engine overrides the process default codec engine. Nil means
	// DefaultEngine() at configure time.
	Engine CodecEngine
}

// pendingFrame is one queued encode operation. The frame is a private clone
// owned by the queue.
type pendingFrame struct {
	frame    *VideoFrame
	keyFrame bool
}

// VideoEncoder turns raw frames into compressed chunks through a configured
// codec engine session. Submission is non-blocking: Encode queues, Flush
// drains. All methods are safe for concurrent use; callbacks run on the
// goroutine that triggered them, with no internal locks held.
type VideoEncoder struct {
	output         func(chunk *EncodedVideoChunk, metadata *EncodedVideoChunkMetadata)
	onError        func(err error)
	engineOverride CodecEngine

	mu              sync.Mutex
	state           CodecState
	config          VideoEncoderConfig
	session         VideoEncoderSession
	pending         []pendingFrame
	flushing        bool
	generation      uint64
	metadataPending bool
}

// NewVideoEncoder creates an unconfigured encoder. Both callbacks are
// required.
func NewVideoEncoder(init VideoEncoderInit) (*VideoEncoder, error) {
	if init.Output == nil || init.Error == nil {
		return nil, fmt.Errorf("%w: output and error callbacks are required", ErrData)
	}
	return &VideoEncoder{
		output:         init.Output,
		onError:        init.Error,
		engineOverride: init.Engine,
	}, nil
}

// State returns the controller state.
func (e *VideoEncoder) State() CodecState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// EncodeQueueSize returns the number of queued frames not yet processed.
func (e *VideoEncoder) EncodeQueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *VideoEncoder) engine() CodecEngine {
	if e.engineOverride != nil {
		return e.engineOverride
	}
	return DefaultEngine()
}

// Configure binds the encoder to a codec and opens an engine session.
// Malformed arguments are rejected synchronously; an unsupported or
// unopenable codec closes the encoder and reports ErrNotSupported on the
// error callback, and Configure returns nil. Reconfiguring replaces the
// session and leaves queued frames pending; they are processed against the
// new session by the next flush.
func (e *VideoEncoder) Configure(config VideoEncoderConfig) error {
	e.mu.Lock()
	if e.state == CodecStateClosed {
		e.mu.Unlock()
		return fmt.Errorf("%w: configure on closed encoder", ErrInvalidState)
	}
	if config.Width < 0 || config.Height < 0 || config.Bitrate < 0 || config.Framerate < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: negative encoder configuration value", ErrData)
	}
	applyVideoEncoderDefaults(&config)

	engine := e.engine()
	info, parseErr := ParseVideoCodecString(config.Codec)
	supported := parseErr == nil && engine != nil && engine.SupportsVideoEncode(info.Codec)
	old := e.session
	e.session = nil
	e.mu.Unlock()

	// Closing the old session blocks until an in-flight encode returns, so
	// it must happen outside the controller lock.
	if old != nil {
		_ = old.Close()
	}
	if !supported {
		e.fail(fmt.Errorf("%w: codec %q", ErrNotSupported, config.Codec))
		return nil
	}

	session, err := engine.OpenVideoEncoder(config)
	if err != nil {
		e.fail(fmt.Errorf("%w: codec %q: %v", ErrNotSupported, config.Codec, err))
		return nil
	}

	e.mu.Lock()
	if e.state == CodecStateClosed {
		e.mu.Unlock()
		_ = session.Close()
		return fmt.Errorf("%w: configure on closed encoder", ErrInvalidState)
	}
	e.generation++
	e.session = session
	e.config = config
	e.state = CodecStateConfigured
	e.metadataPending = true
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"component": "webcodecs",
		"codec":     config.Codec,
		"width":     config.Width,
		"height":    config.Height,
		"bitrate":   config.Bitrate,
	}).Debug("video encoder configured")
	return nil
}

// Encode queues one frame for compression. The frame is copied on
// submission: the caller may close or mutate it immediately afterwards.
func (e *VideoEncoder) Encode(frame *VideoFrame, opts *VideoEncodeOptions) error {
	if frame == nil {
		return fmt.Errorf("%w: nil frame", ErrData)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != CodecStateConfigured {
		return fmt.Errorf("%w: encode on %s encoder", ErrInvalidState, e.state)
	}
	captured, err := frame.Clone()
	if err != nil {
		return err
	}
	e.pending = append(e.pending, pendingFrame{
		frame:    captured,
		keyFrame: opts != nil && opts.KeyFrame,
	})
	return nil
}

// Flush drains the queue in FIFO order, delivering outputs and per-item
// errors through the callbacks, and returns once the queue is empty. Only
// one flush may run at a time; a concurrent call is rejected with
// ErrInvalidState. A reset, close, or reconfigure racing the flush ends it
// early with a nil return. ctx is consulted between items, never
// mid-engine-call.
func (e *VideoEncoder) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.state != CodecStateConfigured {
		e.mu.Unlock()
		return fmt.Errorf("%w: flush on %s encoder", ErrInvalidState, e.state)
	}
	if e.flushing {
		e.mu.Unlock()
		return fmt.Errorf("%w: flush already in progress", ErrInvalidState)
	}
	e.flushing = true
	gen := e.generation
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.flushing = false
		e.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.mu.Lock()
		if e.generation != gen || e.state != CodecStateConfigured {
			e.mu.Unlock()
			return nil
		}
		if len(e.pending) == 0 {
			e.mu.Unlock()
			return nil
		}
		op := e.pending[0]
		session := e.session
		needMetadata := e.metadataPending
		config := e.config
		e.mu.Unlock()

		chunks, err := session.Encode(op.frame, op.keyFrame)

		// A reset, close, or reconfigure that raced the engine call owns
		// the queue now; this flush delivers nothing for the item.
		if e.flushAborted(gen) {
			return nil
		}

		if err != nil {
			lost := errors.Is(err, ErrSessionLost)
			if !lost {
				err = fmt.Errorf("%w: %v", ErrOperation, err)
			}
			e.onError(err)
			if !e.completeHead(gen, false) {
				return nil
			}
			op.frame.Close()
			if lost {
				logrus.WithFields(logrus.Fields{
					"component": "webcodecs",
					"codec":     config.Codec,
				}).WithError(err).Error("video encoder session lost")
				e.drainAs(err)
				e.Close()
				return nil
			}
			continue
		}

		delivered := false
		for _, chunk := range chunks {
			var metadata *EncodedVideoChunkMetadata
			if needMetadata {
				needMetadata = false
				metadata = &EncodedVideoChunkMetadata{DecoderConfig: &VideoDecoderConfig{
					Codec:       config.Codec,
					CodedWidth:  config.Width,
					CodedHeight: config.Height,
				}}
			}
			delivered = true
			e.output(chunk, metadata)
		}
		if !e.completeHead(gen, delivered) {
			return nil
		}
		op.frame.Close()
	}
}

// flushAborted reports whether the queue changed hands since the flush
// snapshot. Reset, Close, Configure and fail all bump the generation.
func (e *VideoEncoder) flushAborted(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation != gen
}

// completeHead pops the queue head after its outputs or error have been
// delivered. It reports false when a reset, close, or reconfigure raced the
// delivery and now owns the queue.
func (e *VideoEncoder) completeHead(gen uint64, delivered bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation != gen {
		return false
	}
	e.pending = e.pending[1:]
	if delivered {
		e.metadataPending = false
	}
	return true
}

// drainAs fails every remaining queued frame with err after the session is
// gone.
func (e *VideoEncoder) drainAs(err error) {
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.mu.Unlock()
			return
		}
		op := e.pending[0]
		e.pending = e.pending[1:]
		e.mu.Unlock()

		op.frame.Close()
		e.onError(err)
	}
}

// Reset returns the encoder to unconfigured, dropping queued frames without
// producing outputs for them. An engine call already in flight completes
// inside the session before it is torn down, but its outputs are discarded.
func (e *VideoEncoder) Reset() error {
	e.mu.Lock()
	if e.state == CodecStateClosed {
		e.mu.Unlock()
		return fmt.Errorf("%w: reset on closed encoder", ErrInvalidState)
	}
	e.generation++
	dropped := e.pending
	e.pending = nil
	session := e.session
	e.session = nil
	e.state = CodecStateUnconfigured
	e.metadataPending = false
	e.mu.Unlock()

	for _, op := range dropped {
		op.frame.Close()
	}
	if session != nil {
		_ = session.Close()
	}
	return nil
}

// Close releases the encoder and its session. Queued frames are dropped
// without outputs. Closing an already-closed encoder is a no-op.
func (e *VideoEncoder) Close() {
	e.mu.Lock()
	if e.state == CodecStateClosed {
		e.mu.Unlock()
		return
	}
	e.generation++
	dropped := e.pending
	e.pending = nil
	session := e.session
	e.session = nil
	e.state = CodecStateClosed
	e.mu.Unlock()

	for _, op := range dropped {
		op.frame.Close()
	}
	if session != nil {
		_ = session.Close()
	}
}

// fail transitions to closed and reports err on the error callback.
func (e *VideoEncoder) fail(err error) {
	e.mu.Lock()
	e.generation++
	dropped := e.pending
	e.pending = nil
	session := e.session
	e.session = nil
	e.state = CodecStateClosed
	e.mu.Unlock()

	for _, op := range dropped {
		op.frame.Close()
	}
	if session != nil {
		_ = session.Close()
	}
	e.onError(err)
}
