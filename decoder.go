// VideoDecoder controller: configure/decode/flush/reset/close over a codec
// engine session.
package webcodecs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// VideoDecoderConfig configures a video decoder. The same shape travels on
// EncodedVideoChunkMetadata so an encoder's output can configure a decoder
// directly.
type VideoDecoderConfig struct {
	Codec       string // codec identifier string, e.g. "vp8"
	CodedWidth  int    // expected frame width, 0 when the bitstream self-describes
	CodedHeight int    // expected frame height, 0 when the bitstream self-describes
}

// VideoDecoderSupport is the result of IsVideoDecoderConfigSupported.
type VideoDecoderSupport struct {
	Supported bool
	Config    VideoDecoderConfig
}

// IsVideoDecoderConfigSupported checks a configuration against the process
// default engine without opening a session.
func IsVideoDecoderConfigSupported(config VideoDecoderConfig) VideoDecoderSupport {
	if config.CodedWidth < 0 || config.CodedHeight < 0 {
		return VideoDecoderSupport{Supported: false, Config: config}
	}
	info, err := ParseVideoCodecString(config.Codec)
	engine := DefaultEngine()
	return VideoDecoderSupport{
		Supported: err == nil && engine != nil && engine.SupportsVideoDecode(info.Codec),
		Config:    config,
	}
}

// VideoDecoderInit carries the construction parameters for NewVideoDecoder.
type VideoDecoderInit struct {
	// Output receives every decoded frame, in submission order. Required.
	Output func(frame *VideoFrame)
	// Error receives codec errors routed through the asynchronous path.
	// Required.
	Error func(err error)
	// Engine overrides the process default codec engine. Nil means
	// DefaultEngine() at configure time.
	Engine CodecEngine
}

// pendingChunk is one queued decode operation. The chunk is a private clone
// owned by the queue.
type pendingChunk struct {
	chunk *EncodedVideoChunk
}

// VideoDecoder turns compressed chunks into raw frames through a configured
// codec engine session. Same queueing and callback discipline as
// VideoEncoder.
type VideoDecoder struct {
	output         func(frame *VideoFrame)
	onError        func(err error)
	engineOverride CodecEngine

	mu          sync.Mutex
	state       CodecState
	config      VideoDecoderConfig
	session     VideoDecoderSession
	pending     []pendingChunk
	flushing    bool
	generation  uint64
	keyRequired bool
}

// NewVideoDecoder creates an unconfigured decoder. Both callbacks are
// required.
func NewVideoDecoder(init VideoDecoderInit) (*VideoDecoder, error) {
	if init.Output == nil || init.Error == nil {
		return nil, fmt.Errorf("%w: output and error callbacks are required", ErrData)
	}
	return &VideoDecoder{
		output:         init.Output,
		onError:        init.Error,
		engineOverride: init.Engine,
	}, nil
}

// State returns the controller state.
func (d *VideoDecoder) State() CodecState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// DecodeQueueSize returns the number of queued chunks not yet processed.
func (d *VideoDecoder) DecodeQueueSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *VideoDecoder) engine() CodecEngine {
	if d.engineOverride != nil {
		return d.engineOverride
	}
	return DefaultEngine()
}

// Configure binds the decoder to a codec and opens an engine session. Same
// synchronous/asynchronous error split as VideoEncoder.Configure. After a
// successful configure the first submitted chunk must be a keyframe.
func (d *VideoDecoder) Configure(config VideoDecoderConfig) error {
	d.mu.Lock()
	if d.state == CodecStateClosed {
		d.mu.Unlock()
		return fmt.Errorf("%w: configure on closed decoder", ErrInvalidState)
	}
	if config.CodedWidth < 0 || config.CodedHeight < 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: negative decoder configuration value", ErrData)
	}

	engine := d.engine()
	info, parseErr := ParseVideoCodecString(config.Codec)
	supported := parseErr == nil && engine != nil && engine.SupportsVideoDecode(info.Codec)
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

	session, err := engine.OpenVideoDecoder(config)
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
		"component": "webcodecs",
		"codec":     config.Codec,
		"width":     config.CodedWidth,
		"height":    config.CodedHeight,
	}).Debug("video decoder configured")
	return nil
}

// Decode queues one chunk for decompression. The payload is copied on
// submission: the caller may close the chunk immediately afterwards. The
// first chunk after Configure or Reset must be a keyframe; a delta chunk is
// rejected with ErrData.
func (d *VideoDecoder) Decode(chunk *EncodedVideoChunk) error {
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
	d.pending = append(d.pending, pendingChunk{chunk: captured})
	return nil
}

// Flush drains the queue in FIFO order and returns once it is empty. Same
// single-flight, abort, and error rules as VideoEncoder.Flush.
func (d *VideoDecoder) Flush(ctx context.Context) error {
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

		frames, err := session.Decode(op.chunk)

		// A reset, close, or reconfigure that raced the engine call owns
		// the queue now; this flush delivers nothing for the item.
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
				}).WithError(err).Error("video decoder session lost")
				d.drainAs(err)
				d.Close()
				return nil
			}
			continue
		}

		for _, frame := range frames {
			d.output(frame)
		}
		if !d.completeHead(gen) {
			return nil
		}
		op.chunk.Close()
	}
}

// flushAborted reports whether the queue changed hands since the flush
// snapshot.
func (d *VideoDecoder) flushAborted(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation != gen
}

// completeHead pops the queue head after its outputs or error have been
// delivered. It reports false when a reset, close, or reconfigure raced the
// delivery and now owns the queue.
func (d *VideoDecoder) completeHead(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation != gen {
		return false
	}
	d.pending = d.pending[1:]
	return true
}

// drainAs fails every remaining queued chunk with err after the session is
// gone.
func (d *VideoDecoder) drainAs(err error) {
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
// producing outputs for them. The next configured stream must start on a
// keyframe again.
func (d *VideoDecoder) Reset() error {
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

// Close releases the decoder and its session. Queued chunks are dropped
// without outputs. Closing an already-closed decoder is a no-op.
func (d *VideoDecoder) Close() {
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
func (d *VideoDecoder) fail(err error) {
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
