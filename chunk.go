// Encoded chunk types produced by encoders and consumed by decoders.
package webcodecs

import "fmt"

// ChunkType indicates whether a chunk is a keyframe or delta frame.
type ChunkType int

const (
	ChunkTypeKey   ChunkType = iota // can be decoded independently
	ChunkTypeDelta                  // requires previous chunks
)

func (t ChunkType) String() string {
	if t == ChunkTypeKey {
		return "key"
	}
	return "delta"
}

// EncodedVideoChunkInit carries the construction parameters for
// NewEncodedVideoChunk.
type EncodedVideoChunkInit struct {
	Type      ChunkType
	Timestamp int64 // microseconds
	Duration  int64 // microseconds, 0 when unknown
	Data      []byte
}

// EncodedVideoChunk holds one compressed bitstream unit plus its timing
// metadata. The payload is an owned copy, immutable after construction;
// Close releases it.
type EncodedVideoChunk struct {
	Type      ChunkType
	Timestamp int64 // microseconds
	Duration  int64 // microseconds, 0 when unknown

	buf byteBuffer
}

// NewEncodedVideoChunk builds a chunk from caller-provided bytes. The
// payload is copied, so the caller may reuse init.Data immediately.
func NewEncodedVideoChunk(init EncodedVideoChunkInit) (*EncodedVideoChunk, error) {
	if len(init.Data) == 0 {
		return nil, fmt.Errorf("%w: empty chunk payload", ErrData)
	}
	return &EncodedVideoChunk{
		Type:      init.Type,
		Timestamp: init.Timestamp,
		Duration:  init.Duration,
		buf:       borrowBytes(init.Data).retain(),
	}, nil
}

// newAdoptedVideoChunk wraps already-owned bytes without copying. The caller
// must not reuse data afterwards.
func newAdoptedVideoChunk(data []byte, typ ChunkType, timestamp, duration int64) *EncodedVideoChunk {
	return &EncodedVideoChunk{
		Type:      typ,
		Timestamp: timestamp,
		Duration:  duration,
		buf:       adoptBytes(data),
	}
}

// ByteLength returns the payload size in bytes, 0 once closed.
func (c *EncodedVideoChunk) ByteLength() int {
	return c.buf.len()
}

// CopyTo copies the payload into dst.
func (c *EncodedVideoChunk) CopyTo(dst []byte) error {
	if c.buf.released() {
		return fmt.Errorf("%w: chunk closed", ErrInvalidState)
	}
	if len(dst) < c.buf.len() {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrBufferTooSmall, c.buf.len(), len(dst))
	}
	copy(dst, c.buf.data)
	return nil
}

// Close releases the payload. Closing an already-closed chunk is a no-op.
func (c *EncodedVideoChunk) Close() {
	c.buf.release()
}

// Closed reports whether Close has released the payload.
func (c *EncodedVideoChunk) Closed() bool {
	return c.buf.released()
}

// clone creates an independent copy for queue capture.
func (c *EncodedVideoChunk) clone() (*EncodedVideoChunk, error) {
	if c.buf.released() {
		return nil, fmt.Errorf("%w: chunk closed", ErrInvalidState)
	}
	dup := *c
	dup.buf = c.buf.clone()
	return &dup, nil
}

// bytes returns the payload for engine submission; nil when closed.
func (c *EncodedVideoChunk) bytes() []byte {
	return c.buf.data
}

// EncodedAudioChunkInit carries the construction parameters for
// NewEncodedAudioChunk.
type EncodedAudioChunkInit struct {
	Type      ChunkType
	Timestamp int64 // microseconds
	Duration  int64 // microseconds, 0 when unknown
	Data      []byte
}

// EncodedAudioChunk holds one compressed audio packet plus its timing
// metadata. Same ownership rules as EncodedVideoChunk.
type EncodedAudioChunk struct {
	Type      ChunkType
	Timestamp int64 // microseconds
	Duration  int64 // microseconds, 0 when unknown

	buf byteBuffer
}

// NewEncodedAudioChunk builds a chunk from caller-provided bytes. The
// payload is copied.
func NewEncodedAudioChunk(init EncodedAudioChunkInit) (*EncodedAudioChunk, error) {
	if len(init.Data) == 0 {
		return nil, fmt.Errorf("%w: empty chunk payload", ErrData)
	}
	return &EncodedAudioChunk{
		Type:      init.Type,
		Timestamp: init.Timestamp,
		Duration:  init.Duration,
		buf:       borrowBytes(init.Data).retain(),
	}, nil
}

// ByteLength returns the payload size in bytes, 0 once closed.
func (c *EncodedAudioChunk) ByteLength() int {
	return c.buf.len()
}

// CopyTo copies the payload into dst.
func (c *EncodedAudioChunk) CopyTo(dst []byte) error {
	if c.buf.released() {
		return fmt.Errorf("%w: chunk closed", ErrInvalidState)
	}
	if len(dst) < c.buf.len() {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrBufferTooSmall, c.buf.len(), len(dst))
	}
	copy(dst, c.buf.data)
	return nil
}

// Close releases the payload. Closing an already-closed chunk is a no-op.
func (c *EncodedAudioChunk) Close() {
	c.buf.release()
}

// Closed reports whether Close has released the payload.
func (c *EncodedAudioChunk) Closed() bool {
	return c.buf.released()
}

// clone creates an independent copy for queue capture.
func (c *EncodedAudioChunk) clone() (*EncodedAudioChunk, error) {
	if c.buf.released() {
		return nil, fmt.Errorf("%w: chunk closed", ErrInvalidState)
	}
	dup := *c
	dup.buf = c.buf.clone()
	return &dup, nil
}

// bytes returns the payload for engine submission; nil when closed.
func (c *EncodedAudioChunk) bytes() []byte {
	return c.buf.data
}
