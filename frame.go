// Core frame types shared by the encode and decode paths.
package webcodecs

import "fmt"

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota // no explicit format requested
	PixelFormatI420                       // YUV 4:2:0 planar (Y + U + V)
	PixelFormatRGB24                      // Packed RGB, 3 bytes per pixel
	PixelFormatRGBA                       // Packed RGBA, 4 bytes per pixel
	PixelFormatBGRA                       // Packed BGRA, 4 bytes per pixel
	PixelFormatRGBX                       // Packed RGB + padding byte
	PixelFormatBGRX                       // Packed BGR + padding byte
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatBGRA:
		return "BGRA"
	case PixelFormatRGBX:
		return "RGBX"
	case PixelFormatBGRX:
		return "BGRX"
	default:
		return "Unknown"
	}
}

// ParsePixelFormat maps a format name to its PixelFormat. "RGB" is accepted
// as an alias for RGB24.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "I420":
		return PixelFormatI420, nil
	case "RGB", "RGB24":
		return PixelFormatRGB24, nil
	case "RGBA":
		return PixelFormatRGBA, nil
	case "BGRA":
		return PixelFormatBGRA, nil
	case "RGBX":
		return PixelFormatRGBX, nil
	case "BGRX":
		return PixelFormatBGRX, nil
	}
	return PixelFormatUnknown, fmt.Errorf("%w: pixel format %q", ErrNotSupported, s)
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3 // Y, U, V
	case PixelFormatRGB24, PixelFormatRGBA, PixelFormatBGRA, PixelFormatRGBX, PixelFormatBGRX:
		return 1 // Packed
	default:
		return 0
	}
}

// BytesPerPixel returns the packed pixel width in bytes, 0 for planar formats.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelFormatRGB24:
		return 3
	case PixelFormatRGBA, PixelFormatBGRA, PixelFormatRGBX, PixelFormatBGRX:
		return 4
	default:
		return 0
	}
}

func (p PixelFormat) packed() bool { return p.BytesPerPixel() > 0 }

func (p PixelFormat) valid() bool { return p == PixelFormatI420 || p.packed() }

// PlaneLayout describes one plane of a copied-out frame: the byte offset of
// its first row inside the destination buffer and the row stride.
type PlaneLayout struct {
	Offset int
	Stride int
}

// allocationSize returns the byte size of a width x height frame in the
// given format, planes tightly packed. I420 chroma planes round odd
// dimensions up.
func allocationSize(format PixelFormat, width, height int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: invalid dimensions %dx%d", ErrData, width, height)
	}
	switch {
	case format == PixelFormatI420:
		chromaW, chromaH := (width+1)/2, (height+1)/2
		return width*height + 2*chromaW*chromaH, nil
	case format.packed():
		return width * height * format.BytesPerPixel(), nil
	}
	return 0, fmt.Errorf("%w: pixel format %s", ErrNotSupported, format)
}

// planeLayouts returns the tightly packed plane layout for format at
// width x height.
func planeLayouts(format PixelFormat, width, height int) []PlaneLayout {
	if format == PixelFormatI420 {
		chromaW, chromaH := (width+1)/2, (height+1)/2
		return []PlaneLayout{
			{Offset: 0, Stride: width},
			{Offset: width * height, Stride: chromaW},
			{Offset: width*height + chromaW*chromaH, Stride: chromaW},
		}
	}
	return []PlaneLayout{{Offset: 0, Stride: width * format.BytesPerPixel()}}
}

// VideoFrameInit carries the construction parameters for NewVideoFrame.
// DisplayWidth and DisplayHeight default to the coded dimensions when zero.
type VideoFrameInit struct {
	Format        PixelFormat
	CodedWidth    int
	CodedHeight   int
	DisplayWidth  int
	DisplayHeight int
	Timestamp     int64 // microseconds
	Duration      int64 // microseconds, 0 when unknown
}

// VideoFrame represents one uncompressed video sample: geometry and timing
// metadata plus an owned copy of the pixel bytes, planes tightly packed.
// Frames are reference types; Close releases the pixel buffer and further
// data access reports ErrInvalidState.
type VideoFrame struct {
	Format        PixelFormat
	CodedWidth    int
	CodedHeight   int
	DisplayWidth  int
	DisplayHeight int
	Timestamp     int64 // microseconds
	Duration      int64 // microseconds, 0 when unknown

	buf byteBuffer
}

// NewVideoFrame builds a frame from caller-provided pixels. The bytes are
// copied, so the caller may reuse data immediately. data must cover the
// format's allocation size at the coded dimensions.
func NewVideoFrame(data []byte, init VideoFrameInit) (*VideoFrame, error) {
	if !init.Format.valid() {
		return nil, fmt.Errorf("%w: pixel format %s", ErrNotSupported, init.Format)
	}
	size, err := allocationSize(init.Format, init.CodedWidth, init.CodedHeight)
	if err != nil {
		return nil, err
	}
	if len(data) < size {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrBufferTooSmall, size, len(data))
	}
	frame := newAdoptedFrame(nil, init)
	frame.buf = borrowBytes(data[:size]).retain()
	return frame, nil
}

// newAdoptedFrame wraps an already-owned buffer without copying. The caller
// must not reuse data afterwards. init is trusted to be consistent with the
// buffer size.
func newAdoptedFrame(data []byte, init VideoFrameInit) *VideoFrame {
	displayW, displayH := init.DisplayWidth, init.DisplayHeight
	if displayW == 0 {
		displayW = init.CodedWidth
	}
	if displayH == 0 {
		displayH = init.CodedHeight
	}
	return &VideoFrame{
		Format:        init.Format,
		CodedWidth:    init.CodedWidth,
		CodedHeight:   init.CodedHeight,
		DisplayWidth:  displayW,
		DisplayHeight: displayH,
		Timestamp:     init.Timestamp,
		Duration:      init.Duration,
		buf:           adoptBytes(data),
	}
}

// AllocationSize returns the destination byte count CopyTo needs for the
// given format. PixelFormatUnknown selects the frame's own format.
func (f *VideoFrame) AllocationSize(format PixelFormat) (int, error) {
	if f.buf.released() {
		return 0, fmt.Errorf("%w: frame closed", ErrInvalidState)
	}
	if format == PixelFormatUnknown {
		format = f.Format
	}
	return allocationSize(format, f.CodedWidth, f.CodedHeight)
}

// CopyTo copies the frame's pixels into dst, converting to format when it
// differs from the frame's own. PixelFormatUnknown selects the frame's
// format. The returned layouts describe the planes written into dst.
func (f *VideoFrame) CopyTo(dst []byte, format PixelFormat) ([]PlaneLayout, error) {
	if f.buf.released() {
		return nil, fmt.Errorf("%w: frame closed", ErrInvalidState)
	}
	if format == PixelFormatUnknown {
		format = f.Format
	}
	size, err := allocationSize(format, f.CodedWidth, f.CodedHeight)
	if err != nil {
		return nil, err
	}
	if len(dst) < size {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrBufferTooSmall, size, len(dst))
	}
	if format == f.Format {
		copy(dst, f.buf.data)
	} else if err := convertPixels(dst, f.buf.data, f.Format, format, f.CodedWidth, f.CodedHeight); err != nil {
		return nil, err
	}
	return planeLayouts(format, f.CodedWidth, f.CodedHeight), nil
}

// Clone creates an independent copy of the frame. Closing either copy does
// not affect the other.
func (f *VideoFrame) Clone() (*VideoFrame, error) {
	if f.buf.released() {
		return nil, fmt.Errorf("%w: frame closed", ErrInvalidState)
	}
	dup := *f
	dup.buf = f.buf.clone()
	return &dup, nil
}

// Close releases the pixel buffer. Closing an already-closed frame is a
// no-op.
func (f *VideoFrame) Close() {
	f.buf.release()
}

// Closed reports whether Close has released the frame's buffer.
func (f *VideoFrame) Closed() bool {
	return f.buf.released()
}

// pixels returns the backing buffer for engine submission; nil when closed.
func (f *VideoFrame) pixels() []byte {
	return f.buf.data
}
