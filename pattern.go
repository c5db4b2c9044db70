// Synthetic I420 frame generation for examples and tests.
package webcodecs

import (
	"fmt"
	"math"
)

// PatternType defines the type of test pattern to generate.
type PatternType int

const (
	PatternColorBars PatternType = iota // SMPTE-style color bars
	PatternGradient                     // horizontal luma gradient
	PatternSolid                        // solid color
	PatternMovingBox                    // white box on a circular path
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternGradient:
		return "Gradient"
	case PatternSolid:
		return "Solid"
	case PatternMovingBox:
		return "MovingBox"
	default:
		return "Unknown"
	}
}

// PatternConfig configures a PatternGenerator.
type PatternConfig struct {
	Pattern PatternType
	Width   int // default 640
	Height  int // default 480
	FPS     int // default 30

	// Solid pattern color
	SolidR, SolidG, SolidB uint8

	// Moving box edge length, default 100
	BoxSize int
}

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = [8][3]uint8{
	{192, 192, 192}, // White (75%)
	{192, 192, 0},   // Yellow
	{0, 192, 192},   // Cyan
	{0, 192, 0},     // Green
	{192, 0, 192},   // Magenta
	{192, 0, 0},     // Red
	{0, 0, 192},     // Blue
	{16, 16, 16},    // Black
}

// PatternGenerator produces a deterministic sequence of I420 frames. Each
// NextFrame call allocates a fresh frame owned by the caller; timestamps
// advance by 1e6/FPS microseconds per frame starting at zero.
type PatternGenerator struct {
	config PatternConfig
	index  int64
}

// NewPatternGenerator creates a generator, applying config defaults.
// Negative dimensions are rejected with ErrData.
func NewPatternGenerator(config PatternConfig) (*PatternGenerator, error) {
	if config.Width < 0 || config.Height < 0 || config.FPS < 0 {
		return nil, fmt.Errorf("%w: negative pattern dimensions", ErrData)
	}
	if config.Width == 0 {
		config.Width = DefaultEncodeWidth
	}
	if config.Height == 0 {
		config.Height = DefaultEncodeHeight
	}
	if config.FPS == 0 {
		config.FPS = DefaultEncodeFPS
	}
	if config.BoxSize <= 0 {
		config.BoxSize = 100
	}
	return &PatternGenerator{config: config}, nil
}

// FrameDuration returns the per-frame duration in microseconds.
func (g *PatternGenerator) FrameDuration() int64 {
	return 1_000_000 / int64(g.config.FPS)
}

// NextFrame generates the next frame in the sequence.
func (g *PatternGenerator) NextFrame() *VideoFrame {
	w, h := g.config.Width, g.config.Height
	chromaW, chromaH := (w+1)/2, (h+1)/2
	buf := make([]byte, w*h+2*chromaW*chromaH)
	yPlane := buf[:w*h]
	uPlane := buf[w*h : w*h+chromaW*chromaH]
	vPlane := buf[w*h+chromaW*chromaH:]

	switch g.config.Pattern {
	case PatternGradient:
		fillGradient(yPlane, uPlane, vPlane, w, h)
	case PatternSolid:
		y, u, v := yuvFromRGB(g.config.SolidR, g.config.SolidG, g.config.SolidB)
		fillSolid(yPlane, uPlane, vPlane, y, u, v)
	case PatternMovingBox:
		fillMovingBox(yPlane, uPlane, vPlane, w, h, g.config.BoxSize, g.index)
	default:
		fillColorBars(yPlane, uPlane, vPlane, w, h)
	}

	duration := g.FrameDuration()
	frame := newAdoptedFrame(buf, VideoFrameInit{
		Format:      PixelFormatI420,
		CodedWidth:  w,
		CodedHeight: h,
		Timestamp:   g.index * duration,
		Duration:    duration,
	})
	g.index++
	return frame
}

// NewSolidI420Frame builds a single I420 frame with every Y, U and V sample
// set to the given plane values.
func NewSolidI420Frame(width, height int, y, u, v byte, timestamp int64) (*VideoFrame, error) {
	size, err := allocationSize(PixelFormatI420, width, height)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	chromaSize := ((width + 1) / 2) * ((height + 1) / 2)
	fillSolid(buf[:width*height], buf[width*height:width*height+chromaSize], buf[width*height+chromaSize:], y, u, v)
	return newAdoptedFrame(buf, VideoFrameInit{
		Format:      PixelFormatI420,
		CodedWidth:  width,
		CodedHeight: height,
		Timestamp:   timestamp,
	}), nil
}

func fillSolid(yPlane, uPlane, vPlane []byte, y, u, v byte) {
	for i := range yPlane {
		yPlane[i] = y
	}
	for i := range uPlane {
		uPlane[i] = u
		vPlane[i] = v
	}
}

func fillColorBars(yPlane, uPlane, vPlane []byte, w, h int) {
	chromaW := (w + 1) / 2
	barWidth := w / 8
	if barWidth == 0 {
		barWidth = 1
	}
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			bar := min(col/barWidth, 7)
			rgb := colorBarsRGB[bar]
			y, u, v := yuvFromRGB(rgb[0], rgb[1], rgb[2])

			yPlane[row*w+col] = y
			if row%2 == 0 && col%2 == 0 {
				uPlane[(row/2)*chromaW+col/2] = u
				vPlane[(row/2)*chromaW+col/2] = v
			}
		}
	}
}

func fillGradient(yPlane, uPlane, vPlane []byte, w, h int) {
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			yPlane[row*w+col] = byte(col * 255 / w)
		}
	}
	for i := range uPlane {
		uPlane[i] = 128
		vPlane[i] = 128
	}
}

func fillMovingBox(yPlane, uPlane, vPlane []byte, w, h, boxSize int, frame int64) {
	fillSolid(yPlane, uPlane, vPlane, 16, 128, 128)

	// Box center moves on a circle, 0.05 radians per frame.
	radius := float64(min(w, h)) / 4
	angle := float64(frame) * 0.05
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	for row := max(boxY, 0); row < boxY+boxSize && row < h; row++ {
		for col := max(boxX, 0); col < boxX+boxSize && col < w; col++ {
			yPlane[row*w+col] = 235
		}
	}
}
