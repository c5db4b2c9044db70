package webcodecs

import (
	"errors"
	"testing"
)

// packedFrame builds a width x height frame in a packed format from raw
// bytes.
func packedFrame(t *testing.T, format PixelFormat, width, height int, data []byte) *VideoFrame {
	t.Helper()
	frame, err := NewVideoFrame(data, VideoFrameInit{
		Format:      format,
		CodedWidth:  width,
		CodedHeight: height,
	})
	if err != nil {
		t.Fatalf("NewVideoFrame error = %v", err)
	}
	return frame
}

func TestI420ToRGBA(t *testing.T) {
	tests := []struct {
		name    string
		y, u, v byte
		want    [4]byte // RGBA of every pixel
	}{
		{"red", 81, 90, 240, [4]byte{255, 0, 0, 255}},
		{"black", 16, 128, 128, [4]byte{0, 0, 0, 255}},
		{"white", 235, 128, 128, [4]byte{255, 255, 255, 255}},
		{"gray", 128, 128, 128, [4]byte{130, 130, 130, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewSolidI420Frame(2, 2, tt.y, tt.u, tt.v, 0)
			if err != nil {
				t.Fatalf("NewSolidI420Frame error = %v", err)
			}
			defer frame.Close()

			dst := make([]byte, 2*2*4)
			if _, err := frame.CopyTo(dst, PixelFormatRGBA); err != nil {
				t.Fatalf("CopyTo error = %v", err)
			}
			for px := 0; px < 4; px++ {
				for ch := 0; ch < 4; ch++ {
					if dst[px*4+ch] != tt.want[ch] {
						t.Errorf("pixel %d channel %d = %d, want %d", px, ch, dst[px*4+ch], tt.want[ch])
					}
				}
			}
		})
	}
}

func TestRGBAToI420(t *testing.T) {
	tests := []struct {
		name          string
		r, g, b       byte
		wantY         byte
		wantU, wantV  byte
	}{
		{"red", 255, 0, 0, 76, 85, 255},
		{"green", 0, 255, 0, 150, 44, 21},
		{"blue", 0, 0, 255, 29, 255, 107},
		{"black", 0, 0, 0, 0, 128, 128},
		{"white", 255, 255, 255, 255, 128, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := make([]byte, 2*2*4)
			for px := 0; px < 4; px++ {
				src[px*4+0] = tt.r
				src[px*4+1] = tt.g
				src[px*4+2] = tt.b
				src[px*4+3] = 255
			}
			frame := packedFrame(t, PixelFormatRGBA, 2, 2, src)
			defer frame.Close()

			dst := make([]byte, 6) // 2x2 I420
			if _, err := frame.CopyTo(dst, PixelFormatI420); err != nil {
				t.Fatalf("CopyTo error = %v", err)
			}
			for i := 0; i < 4; i++ {
				if dst[i] != tt.wantY {
					t.Errorf("Y[%d] = %d, want %d", i, dst[i], tt.wantY)
				}
			}
			if dst[4] != tt.wantU {
				t.Errorf("U = %d, want %d", dst[4], tt.wantU)
			}
			if dst[5] != tt.wantV {
				t.Errorf("V = %d, want %d", dst[5], tt.wantV)
			}
		})
	}
}

func TestPackedToI420PointSampling(t *testing.T) {
	// Four distinct pixels in a 2x2 block. Chroma must come from the top
	// left pixel alone, not an average.
	src := []byte{
		255, 0, 0, 255, /**/ 0, 255, 0, 255,
		0, 0, 255, 255, /**/ 255, 255, 255, 255,
	}
	frame := packedFrame(t, PixelFormatRGBA, 2, 2, src)
	defer frame.Close()

	dst := make([]byte, 6)
	if _, err := frame.CopyTo(dst, PixelFormatI420); err != nil {
		t.Fatalf("CopyTo error = %v", err)
	}

	wantY := []byte{76, 150, 29, 255}
	for i, want := range wantY {
		if dst[i] != want {
			t.Errorf("Y[%d] = %d, want %d", i, dst[i], want)
		}
	}
	// Red pixel's chroma
	if dst[4] != 85 {
		t.Errorf("U = %d, want 85", dst[4])
	}
	if dst[5] != 255 {
		t.Errorf("V = %d, want 255", dst[5])
	}
}

func TestRepackPixels(t *testing.T) {
	tests := []struct {
		name      string
		srcFormat PixelFormat
		dstFormat PixelFormat
		src       []byte
		want      []byte
	}{
		{"RGBA to BGRA carries alpha", PixelFormatRGBA, PixelFormatBGRA,
			[]byte{1, 2, 3, 0x80}, []byte{3, 2, 1, 0x80}},
		{"BGRA to RGBA carries alpha", PixelFormatBGRA, PixelFormatRGBA,
			[]byte{3, 2, 1, 0x80}, []byte{1, 2, 3, 0x80}},
		{"RGBA to RGBX writes opaque pad", PixelFormatRGBA, PixelFormatRGBX,
			[]byte{1, 2, 3, 0x80}, []byte{1, 2, 3, 0xFF}},
		{"RGBX to RGBA forces opaque alpha", PixelFormatRGBX, PixelFormatRGBA,
			[]byte{1, 2, 3, 0x00}, []byte{1, 2, 3, 0xFF}},
		{"RGBA to RGB24 drops alpha", PixelFormatRGBA, PixelFormatRGB24,
			[]byte{1, 2, 3, 0x80}, []byte{1, 2, 3}},
		{"RGB24 to BGRA is opaque", PixelFormatRGB24, PixelFormatBGRA,
			[]byte{1, 2, 3}, []byte{3, 2, 1, 0xFF}},
		{"RGBX to BGRX rewrites pad", PixelFormatRGBX, PixelFormatBGRX,
			[]byte{1, 2, 3, 0x00}, []byte{3, 2, 1, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := packedFrame(t, tt.srcFormat, 1, 1, tt.src)
			defer frame.Close()

			dst := make([]byte, len(tt.want))
			if _, err := frame.CopyTo(dst, tt.dstFormat); err != nil {
				t.Fatalf("CopyTo error = %v", err)
			}
			for i, want := range tt.want {
				if dst[i] != want {
					t.Errorf("byte %d = %d, want %d", i, dst[i], want)
				}
			}
		})
	}
}

func TestYUVFromRGB(t *testing.T) {
	tests := []struct {
		r, g, b byte
		y, u, v byte
	}{
		{255, 0, 0, 76, 85, 255},
		{0, 255, 0, 150, 44, 21},
		{0, 0, 255, 29, 255, 107},
		{0, 0, 0, 0, 128, 128},
		{255, 255, 255, 255, 128, 128},
	}

	for _, tt := range tests {
		y, u, v := yuvFromRGB(tt.r, tt.g, tt.b)
		if y != tt.y || u != tt.u || v != tt.v {
			t.Errorf("yuvFromRGB(%d, %d, %d) = (%d, %d, %d), want (%d, %d, %d)",
				tt.r, tt.g, tt.b, y, u, v, tt.y, tt.u, tt.v)
		}
	}
}

func TestConvertPixelsUnsupported(t *testing.T) {
	err := convertPixels(make([]byte, 16), make([]byte, 16), PixelFormatUnknown, PixelFormatI420, 2, 2)
	if !errors.Is(err, ErrNotSupported) {
		t.Errorf("convertPixels error = %v, want ErrNotSupported", err)
	}
}

func TestI420ToRGBAOddDimensions(t *testing.T) {
	// 3x3 exercises the rounded-up chroma plane indexing.
	frame, err := NewSolidI420Frame(3, 3, 81, 90, 240, 0)
	if err != nil {
		t.Fatalf("NewSolidI420Frame error = %v", err)
	}
	defer frame.Close()

	dst := make([]byte, 3*3*4)
	if _, err := frame.CopyTo(dst, PixelFormatRGBA); err != nil {
		t.Fatalf("CopyTo error = %v", err)
	}
	for px := 0; px < 9; px++ {
		if dst[px*4] != 255 || dst[px*4+1] != 0 || dst[px*4+2] != 0 {
			t.Errorf("pixel %d = (%d, %d, %d), want (255, 0, 0)",
				px, dst[px*4], dst[px*4+1], dst[px*4+2])
		}
	}
}
