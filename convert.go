// Pixel format conversion kernels backing VideoFrame.CopyTo.
package webcodecs

import (
	"fmt"
	"math"
)

// packedLayout gives the byte positions of the colour channels inside one
// packed pixel. alpha is -1 when the format has no alpha channel, pad is -1
// when there is no padding byte. Padding bytes are written as 0xFF.
type packedLayout struct {
	r, g, b int
	alpha   int
	pad     int
}

func layoutOf(format PixelFormat) packedLayout {
	switch format {
	case PixelFormatRGBA:
		return packedLayout{r: 0, g: 1, b: 2, alpha: 3, pad: -1}
	case PixelFormatBGRA:
		return packedLayout{r: 2, g: 1, b: 0, alpha: 3, pad: -1}
	case PixelFormatRGBX:
		return packedLayout{r: 0, g: 1, b: 2, alpha: -1, pad: 3}
	case PixelFormatBGRX:
		return packedLayout{r: 2, g: 1, b: 0, alpha: -1, pad: 3}
	default: // RGB24
		return packedLayout{r: 0, g: 1, b: 2, alpha: -1, pad: -1}
	}
}

// clip8 clamps v to [0, 255].
func clip8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// convertPixels converts src pixels in srcFormat to dst in dstFormat for a
// width x height frame. Both buffers are tightly packed and must already be
// sized via allocationSize. Unsupported pairs report ErrNotSupported.
func convertPixels(dst, src []byte, srcFormat, dstFormat PixelFormat, width, height int) error {
	switch {
	case srcFormat == dstFormat:
		copy(dst, src)
		return nil
	case srcFormat == PixelFormatI420 && dstFormat.packed():
		i420ToPacked(dst, src, dstFormat, width, height)
		return nil
	case srcFormat.packed() && dstFormat == PixelFormatI420:
		packedToI420(dst, src, srcFormat, width, height)
		return nil
	case srcFormat.packed() && dstFormat.packed():
		repackPixels(dst, src, srcFormat, dstFormat, width, height)
		return nil
	}
	return fmt.Errorf("%w: conversion %s to %s", ErrNotSupported, srcFormat, dstFormat)
}

// i420ToPacked expands planar BT.601 limited-range YUV into the packed RGB
// family using the fixed-point kernel:
//
//	R = clip((298(Y-16)           + 409(V-128) + 128) >> 8)
//	G = clip((298(Y-16) - 100(U-128) - 208(V-128) + 128) >> 8)
//	B = clip((298(Y-16) + 516(U-128)            + 128) >> 8)
func i420ToPacked(dst, src []byte, format PixelFormat, width, height int) {
	chromaW, chromaH := (width+1)/2, (height+1)/2
	yPlane := src[:width*height]
	uPlane := src[width*height : width*height+chromaW*chromaH]
	vPlane := src[width*height+chromaW*chromaH : width*height+2*chromaW*chromaH]

	bpp := format.BytesPerPixel()
	layout := layoutOf(format)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			c := int(yPlane[row*width+col]) - 16
			d := int(uPlane[(row/2)*chromaW+col/2]) - 128
			e := int(vPlane[(row/2)*chromaW+col/2]) - 128

			p := (row*width + col) * bpp
			dst[p+layout.r] = clip8((298*c + 409*e + 128) >> 8)
			dst[p+layout.g] = clip8((298*c - 100*d - 208*e + 128) >> 8)
			dst[p+layout.b] = clip8((298*c + 516*d + 128) >> 8)
			if layout.alpha >= 0 {
				dst[p+layout.alpha] = 0xFF
			}
			if layout.pad >= 0 {
				dst[p+layout.pad] = 0xFF
			}
		}
	}
}

// packedToI420 converts the packed RGB family to planar YUV. Chroma is
// point-sampled from the even (row, col) pixel of each 2x2 block, not
// averaged.
func packedToI420(dst, src []byte, format PixelFormat, width, height int) {
	chromaW, chromaH := (width+1)/2, (height+1)/2
	yPlane := dst[:width*height]
	uPlane := dst[width*height : width*height+chromaW*chromaH]
	vPlane := dst[width*height+chromaW*chromaH : width*height+2*chromaW*chromaH]

	bpp := format.BytesPerPixel()
	layout := layoutOf(format)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			p := (row*width + col) * bpp
			r := float64(src[p+layout.r])
			g := float64(src[p+layout.g])
			b := float64(src[p+layout.b])

			yPlane[row*width+col] = clip8(int(math.Round(0.299*r + 0.587*g + 0.114*b)))
			if row%2 == 0 && col%2 == 0 {
				uPlane[(row/2)*chromaW+col/2] = clip8(int(math.Round(-0.169*r - 0.331*g + 0.5*b + 128)))
				vPlane[(row/2)*chromaW+col/2] = clip8(int(math.Round(0.5*r - 0.419*g - 0.081*b + 128)))
			}
		}
	}
}

// repackPixels reorders channels between packed family members. Alpha is
// carried over when both formats have it, otherwise written opaque.
func repackPixels(dst, src []byte, srcFormat, dstFormat PixelFormat, width, height int) {
	srcBpp, dstBpp := srcFormat.BytesPerPixel(), dstFormat.BytesPerPixel()
	srcL, dstL := layoutOf(srcFormat), layoutOf(dstFormat)
	for i := 0; i < width*height; i++ {
		sp, dp := i*srcBpp, i*dstBpp
		dst[dp+dstL.r] = src[sp+srcL.r]
		dst[dp+dstL.g] = src[sp+srcL.g]
		dst[dp+dstL.b] = src[sp+srcL.b]
		if dstL.alpha >= 0 {
			if srcL.alpha >= 0 {
				dst[dp+dstL.alpha] = src[sp+srcL.alpha]
			} else {
				dst[dp+dstL.alpha] = 0xFF
			}
		}
		if dstL.pad >= 0 {
			dst[dp+dstL.pad] = 0xFF
		}
	}
}

// yuvFromRGB maps one RGB pixel to YUV with the same rounding as
// packedToI420. Used by the pattern generators to pick plane fill values.
func yuvFromRGB(r, g, b byte) (y, u, v byte) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	y = clip8(int(math.Round(0.299*rf + 0.587*gf + 0.114*bf)))
	u = clip8(int(math.Round(-0.169*rf - 0.331*gf + 0.5*bf + 128)))
	v = clip8(int(math.Round(0.5*rf - 0.419*gf - 0.081*bf + 128)))
	return y, u, v
}
