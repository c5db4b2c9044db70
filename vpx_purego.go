//go:build (darwin || linux) && !novpx

// VP8/VP9 codec engine backed by libwebcodecs_vpx via purego.
//
// libwebcodecs_vpx is a thin wrapper around libvpx with a primitive-only
// API, loaded dynamically at runtime. Library locations checked (in order):
//   - WEBCODECS_VPX_LIB_PATH environment variable
//   - executable directory and its lib/ sibling
//   - build/ under the working directory and the module root
//   - system library paths

package webcodecs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/sirupsen/logrus"
)

var (
	vpxOnce    sync.Once
	vpxHandle  uintptr
	vpxInitErr error
	vpxLoaded  bool
)

// libwebcodecs_vpx function pointers
var (
	vpxEncoderCreate        func(codec, width, height, fps, bitrateKbps, threads int32) uint64
	vpxEncoderEncode        func(encoder uint64, yPlane, uPlane, vPlane uintptr, yStride, uvStride, forceKeyframe int32, outData uintptr, outCapacity int32, outFrameType uintptr) int32
	vpxEncoderMaxOutputSize func(encoder uint64) int32
	vpxEncoderDestroy       func(encoder uint64)

	vpxDecoderCreate  func(codec, threads int32) uint64
	vpxDecoderDecode  func(decoder uint64, data uintptr, dataLen int32, resultOut uintptr) int32
	vpxDecoderDestroy func(decoder uint64)

	vpxGetError       func() uintptr
	vpxCodecAvailable func(codec int32) int32
)

// vpxDecodeResult matches webcodecs_vpx_decode_result_t in C.
// The struct must be heap-allocated for purego to work correctly on arm64.
type vpxDecodeResult struct {
	YPtr     uint64 // Pointer to Y plane
	UPtr     uint64 // Pointer to U plane
	VPtr     uint64 // Pointer to V plane
	YStride  int32  // Y plane stride
	UVStride int32  // UV plane stride
	Width    int32  // Frame width
	Height   int32  // Frame height
	Result   int32  // 1=decoded, 0=buffering, <0=error
	Reserved int32  // Padding for alignment
}

// Constants from webcodecs_vpx.h
const (
	vpxCodecVP8 = 0
	vpxCodecVP9 = 1

	vpxFrameKey   = 0
	vpxFrameDelta = 1

	vpxDefaultThreads = 4
)

// loadVPX loads the libwebcodecs_vpx shared library once.
func loadVPX() error {
	vpxOnce.Do(func() {
		vpxInitErr = loadVPXLib()
		if vpxInitErr == nil {
			vpxLoaded = true
		}
	})
	return vpxInitErr
}

func loadVPXLib() error {
	var lastErr error
	for _, path := range vpxLibPaths() {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		vpxHandle = handle
		registerVPXSymbols()
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("failed to load libwebcodecs_vpx: %w", lastErr)
	}
	return errors.New("libwebcodecs_vpx not found in any standard location")
}

func vpxLibPaths() []string {
	libName := "libwebcodecs_vpx.so"
	if runtime.GOOS == "darwin" {
		libName = "libwebcodecs_vpx.dylib"
	}

	var paths []string
	if envPath := os.Getenv("WEBCODECS_VPX_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	if wd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(wd, "build", libName),
			filepath.Join(wd, "..", "build", libName),
			filepath.Join(wd, "..", "..", "build", libName),
		)
	}

	if root := findModuleRoot(); root != "" {
		paths = append(paths, filepath.Join(root, "build", libName))
	}

	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/opt/homebrew/lib/"+libName,
		)
	case "linux":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/usr/lib/"+libName,
		)
	}

	return paths
}

func registerVPXSymbols() {
	purego.RegisterLibFunc(&vpxEncoderCreate, vpxHandle, "webcodecs_vpx_encoder_create")
	purego.RegisterLibFunc(&vpxEncoderEncode, vpxHandle, "webcodecs_vpx_encoder_encode")
	purego.RegisterLibFunc(&vpxEncoderMaxOutputSize, vpxHandle, "webcodecs_vpx_encoder_max_output_size")
	purego.RegisterLibFunc(&vpxEncoderDestroy, vpxHandle, "webcodecs_vpx_encoder_destroy")

	purego.RegisterLibFunc(&vpxDecoderCreate, vpxHandle, "webcodecs_vpx_decoder_create")
	purego.RegisterLibFunc(&vpxDecoderDecode, vpxHandle, "webcodecs_vpx_decoder_decode")
	purego.RegisterLibFunc(&vpxDecoderDestroy, vpxHandle, "webcodecs_vpx_decoder_destroy")

	purego.RegisterLibFunc(&vpxGetError, vpxHandle, "webcodecs_vpx_get_error")
	purego.RegisterLibFunc(&vpxCodecAvailable, vpxHandle, "webcodecs_vpx_codec_available")
}

// VPXAvailable reports whether libwebcodecs_vpx could be loaded.
func VPXAvailable() bool {
	if err := loadVPX(); err != nil {
		return false
	}
	return vpxLoaded
}

// VP8Available reports whether the VP8 codec is usable.
func VP8Available() bool {
	return VPXAvailable() && vpxCodecAvailable(vpxCodecVP8) != 0
}

// VP9Available reports whether the VP9 codec is usable.
func VP9Available() bool {
	return VPXAvailable() && vpxCodecAvailable(vpxCodecVP9) != 0
}

func vpxLastError() string {
	ptr := vpxGetError()
	if ptr == 0 {
		return "unknown error"
	}
	return goStringFromPtr(ptr)
}

func vpxCodecType(codec VideoCodec) (int32, error) {
	switch codec {
	case VideoCodecVP8:
		return vpxCodecVP8, nil
	case VideoCodecVP9:
		return vpxCodecVP9, nil
	}
	return 0, fmt.Errorf("%w: codec %s", ErrNotSupported, codec)
}

// vpxEngine is the CodecEngine over libwebcodecs_vpx. It installs itself as
// the process default at init when the library loads.
type vpxEngine struct{}

func (vpxEngine) Name() string { return "libvpx" }

func (vpxEngine) SupportsVideoEncode(codec VideoCodec) bool {
	switch codec {
	case VideoCodecVP8:
		return VP8Available()
	case VideoCodecVP9:
		return VP9Available()
	}
	return false
}

func (vpxEngine) SupportsVideoDecode(codec VideoCodec) bool {
	switch codec {
	case VideoCodecVP8:
		return VP8Available()
	case VideoCodecVP9:
		return VP9Available()
	}
	return false
}

func (vpxEngine) OpenVideoEncoder(config VideoEncoderConfig) (VideoEncoderSession, error) {
	if err := loadVPX(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSupported, err)
	}
	info, err := ParseVideoCodecString(config.Codec)
	if err != nil {
		return nil, err
	}
	codecType, err := vpxCodecType(info.Codec)
	if err != nil {
		return nil, err
	}

	fps := int32(config.Framerate + 0.5)
	if fps <= 0 {
		fps = 30
	}
	bitrateKbps := int32(config.Bitrate / 1000)
	if bitrateKbps <= 0 {
		bitrateKbps = 1000
	}

	handle := vpxEncoderCreate(
		codecType,
		int32(config.Width),
		int32(config.Height),
		fps,
		bitrateKbps,
		vpxDefaultThreads,
	)
	if handle == 0 {
		return nil, fmt.Errorf("failed to create %s encoder: %s", info.Codec, vpxLastError())
	}

	maxOutput := vpxEncoderMaxOutputSize(handle)
	if maxOutput <= 0 {
		maxOutput = int32(config.Width * config.Height * 3 / 2)
	}

	return &vpxEncoderSession{
		codec:   info.Codec,
		width:   config.Width,
		height:  config.Height,
		handle:  handle,
		scratch: make([]byte, maxOutput),
	}, nil
}

func (vpxEngine) OpenVideoDecoder(config VideoDecoderConfig) (VideoDecoderSession, error) {
	if err := loadVPX(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSupported, err)
	}
	info, err := ParseVideoCodecString(config.Codec)
	if err != nil {
		return nil, err
	}
	codecType, err := vpxCodecType(info.Codec)
	if err != nil {
		return nil, err
	}

	handle := vpxDecoderCreate(codecType, vpxDefaultThreads)
	if handle == 0 {
		return nil, fmt.Errorf("failed to create %s decoder: %s", info.Codec, vpxLastError())
	}

	return &vpxDecoderSession{
		codec:  info.Codec,
		handle: handle,
		result: &vpxDecodeResult{}, // heap-allocated for the arm64 purego path
	}, nil
}

// vpxEncoderSession is one open libvpx encode context.
type vpxEncoderSession struct {
	codec  VideoCodec
	width  int
	height int

	mu      sync.Mutex
	handle  uint64
	scratch []byte // native output buffer
	conv    []byte // I420 conversion buffer, grown on demand
}

func (s *vpxEncoderSession) Encode(frame *VideoFrame, forceKeyframe bool) ([]*EncodedVideoChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 {
		return nil, ErrSessionLost
	}
	if frame.CodedWidth != s.width || frame.CodedHeight != s.height {
		return nil, fmt.Errorf("frame is %dx%d, session configured for %dx%d",
			frame.CodedWidth, frame.CodedHeight, s.width, s.height)
	}

	pix := frame.pixels()
	if pix == nil {
		return nil, errors.New("frame closed")
	}
	if frame.Format != PixelFormatI420 {
		size, err := allocationSize(PixelFormatI420, s.width, s.height)
		if err != nil {
			return nil, err
		}
		if cap(s.conv) < size {
			s.conv = make([]byte, size)
		}
		s.conv = s.conv[:size]
		if err := convertPixels(s.conv, pix, frame.Format, PixelFormatI420, s.width, s.height); err != nil {
			return nil, err
		}
		pix = s.conv
	}

	chromaW, chromaH := (s.width+1)/2, (s.height+1)/2
	yPlane := pix[:s.width*s.height]
	uPlane := pix[s.width*s.height : s.width*s.height+chromaW*chromaH]
	vPlane := pix[s.width*s.height+chromaW*chromaH:]

	force := int32(0)
	if forceKeyframe {
		force = 1
	}

	var frameType int32
	n := vpxEncoderEncode(
		s.handle,
		uintptr(unsafe.Pointer(&yPlane[0])),
		uintptr(unsafe.Pointer(&uPlane[0])),
		uintptr(unsafe.Pointer(&vPlane[0])),
		int32(s.width),
		int32(chromaW),
		force,
		uintptr(unsafe.Pointer(&s.scratch[0])),
		int32(len(s.scratch)),
		uintptr(unsafe.Pointer(&frameType)),
	)
	runtime.KeepAlive(pix)
	runtime.KeepAlive(s.scratch)

	if n < 0 {
		return nil, fmt.Errorf("encode failed: %s", vpxLastError())
	}
	if n == 0 {
		return nil, nil // codec buffered the frame
	}

	data := make([]byte, n)
	copy(data, s.scratch[:n])
	typ := ChunkTypeDelta
	if frameType == vpxFrameKey {
		typ = ChunkTypeKey
	}
	return []*EncodedVideoChunk{
		newAdoptedVideoChunk(data, typ, frame.Timestamp, frame.Duration),
	}, nil
}

func (s *vpxEncoderSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != 0 {
		vpxEncoderDestroy(s.handle)
		s.handle = 0
	}
	return nil
}

// vpxDecoderSession is one open libvpx decode context.
type vpxDecoderSession struct {
	codec VideoCodec

	mu     sync.Mutex
	handle uint64
	result *vpxDecodeResult
}

func (s *vpxDecoderSession) Decode(chunk *EncodedVideoChunk) ([]*VideoFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == 0 {
		return nil, ErrSessionLost
	}
	data := chunk.bytes()
	if len(data) == 0 {
		return nil, errors.New("empty chunk payload")
	}

	out := s.result
	r := vpxDecoderDecode(
		s.handle,
		uintptr(unsafe.Pointer(&data[0])),
		int32(len(data)),
		uintptr(unsafe.Pointer(out)),
	)
	runtime.KeepAlive(data)
	// Keep the struct alive during and after the C call
	runtime.KeepAlive(out)

	if r < 0 {
		return nil, fmt.Errorf("decode failed: %s", vpxLastError())
	}
	if r == 0 {
		return nil, nil // buffering, no frame yet
	}

	w, h := int(out.Width), int(out.Height)
	if w <= 0 || h <= 0 || out.YPtr == 0 || out.YStride <= 0 || out.UVStride <= 0 {
		return nil, fmt.Errorf("invalid decoder output: stride=%d/%d, size=%dx%d",
			out.YStride, out.UVStride, w, h)
	}

	chromaW, chromaH := (w+1)/2, (h+1)/2
	buf := make([]byte, w*h+2*chromaW*chromaH)
	yDst := buf[:w*h]
	uDst := buf[w*h : w*h+chromaW*chromaH]
	vDst := buf[w*h+chromaW*chromaH:]

	for row := 0; row < h; row++ {
		src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(out.YPtr)+uintptr(row*int(out.YStride)))), w)
		copy(yDst[row*w:row*w+w], src)
	}
	for row := 0; row < chromaH; row++ {
		src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(out.UPtr)+uintptr(row*int(out.UVStride)))), chromaW)
		copy(uDst[row*chromaW:row*chromaW+chromaW], src)
	}
	for row := 0; row < chromaH; row++ {
		src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(out.VPtr)+uintptr(row*int(out.UVStride)))), chromaW)
		copy(vDst[row*chromaW:row*chromaW+chromaW], src)
	}

	frame := newAdoptedFrame(buf, VideoFrameInit{
		Format:      PixelFormatI420,
		CodedWidth:  w,
		CodedHeight: h,
		Timestamp:   chunk.Timestamp,
		Duration:    chunk.Duration,
	})
	return []*VideoFrame{frame}, nil
}

func (s *vpxDecoderSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != 0 {
		vpxDecoderDestroy(s.handle)
		s.handle = 0
	}
	return nil
}

// Install the libvpx engine as the process default when the native library
// is present.
func init() {
	if err := loadVPX(); err != nil {
		logrus.WithField("component", "webcodecs").WithError(err).Debug("libvpx engine unavailable")
		return
	}
	vp8 := vpxCodecAvailable(vpxCodecVP8) != 0
	vp9 := vpxCodecAvailable(vpxCodecVP9) != 0
	if !vp8 && !vp9 {
		return
	}
	SetDefaultEngine(vpxEngine{})
	logrus.WithFields(logrus.Fields{
		"component": "webcodecs",
		"vp8":       vp8,
		"vp9":       vp9,
	}).Debug("installed libvpx codec engine")
}
