// Engine seam between the controllers and the native codec bindings.
package webcodecs

import "sync"

// VideoEncoderSession is one open native encode context. Implementations
// serialize calls internally; Close blocks until an in-flight call returns
// and is safe to call more than once.
type VideoEncoderSession interface {
	// Encode submits one frame and returns the compressed units it
	// produced, in order. A nil slice means the codec buffered the input.
	// Chunks carry the frame's timestamp and duration.
	Encode(frame *VideoFrame, forceKeyframe bool) ([]*EncodedVideoChunk, error)
	Close() error
}

// VideoDecoderSession is one open native decode context. Same call rules as
// VideoEncoderSession.
type VideoDecoderSession interface {
	// Decode submits one chunk and returns the frames it produced, in
	// order. A nil slice means the codec buffered the input.
	Decode(chunk *EncodedVideoChunk) ([]*VideoFrame, error)
	Close() error
}

// CodecEngine opens native video codec sessions. Engines report capability
// by codec family; opening may still fail when the underlying library
// rejects the configuration.
type CodecEngine interface {
	Name() string
	SupportsVideoEncode(codec VideoCodec) bool
	SupportsVideoDecode(codec VideoCodec) bool
	OpenVideoEncoder(config VideoEncoderConfig) (VideoEncoderSession, error)
	OpenVideoDecoder(config VideoDecoderConfig) (VideoDecoderSession, error)
}

// AudioDecoderSession is one open audio decode context.
type AudioDecoderSession interface {
	Decode(chunk *EncodedAudioChunk) ([]*AudioData, error)
	Close() error
}

// AudioEngine opens audio codec sessions.
type AudioEngine interface {
	Name() string
	SupportsDecode(codec AudioCodec) bool
	OpenDecoder(config AudioDecoderConfig) (AudioDecoderSession, error)
}

var (
	engineMu           sync.RWMutex
	defaultVideoEngine CodecEngine
	defaultAudioEngine AudioEngine
)

// SetDefaultEngine installs the process-wide video engine used by
// controllers constructed without an explicit one. The libvpx engine
// installs itself at init when its native library loads.
func SetDefaultEngine(engine CodecEngine) {
	engineMu.Lock()
	defaultVideoEngine = engine
	engineMu.Unlock()
}

// DefaultEngine returns the process-wide video engine, nil when none is
// installed.
func DefaultEngine() CodecEngine {
	engineMu.RLock()
	defer engineMu.RUnlock()
	return defaultVideoEngine
}

// SetDefaultAudioEngine installs the process-wide audio engine.
func SetDefaultAudioEngine(engine AudioEngine) {
	engineMu.Lock()
	defaultAudioEngine = engine
	engineMu.Unlock()
}

// DefaultAudioEngine returns the process-wide audio engine, nil when none
// is installed.
func DefaultAudioEngine() AudioEngine {
	engineMu.RLock()
	defer engineMu.RUnlock()
	return defaultAudioEngine
}
