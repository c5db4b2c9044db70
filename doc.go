// Package webcodecs provides WebCodecs-style encode and decode controllers
// in Go, backed by a native libvpx wrapper loaded via purego.
//
// Key pieces include:
//   - VideoEncoder/VideoDecoder controllers with queued submission and
//     callback-based output delivery
//   - VideoFrame, EncodedVideoChunk, AudioData and EncodedAudioChunk sample
//     types with copy-on-construct ownership
//   - Pixel format conversion between I420 and the packed RGB family
//   - AudioDecoder over the pure Go pion/opus decoder
//   - RTP packetization of encoded chunks and test pattern generation
//
// # Architecture
//
//	Encode: VideoFrame -> VideoEncoder.Encode -> Flush -> chunk callback -> RTPPacketizer
//	Decode: EncodedVideoChunk -> VideoDecoder.Decode -> Flush -> frame callback
//
// Controllers queue work without blocking; Flush drains the queue in FIFO
// order and drives the callbacks. State moves between unconfigured,
// configured and closed, with closed absorbing.
//
// # Native Libraries
//
// The VP8/VP9 engine loads libwebcodecs_vpx, a thin wrapper around libvpx,
// at runtime. Set WEBCODECS_VPX_LIB_PATH to its location; build/ under the
// module root and the usual system paths are also searched. Without the
// library the engine is absent and video configure reports not-supported
// through the error callback. The Opus decode path is pure Go and always
// available.
//
// # Build Tags
//
// The novpx tag disables the native VP8/VP9 engine entirely.
package webcodecs
