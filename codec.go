package webcodecs

import (
	"fmt"
	"strconv"
	"strings"
)

// CodecState is the lifecycle state of an encoder or decoder controller.
type CodecState int32

const (
	CodecStateUnconfigured CodecState = iota
	CodecStateConfigured
	CodecStateClosed
)

func (s CodecState) String() string {
	switch s {
	case CodecStateUnconfigured:
		return "unconfigured"
	case CodecStateConfigured:
		return "configured"
	case CodecStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// VideoCodec identifies the video codec family.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecH264
	VideoCodecAV1
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecVP8:
		return "vp8"
	case VideoCodecVP9:
		return "vp9"
	case VideoCodecH264:
		return "h264"
	case VideoCodecAV1:
		return "av1"
	default:
		return "unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecVP8:
		return "video/VP8"
	case VideoCodecVP9:
		return "video/VP9"
	case VideoCodecH264:
		return "video/H264"
	case VideoCodecAV1:
		return "video/AV1"
	default:
		return ""
	}
}

// ClockRate returns the RTP clock rate for this codec.
func (c VideoCodec) ClockRate() uint32 {
	// All video codecs use 90kHz clock
	return 90000
}

// DefaultPayloadType returns a typical payload type for this codec.
// Note: Actual payload type is negotiated via SDP.
func (c VideoCodec) DefaultPayloadType() uint8 {
	switch c {
	case VideoCodecVP8:
		return 96
	case VideoCodecVP9:
		return 98
	case VideoCodecH264:
		return 102
	case VideoCodecAV1:
		return 35
	default:
		return 96
	}
}

// AudioCodec identifies the audio codec family.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecOpus
	AudioCodecAAC
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecOpus:
		return "opus"
	case AudioCodecAAC:
		return "aac"
	default:
		return "unknown"
	}
}

// VideoCodecInfo is the parsed form of a video codec identifier string.
// Profile, Level, BitDepth and Tier are populated only for families whose
// grammar carries them.
type VideoCodecInfo struct {
	Codec    VideoCodec
	Profile  int
	Level    int
	BitDepth int
	Tier     byte // AV1 tier, 'M' or 'H'
}

// AudioCodecInfo is the parsed form of an audio codec identifier string.
type AudioCodecInfo struct {
	Codec AudioCodec
}

// vp9Levels is the closed level set of the VP9 codec string registry.
var vp9Levels = map[int]bool{
	10: true, 11: true,
	20: true, 21: true,
	30: true, 31: true,
	40: true, 41: true,
	50: true, 51: true, 52: true,
	60: true, 61: true, 62: true,
}

// h264Profiles is the closed set of avc1 profile_idc bytes.
var h264Profiles = map[int]bool{
	0x42: true, // Baseline
	0x4D: true, // Main
	0x58: true, // Extended
	0x64: true, // High
	0x6E: true, // High 10
	0x7A: true, // High 4:2:2
	0xF4: true, // High 4:4:4 Predictive
}

// ParseVideoCodecString validates a codec identifier against the closed
// per-family grammars and returns its parsed form. Accepted shapes:
//
//	vp8              exact match, no suffix
//	vp09.PP.LL.DD    VP9, four fields or the full nine-field form
//	avc1.PPCCLL      H.264, six hex digits
//	av01.P.LLT.DD    AV1
//
// Anything outside the table reports ErrNotSupported.
func ParseVideoCodecString(s string) (VideoCodecInfo, error) {
	switch {
	case s == "vp8":
		return VideoCodecInfo{Codec: VideoCodecVP8}, nil
	case strings.HasPrefix(s, "vp09."):
		return parseVP9CodecString(s)
	case strings.HasPrefix(s, "avc1."):
		return parseH264CodecString(s)
	case strings.HasPrefix(s, "av01."):
		return parseAV1CodecString(s)
	}
	return VideoCodecInfo{}, fmt.Errorf("%w: codec %q", ErrNotSupported, s)
}

// ParseAudioCodecString validates an audio codec identifier. Accepted:
// "opus" and the AAC object-type forms mp4a.40.2, mp4a.40.5, mp4a.40.29.
func ParseAudioCodecString(s string) (AudioCodecInfo, error) {
	switch s {
	case "opus":
		return AudioCodecInfo{Codec: AudioCodecOpus}, nil
	case "mp4a.40.2", "mp4a.40.5", "mp4a.40.29":
		return AudioCodecInfo{Codec: AudioCodecAAC}, nil
	}
	return AudioCodecInfo{}, fmt.Errorf("%w: codec %q", ErrNotSupported, s)
}

// twoDigits parses a field that must be exactly two ASCII digits.
func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func parseVP9CodecString(s string) (VideoCodecInfo, error) {
	badCodec := func(reason string) (VideoCodecInfo, error) {
		return VideoCodecInfo{}, fmt.Errorf("%w: codec %q: %s", ErrNotSupported, s, reason)
	}

	parts := strings.Split(s, ".")
	if len(parts) != 4 && len(parts) != 9 {
		return badCodec("vp09 takes 4 or 9 fields")
	}
	profile, ok := twoDigits(parts[1])
	if !ok || profile > 3 {
		return badCodec("bad profile")
	}
	level, ok := twoDigits(parts[2])
	if !ok || !vp9Levels[level] {
		return badCodec("bad level")
	}
	depth, ok := twoDigits(parts[3])
	if !ok || (depth != 8 && depth != 10 && depth != 12) {
		return badCodec("bad bit depth")
	}
	if len(parts) == 9 {
		chroma, ok := twoDigits(parts[4])
		if !ok || chroma > 3 {
			return badCodec("bad chroma subsampling")
		}
		for _, field := range parts[5:8] {
			if _, ok := twoDigits(field); !ok {
				return badCodec("bad colour field")
			}
		}
		full, ok := twoDigits(parts[8])
		if !ok || full > 1 {
			return badCodec("bad full-range flag")
		}
	}
	return VideoCodecInfo{Codec: VideoCodecVP9, Profile: profile, Level: level, BitDepth: depth}, nil
}

func parseH264CodecString(s string) (VideoCodecInfo, error) {
	hexPart := strings.TrimPrefix(s, "avc1.")
	if len(hexPart) != 6 {
		return VideoCodecInfo{}, fmt.Errorf("%w: codec %q: avc1 takes six hex digits", ErrNotSupported, s)
	}
	value, err := strconv.ParseUint(hexPart, 16, 32)
	if err != nil {
		return VideoCodecInfo{}, fmt.Errorf("%w: codec %q: bad hex", ErrNotSupported, s)
	}
	profile := int(value >> 16)
	level := int(value & 0xFF)
	if !h264Profiles[profile] {
		return VideoCodecInfo{}, fmt.Errorf("%w: codec %q: unknown profile", ErrNotSupported, s)
	}
	return VideoCodecInfo{Codec: VideoCodecH264, Profile: profile, Level: level}, nil
}

func parseAV1CodecString(s string) (VideoCodecInfo, error) {
	badCodec := func(reason string) (VideoCodecInfo, error) {
		return VideoCodecInfo{}, fmt.Errorf("%w: codec %q: %s", ErrNotSupported, s, reason)
	}

	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return badCodec("av01 takes 4 fields")
	}
	if len(parts[1]) != 1 || parts[1][0] < '0' || parts[1][0] > '2' {
		return badCodec("bad profile")
	}
	profile := int(parts[1][0] - '0')
	if len(parts[2]) != 3 {
		return badCodec("bad level field")
	}
	level, ok := twoDigits(parts[2][:2])
	if !ok || level > 31 {
		return badCodec("bad level")
	}
	tier := parts[2][2]
	if tier != 'M' && tier != 'H' {
		return badCodec("bad tier")
	}
	depth, ok := twoDigits(parts[3])
	if !ok || (depth != 8 && depth != 10 && depth != 12) {
		return badCodec("bad bit depth")
	}
	return VideoCodecInfo{Codec: VideoCodecAV1, Profile: profile, Level: level, BitDepth: depth, Tier: tier}, nil
}
