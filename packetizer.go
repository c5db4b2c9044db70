// RTP packetization of encoded chunks using pion's codec payloaders.
package webcodecs

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// DefaultMTU is the default maximum transmission unit for RTP packets.
const DefaultMTU = 1200

// rtpHeaderSize is subtracted from the MTU to budget the payload.
const rtpHeaderSize = 12

// RTPPacketizer splits encoded video chunks into RTP packets. VP8 and VP9
// payload formats are supported. The final packet of each chunk carries the
// marker bit; chunk timestamps in microseconds map onto the codec's 90 kHz
// RTP clock.
type RTPPacketizer struct {
	codec       VideoCodec
	ssrc        uint32
	payloadType uint8
	mtu         int
	sequencer   rtp.Sequencer
	payloader   rtp.Payloader
	mu          sync.Mutex
}

// NewRTPPacketizer creates a packetizer for codec. mtu <= 0 selects
// DefaultMTU.
func NewRTPPacketizer(codec VideoCodec, ssrc uint32, payloadType uint8, mtu int) (*RTPPacketizer, error) {
	var payloader rtp.Payloader
	switch codec {
	case VideoCodecVP8:
		payloader = &codecs.VP8Payloader{}
	case VideoCodecVP9:
		payloader = &codecs.VP9Payloader{}
	default:
		return nil, fmt.Errorf("%w: RTP payload format for %s", ErrNotSupported, codec)
	}
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &RTPPacketizer{
		codec:       codec,
		ssrc:        ssrc,
		payloadType: payloadType,
		mtu:         mtu,
		sequencer:   rtp.NewRandomSequencer(),
		payloader:   payloader,
	}, nil
}

// Packetize converts one chunk to RTP packets.
func (p *RTPPacketizer) Packetize(chunk *EncodedVideoChunk) ([]*rtp.Packet, error) {
	if chunk.Closed() {
		return nil, fmt.Errorf("%w: chunk closed", ErrInvalidState)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	payloads := p.payloader.Payload(uint16(p.mtu-rtpHeaderSize), chunk.bytes())
	if len(payloads) == 0 {
		return nil, nil
	}

	timestamp := uint32(chunk.Timestamp * int64(p.codec.ClockRate()) / 1_000_000)
	packets := make([]*rtp.Packet, len(payloads))
	for i, payload := range payloads {
		packets[i] = &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == len(payloads)-1,
				PayloadType:    p.payloadType,
				SequenceNumber: p.sequencer.NextSequenceNumber(),
				Timestamp:      timestamp,
				SSRC:           p.ssrc,
			},
			Payload: payload,
		}
	}
	return packets, nil
}

// PacketizeToBytes converts one chunk straight to wire bytes.
func (p *RTPPacketizer) PacketizeToBytes(chunk *EncodedVideoChunk) ([][]byte, error) {
	packets, err := p.Packetize(chunk)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(packets))
	for i, pkt := range packets {
		b, err := pkt.Marshal()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Codec returns the codec the packetizer was built for.
func (p *RTPPacketizer) Codec() VideoCodec { return p.codec }

// opusRTPClockRate is the RTP timestamp clock for Opus, fixed at 48 kHz by
// RFC 7587 regardless of the coded sample rate.
const opusRTPClockRate = 48_000

// RTPAudioPacketizer splits encoded audio chunks into RTP packets. Only Opus
// is supported; Opus packets are self-contained, so every RTP packet carries
// the marker bit.
type RTPAudioPacketizer struct {
	codec       AudioCodec
	ssrc        uint32
	payloadType uint8
	mtu         int
	sequencer   rtp.Sequencer
	payloader   rtp.Payloader
	mu          sync.Mutex
}

// NewRTPAudioPacketizer creates a packetizer for codec. mtu <= 0 selects
// DefaultMTU.
func NewRTPAudioPacketizer(codec AudioCodec, ssrc uint32, payloadType uint8, mtu int) (*RTPAudioPacketizer, error) {
	if codec != AudioCodecOpus {
		return nil, fmt.Errorf("%w: RTP payload format for %s", ErrNotSupported, codec)
	}
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &RTPAudioPacketizer{
		codec:       codec,
		ssrc:        ssrc,
		payloadType: payloadType,
		mtu:         mtu,
		sequencer:   rtp.NewRandomSequencer(),
		payloader:   &codecs.OpusPayloader{},
	}, nil
}

// Packetize converts one chunk to RTP packets.
func (p *RTPAudioPacketizer) Packetize(chunk *EncodedAudioChunk) ([]*rtp.Packet, error) {
	if chunk.Closed() {
		return nil, fmt.Errorf("%w: chunk closed", ErrInvalidState)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	payloads := p.payloader.Payload(uint16(p.mtu-rtpHeaderSize), chunk.bytes())
	if len(payloads) == 0 {
		return nil, nil
	}

	timestamp := uint32(chunk.Timestamp * opusRTPClockRate / 1_000_000)
	packets := make([]*rtp.Packet, len(payloads))
	for i, payload := range payloads {
		packets[i] = &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         true,
				PayloadType:    p.payloadType,
				SequenceNumber: p.sequencer.NextSequenceNumber(),
				Timestamp:      timestamp,
				SSRC:           p.ssrc,
			},
			Payload: payload,
		}
	}
	return packets, nil
}

// Codec returns the codec the packetizer was built for.
func (p *RTPAudioPacketizer) Codec() AudioCodec { return p.codec }

// SSRC returns the stream's synchronization source identifier.
func (p *RTPAudioPacketizer) SSRC() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ssrc
}

// SSRC returns the stream's synchronization source identifier.
func (p *RTPPacketizer) SSRC() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ssrc
}

// MTU returns the packetizer's maximum transmission unit.
func (p *RTPPacketizer) MTU() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mtu
}
