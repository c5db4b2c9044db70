package webcodecs

import (
	"errors"
	"testing"

	"github.com/pion/rtp"
)

func TestRTPPacketizer_SingleChunk(t *testing.T) {
	pkt, err := NewRTPPacketizer(VideoCodecVP8, 12345, 96, 1200)
	if err != nil {
		t.Fatalf("NewRTPPacketizer failed: %v", err)
	}

	payload := make([]byte, 500)
	for i := range payload {
		payload[i] = byte(i)
	}
	chunk := testChunk(t, ChunkTypeKey, 1_000_000, payload...)
	defer chunk.Close()

	packets, err := pkt.Packetize(chunk)
	if err != nil {
		t.Fatalf("Packetize failed: %v", err)
	}
	if len(packets) == 0 {
		t.Fatal("no packets produced")
	}

	if packets[0].Header.SSRC != 12345 {
		t.Errorf("SSRC = %d, want 12345", packets[0].Header.SSRC)
	}
	if packets[0].Header.PayloadType != 96 {
		t.Errorf("PayloadType = %d, want 96", packets[0].Header.PayloadType)
	}
	// 1s in microseconds maps to 90000 ticks on the 90 kHz clock.
	if packets[0].Header.Timestamp != 90000 {
		t.Errorf("Timestamp = %d, want 90000", packets[0].Header.Timestamp)
	}
	if !packets[len(packets)-1].Header.Marker {
		t.Error("last packet should have marker bit set")
	}
}

func TestRTPPacketizer_LargeChunk(t *testing.T) {
	pkt, err := NewRTPPacketizer(VideoCodecVP8, 12345, 96, 1200)
	if err != nil {
		t.Fatalf("NewRTPPacketizer failed: %v", err)
	}

	chunk := testChunk(t, ChunkTypeKey, 0, make([]byte, 10_000)...)
	defer chunk.Close()

	packets, err := pkt.Packetize(chunk)
	if err != nil {
		t.Fatalf("Packetize failed: %v", err)
	}
	if len(packets) < 2 {
		t.Fatalf("expected multiple packets for a 10000 byte chunk, got %d", len(packets))
	}

	for i, p := range packets {
		if i < len(packets)-1 && p.Header.Marker {
			t.Errorf("packet %d should not have marker", i)
		}
		if p.Header.Timestamp != packets[0].Header.Timestamp {
			t.Errorf("packet %d timestamp = %d, want %d", i, p.Header.Timestamp, packets[0].Header.Timestamp)
		}
		if i > 0 && p.Header.SequenceNumber != packets[i-1].Header.SequenceNumber+1 {
			t.Errorf("packet %d sequence = %d, want %d", i, p.Header.SequenceNumber, packets[i-1].Header.SequenceNumber+1)
		}
	}
	if !packets[len(packets)-1].Header.Marker {
		t.Error("last packet should have marker")
	}
	t.Logf("packetized 10000 bytes into %d packets", len(packets))
}

func TestRTPPacketizer_VP9(t *testing.T) {
	pkt, err := NewRTPPacketizer(VideoCodecVP9, 12345, 98, 1200)
	if err != nil {
		t.Fatalf("NewRTPPacketizer failed: %v", err)
	}
	if pkt.Codec() != VideoCodecVP9 {
		t.Errorf("Codec() = %v, want VP9", pkt.Codec())
	}
	if pkt.SSRC() != 12345 {
		t.Errorf("SSRC() = %d, want 12345", pkt.SSRC())
	}
	if pkt.MTU() != 1200 {
		t.Errorf("MTU() = %d, want 1200", pkt.MTU())
	}

	chunk := testChunk(t, ChunkTypeKey, 0, make([]byte, 500)...)
	defer chunk.Close()

	packets, err := pkt.Packetize(chunk)
	if err != nil {
		t.Fatalf("Packetize failed: %v", err)
	}
	for i, p := range packets {
		if p.Header.PayloadType != 98 {
			t.Errorf("packet %d PayloadType = %d, want 98", i, p.Header.PayloadType)
		}
	}
}

func TestRTPPacketizer_UnsupportedCodec(t *testing.T) {
	for _, codec := range []VideoCodec{VideoCodecH264, VideoCodecAV1, VideoCodecUnknown} {
		_, err := NewRTPPacketizer(codec, 12345, 96, 1200)
		if !errors.Is(err, ErrNotSupported) {
			t.Errorf("NewRTPPacketizer(%v) error = %v, want ErrNotSupported", codec, err)
		}
	}
}

func TestRTPPacketizer_ClosedChunk(t *testing.T) {
	pkt, err := NewRTPPacketizer(VideoCodecVP8, 12345, 96, 1200)
	if err != nil {
		t.Fatalf("NewRTPPacketizer failed: %v", err)
	}

	chunk := testChunk(t, ChunkTypeKey, 0)
	chunk.Close()

	if _, err := pkt.Packetize(chunk); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Packetize(closed chunk) error = %v, want ErrInvalidState", err)
	}
}

func TestRTPPacketizer_DefaultMTU(t *testing.T) {
	pkt, err := NewRTPPacketizer(VideoCodecVP8, 1, 96, 0)
	if err != nil {
		t.Fatalf("NewRTPPacketizer failed: %v", err)
	}
	if pkt.MTU() != DefaultMTU {
		t.Errorf("MTU() = %d, want %d", pkt.MTU(), DefaultMTU)
	}
}

func TestRTPPacketizer_ToBytes(t *testing.T) {
	pkt, err := NewRTPPacketizer(VideoCodecVP8, 12345, 96, 1200)
	if err != nil {
		t.Fatalf("NewRTPPacketizer failed: %v", err)
	}

	chunk := testChunk(t, ChunkTypeKey, 0, make([]byte, 500)...)
	defer chunk.Close()

	wire, err := pkt.PacketizeToBytes(chunk)
	if err != nil {
		t.Fatalf("PacketizeToBytes failed: %v", err)
	}
	if len(wire) == 0 {
		t.Fatal("no packet bytes produced")
	}

	for _, data := range wire {
		var p rtp.Packet
		if err := p.Unmarshal(data); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if p.Header.SSRC != 12345 {
			t.Errorf("SSRC = %d after round-trip, want 12345", p.Header.SSRC)
		}
	}
}

func TestRTPAudioPacketizer(t *testing.T) {
	pkt, err := NewRTPAudioPacketizer(AudioCodecOpus, 54321, 111, 1200)
	if err != nil {
		t.Fatalf("NewRTPAudioPacketizer failed: %v", err)
	}
	if pkt.Codec() != AudioCodecOpus {
		t.Errorf("Codec() = %v, want opus", pkt.Codec())
	}
	if pkt.SSRC() != 54321 {
		t.Errorf("SSRC() = %d, want 54321", pkt.SSRC())
	}

	// A 20ms Opus packet at 1s maps to 48000 ticks on the 48 kHz clock.
	chunk := audioChunk(t, ChunkTypeKey, 1_000_000, make([]byte, 120)...)
	defer chunk.Close()

	packets, err := pkt.Packetize(chunk)
	if err != nil {
		t.Fatalf("Packetize failed: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("got %d packets for a 120 byte chunk, want 1", len(packets))
	}
	if packets[0].Header.PayloadType != 111 {
		t.Errorf("PayloadType = %d, want 111", packets[0].Header.PayloadType)
	}
	if packets[0].Header.Timestamp != 48000 {
		t.Errorf("Timestamp = %d, want 48000", packets[0].Header.Timestamp)
	}
	if !packets[0].Header.Marker {
		t.Error("audio packet should carry the marker bit")
	}
}

func TestRTPAudioPacketizer_Unsupported(t *testing.T) {
	if _, err := NewRTPAudioPacketizer(AudioCodecAAC, 1, 96, 1200); !errors.Is(err, ErrNotSupported) {
		t.Errorf("NewRTPAudioPacketizer(aac) error = %v, want ErrNotSupported", err)
	}
}

func BenchmarkRTPPacketize(b *testing.B) {
	pkt, err := NewRTPPacketizer(VideoCodecVP8, 12345, 96, 1200)
	if err != nil {
		b.Fatal(err)
	}
	chunk, err := NewEncodedVideoChunk(EncodedVideoChunkInit{
		Type:      ChunkTypeDelta,
		Timestamp: 33_333,
		Data:      make([]byte, 10_000),
	})
	if err != nil {
		b.Fatal(err)
	}
	defer chunk.Close()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := pkt.Packetize(chunk); err != nil {
			b.Fatal(err)
		}
	}
}
