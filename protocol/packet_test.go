package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	codec, err := NewCodec(DefaultPacketSize)
	if err != nil {
		t.Fatalf("new codec failed %v", err)
	}
	rnd := rand.New(rand.NewSource(42))
	cases := []struct {
		seq  uint32
		size int
	}{
		{0, 0},
		{0, 12},
		{1, 984},
		{2, 1},
		{3, 532},
		{0xFFFFFFFF, 983},
	}
	for _, c := range cases {
		payload := make([]byte, c.size)
		rnd.Read(payload)
		wire, err := codec.Encode(c.seq, payload)
		if err != nil {
			t.Fatalf("encode seq %d failed %v", c.seq, err)
		}
		if len(wire) != DefaultPacketSize {
			t.Errorf("wire size %d, want %d", len(wire), DefaultPacketSize)
		}
		p, err := codec.Decode(wire)
		if err != nil {
			t.Fatalf("decode seq %d failed %v", c.seq, err)
		}
		if p.SequenceNumber != c.seq {
			t.Errorf("seq %d, want %d", p.SequenceNumber, c.seq)
		}
		if !bytes.Equal(p.Data(), payload) {
			t.Errorf("seq %d payload mismatch", c.seq)
		}
		if p.Checksum != Checksum(c.seq, payload) {
			t.Errorf("seq %d checksum %d, want %d", c.seq, p.Checksum, Checksum(c.seq, payload))
		}
	}
}

func TestPayloadTooLarge(t *testing.T) {
	codec, _ := NewCodec(DefaultPacketSize)
	if _, err := codec.Encode(1, make([]byte, 985)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestNewCodecRejectsTinyPackets(t *testing.T) {
	if _, err := NewCodec(HeaderSize); !errors.Is(err, ErrPacketSize) {
		t.Errorf("expected ErrPacketSize, got %v", err)
	}
}

func TestSingleBitFlip(t *testing.T) {
	codec, _ := NewCodec(DefaultPacketSize)
	payload := []byte("out/copy.bin and some more bytes")
	wire, _ := codec.Encode(7, payload)
	end := HeaderSize + len(payload)
	for i := 0; i < end; i++ {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), wire...)
			flipped[i] ^= 1 << bit
			if _, err := codec.Decode(flipped); !errors.Is(err, ErrChecksumMismatch) {
				t.Fatalf("flip byte %d bit %d: expected checksum mismatch, got %v", i, bit, err)
			}
		}
	}
}

// 未使用的尾部不参与校验
func TestTailNotCovered(t *testing.T) {
	codec, _ := NewCodec(DefaultPacketSize)
	wire, _ := codec.Encode(3, []byte("abc"))
	wire[len(wire)-1] = 0xFF
	p, err := codec.Decode(wire)
	if err != nil {
		t.Fatalf("stale tail must not affect checksum, got %v", err)
	}
	if string(p.Data()) != "abc" {
		t.Errorf("payload %q", p.Data())
	}
}

func TestDecodeMalformed(t *testing.T) {
	codec, _ := NewCodec(DefaultPacketSize)
	if _, err := codec.Decode(make([]byte, 5)); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("expected ErrMalformedPacket, got %v", err)
	}
	wire, _ := codec.Encode(1, []byte("x"))
	binary.BigEndian.PutUint32(wire[lengthOffset:], 5000)
	if _, err := codec.Decode(wire); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch for oversize length, got %v", err)
	}
	if !IsCorrupt(ErrMalformedPacket) || IsCorrupt(errors.New("other")) {
		t.Errorf("IsCorrupt classification wrong")
	}
}

// 所有零字节的数据报必须被识别为损坏
func TestZeroDatagram(t *testing.T) {
	codec, _ := NewCodec(DefaultPacketSize)
	if _, err := codec.Decode(make([]byte, DefaultPacketSize)); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected checksum mismatch, got %v", err)
	}
}
