package protocol

import (
	"crypto/md5"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestAck(t *testing.T) {
	for _, kind := range []AckKind{ACK, NAK} {
		ack, err := DecodeAck(EncodeAck(kind, 42))
		if err != nil {
			t.Fatalf("decode %s failed %v", kind, err)
		}
		if ack.Kind != kind || ack.Sequence != 42 {
			t.Errorf("got %+v", ack)
		}
	}
}

func TestAckGarbled(t *testing.T) {
	cases := map[string][]byte{
		"empty":        nil,
		"legacy":       []byte("notCorrupted"),
		"short":        EncodeAck(ACK, 1)[:8],
		"unknown kind": EncodeAck(AckKind(7), 1),
	}
	flipped := EncodeAck(ACK, 1)
	flipped[2] ^= 0x10
	cases["flipped"] = flipped

	for name, b := range cases {
		if _, err := DecodeAck(b); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%s: expected ErrMalformedResponse, got %v", name, err)
		}
	}
}

func TestAnnouncement(t *testing.T) {
	data := []byte("hello world")
	a := Announcement{
		TransferID: uuid.New(),
		TotalUnits: 3,
		FileSize:   uint64(len(data)),
		MD5:        md5.Sum(data),
		Path:       "out/copy.bin",
	}
	got, err := UnmarshalAnnouncement(a.Marshal())
	if err != nil {
		t.Fatalf("unmarshal failed %v", err)
	}
	if got != a {
		t.Errorf("got %+v, want %+v", got, a)
	}
	if MaxPathLength(984) != 940 {
		t.Errorf("max path length %d", MaxPathLength(984))
	}
}

func TestAnnouncementRejectsEmptyPath(t *testing.T) {
	a := Announcement{TransferID: uuid.New(), TotalUnits: 1}
	if _, err := UnmarshalAnnouncement(a.Marshal()); !errors.Is(err, ErrBadAnnouncement) {
		t.Errorf("expected ErrBadAnnouncement, got %v", err)
	}
	b := a.Marshal()
	b = append(b, 0xff, 0xfe)
	if _, err := UnmarshalAnnouncement(b); !errors.Is(err, ErrBadAnnouncement) {
		t.Errorf("expected ErrBadAnnouncement for invalid utf-8, got %v", err)
	}
}
