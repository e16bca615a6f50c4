package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// AckKind 确认类型
type AckKind byte

const (
	NAK AckKind = 0x00
	ACK AckKind = 0x01

	// [kind 1][sequence 4][crc32 4]
	AckSize = 9
)

var ErrMalformedResponse = errors.New("malformed response")

func (k AckKind) String() string {
	switch k {
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	default:
		return fmt.Sprintf("AckKind(%d)", byte(k))
	}
}

// Ack 接收方对某个单元的应答
type Ack struct {
	Kind     AckKind
	Sequence uint32
}

// EncodeAck 编码带校验的应答
func EncodeAck(kind AckKind, seq uint32) []byte {
	buf := make([]byte, AckSize)
	buf[0] = byte(kind)
	binary.BigEndian.PutUint32(buf[1:5], seq)
	binary.BigEndian.PutUint32(buf[5:9], crc32.ChecksumIEEE(buf[:5]))
	return buf
}

// DecodeAck 解析应答，无法识别时返回 ErrMalformedResponse
func DecodeAck(b []byte) (Ack, error) {
	if len(b) != AckSize {
		return Ack{}, fmt.Errorf("%w: %d bytes", ErrMalformedResponse, len(b))
	}
	if crc32.ChecksumIEEE(b[:5]) != binary.BigEndian.Uint32(b[5:9]) {
		return Ack{}, fmt.Errorf("%w: bad checksum", ErrMalformedResponse)
	}
	kind := AckKind(b[0])
	if kind != ACK && kind != NAK {
		return Ack{}, fmt.Errorf("%w: unknown kind %#x", ErrMalformedResponse, b[0])
	}
	return Ack{Kind: kind, Sequence: binary.BigEndian.Uint32(b[1:5])}, nil
}
