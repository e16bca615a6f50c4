package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// 数据包格式
// <checksum>----<sequence number>----<payload length>----<payload>
// <8 bytes>-----<4 bytes>------------<4 bytes>-----------<packetSize-16 bytes>
const (
	DefaultPacketSize = 1000
	HeaderSize        = 16

	checksumOffset = 0
	seqOffset      = 8
	lengthOffset   = 12
)

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrMalformedPacket  = errors.New("malformed packet")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrPacketSize       = errors.New("invalid packet size")
)

// Packet 线路上传输的数据单元
type Packet struct {
	Checksum       uint64
	SequenceNumber uint32
	PayloadLength  uint32
	Payload        []byte
}

// Data 返回有效的负载部分
func (p Packet) Data() []byte {
	return p.Payload[:p.PayloadLength]
}

// Codec 固定大小数据包的编解码器
type Codec struct {
	PacketSize int
}

// NewCodec 创建编解码器，packetSize 必须大于头部长度
func NewCodec(packetSize int) (Codec, error) {
	if packetSize <= HeaderSize {
		return Codec{}, fmt.Errorf("%w: %d", ErrPacketSize, packetSize)
	}
	return Codec{PacketSize: packetSize}, nil
}

// Capacity 每个数据包可承载的最大负载字节数
func (c Codec) Capacity() int {
	return c.PacketSize - HeaderSize
}

// Encode 编码一个数据包。每次都使用新分配的缓冲区，未使用的尾部始终为零
func (c Codec) Encode(seq uint32, payload []byte) ([]byte, error) {
	if len(payload) > c.Capacity() {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), c.Capacity())
	}
	buf := make([]byte, c.PacketSize)
	binary.BigEndian.PutUint32(buf[seqOffset:], seq)
	binary.BigEndian.PutUint32(buf[lengthOffset:], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	binary.BigEndian.PutUint64(buf[checksumOffset:], covered(buf, len(payload)))
	return buf, nil
}

// Decode 解析数据包并校验 checksum
func (c Codec) Decode(wire []byte) (Packet, error) {
	if len(wire) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(wire))
	}
	p := Packet{
		Checksum:       binary.BigEndian.Uint64(wire[checksumOffset:]),
		SequenceNumber: binary.BigEndian.Uint32(wire[seqOffset:]),
		PayloadLength:  binary.BigEndian.Uint32(wire[lengthOffset:]),
	}
	// 长度字段被破坏时无法计算校验范围，按校验失败处理
	if int64(p.PayloadLength) > int64(len(wire)-HeaderSize) {
		return Packet{}, fmt.Errorf("%w: payload length %d exceeds %d",
			ErrChecksumMismatch, p.PayloadLength, len(wire)-HeaderSize)
	}
	if sum := covered(wire, int(p.PayloadLength)); sum != p.Checksum {
		return Packet{}, fmt.Errorf("%w: got %d, want %d", ErrChecksumMismatch, p.Checksum, sum)
	}
	p.Payload = make([]byte, len(wire)-HeaderSize)
	copy(p.Payload, wire[HeaderSize:])
	return p, nil
}

// IsCorrupt 判断错误是否属于传输损坏
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrMalformedPacket)
}

// Checksum 计算 sequenceNumber + payloadLength + data 的 CRC32
func Checksum(seq uint32, data []byte) uint64 {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:], seq)
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(data)))
	h := crc32.NewIEEE()
	h.Write(hdr[:])
	h.Write(data)
	return uint64(h.Sum32())
}

// covered checksum 覆盖 [8, 16+length)，不包括未使用的尾部
func covered(buf []byte, length int) uint64 {
	return uint64(crc32.ChecksumIEEE(buf[seqOffset : HeaderSize+length]))
}
