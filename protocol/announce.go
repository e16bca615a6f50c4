package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// 单元 0 的负载
// <transfer id>----<total units>----<file size>----<md5>------<destination path>
// <16 bytes>-------<4 bytes>--------<8 bytes>------<16 bytes>--<n bytes>
const AnnouncementHeaderSize = 16 + 4 + 8 + 16

var ErrBadAnnouncement = errors.New("bad announcement")

// Announcement 目标路径及传输的基本信息
type Announcement struct {
	TransferID uuid.UUID
	TotalUnits uint32
	FileSize   uint64
	MD5        [16]byte
	Path       string
}

// MaxPathLength 给定负载容量下目标路径的最大字节数
func MaxPathLength(capacity int) int {
	return capacity - AnnouncementHeaderSize
}

// Marshal 编码为单元 0 的负载
func (a Announcement) Marshal() []byte {
	buf := make([]byte, AnnouncementHeaderSize+len(a.Path))
	copy(buf[0:16], a.TransferID[:])
	binary.BigEndian.PutUint32(buf[16:20], a.TotalUnits)
	binary.BigEndian.PutUint64(buf[20:28], a.FileSize)
	copy(buf[28:44], a.MD5[:])
	copy(buf[44:], a.Path)
	return buf
}

// UnmarshalAnnouncement 解析单元 0 的负载
func UnmarshalAnnouncement(b []byte) (Announcement, error) {
	if len(b) <= AnnouncementHeaderSize {
		return Announcement{}, fmt.Errorf("%w: %d bytes", ErrBadAnnouncement, len(b))
	}
	var a Announcement
	copy(a.TransferID[:], b[0:16])
	a.TotalUnits = binary.BigEndian.Uint32(b[16:20])
	a.FileSize = binary.BigEndian.Uint64(b[20:28])
	copy(a.MD5[:], b[28:44])
	if !utf8.Valid(b[44:]) {
		return Announcement{}, fmt.Errorf("%w: path is not utf-8", ErrBadAnnouncement)
	}
	a.Path = string(b[44:])
	return a, nil
}
