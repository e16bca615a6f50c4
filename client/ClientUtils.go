package client

import (
	"crypto/md5"

	"github.com/motongxue/stopAndWaitTransfer/models"
)

// Chunks 按 capacity 切分文件，第 i 个分片为 data[(i-1)*capacity : min(i*capacity, len)]，
// 序号从 1 开始。空文件没有分片
func Chunks(data []byte, capacity int) []models.FileFragment {
	n := chunkCount(len(data), capacity)
	fragments := make([]models.FileFragment, 0, n)
	for i := 0; i < n; i++ {
		start := i * capacity
		end := min(start+capacity, len(data))
		fragments = append(fragments, models.FileFragment{
			FragmentID: uint32(i + 1),
			Fragment:   data[start:end],
		})
	}
	return fragments
}

// NewFileRecord 计算文件的MD5值、文件大小、分片大小、分片数量
func NewFileRecord(dest string, data []byte, capacity int) models.FileRecord {
	return models.FileRecord{
		DestinationPath: dest,
		HashValue:       md5.Sum(data),
		FileSize:        int64(len(data)),
		FragmentSize:    capacity,
		NumFragments:    chunkCount(len(data), capacity),
	}
}

func chunkCount(size, capacity int) int {
	t := size / capacity
	if size%capacity != 0 {
		t++
	}
	return t
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
