package models

import "time"

// TransferState 传输所处的阶段
type TransferState string

const (
	StateAwaitingPath TransferState = "awaiting_path"
	StateReceiving    TransferState = "receiving"
	StateCompleted    TransferState = "completed"
	StateFailed       TransferState = "failed"
)

// FileMetaData 接收方记录的一次传输
type FileMetaData struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	MD5  string `json:"md5"`
	// 对端地址
	Peer     string `json:"peer"`
	FileSize int64  `json:"file_size"`
	// 每个分片的大小
	ChunkSize int `json:"chunk_size"`
	// 总分片数，不含路径单元
	ChunkNum int `json:"total"`
	// 已确认的分片数
	Received int           `json:"received"`
	State    TransferState `json:"state"`
	// 分片是否接收完成
	IsTransmitted bool `json:"is_transmitted"`
	// 文件是否已写入磁盘
	IsCompleted bool      `json:"is_completed"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
