package models

// 文件片段
type FileFragment struct {
	FragmentID uint32 // 序号，从 1 开始
	Fragment   []byte
}

// 记录发送的文件
type FileRecord struct {
	DestinationPath string // 接收方保存路径
	HashValue       [16]byte
	FileSize        int64
	FragmentSize    int // 文件片段大小
	NumFragments    int // 文件片段数量
}
