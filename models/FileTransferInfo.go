package models

// FileTransferInfo 状态接口返回的传输进度
type FileTransferInfo struct {
	ID  string `json:"id"`
	MD5 string `json:"md5"`
	// 尚未接收的分片数
	Unreceived int           `json:"unreceived"`
	Progress   float64       `json:"progress"`
	State      TransferState `json:"state"`
}

// Info 由元数据计算进度
func (m FileMetaData) Info() FileTransferInfo {
	info := FileTransferInfo{
		ID:         m.ID,
		MD5:        m.MD5,
		Unreceived: m.ChunkNum - m.Received,
		State:      m.State,
	}
	if m.ChunkNum == 0 {
		if m.IsTransmitted {
			info.Progress = 1
		}
	} else {
		info.Progress = float64(m.Received) / float64(m.ChunkNum)
	}
	return info
}

// ResponseData 状态接口的统一返回格式
type ResponseData struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// TransferStatus 单个传输的详情
type TransferStatus struct {
	Metadata FileMetaData     `json:"metadata"`
	Progress FileTransferInfo `json:"progress"`
}
