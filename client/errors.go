package client

import (
	"errors"
	"fmt"
)

var (
	ErrTransferFailed = errors.New("transfer failed")
	ErrNotAnnounced   = errors.New("destination not announced")
	ErrBadDestination = errors.New("bad destination path")
	// 接收方返回 NAK
	errNegativeAck = errors.New("negative acknowledgment")
)

// TransferFailedError 某个单元在重试上限内未被确认
type TransferFailedError struct {
	Unit     uint32
	Attempts int
	// 最后一次失败的原因
	Err error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer failed: unit %d not acknowledged after %d attempts: %v", e.Unit, e.Attempts, e.Err)
}

func (e *TransferFailedError) Unwrap() error { return e.Err }

func (e *TransferFailedError) Is(target error) bool { return target == ErrTransferFailed }
