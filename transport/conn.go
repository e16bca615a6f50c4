package transport

import (
	"context"
	"errors"
	"net"
	"time"
)

var (
	ErrTimeout = errors.New("receive timeout")
	ErrClosed  = errors.New("connection closed")
)

// Conn 尽力而为的数据报传输，可能丢包、损坏
type Conn interface {
	// WriteTo 发送一个数据报，不保证送达
	WriteTo(b []byte, addr net.Addr) error
	// ReadFrom 阻塞读取一个数据报。timeout 为 0 时一直等待直到 ctx 结束，超时返回 ErrTimeout
	ReadFrom(ctx context.Context, b []byte, timeout time.Duration) (int, net.Addr, error)
	LocalAddr() net.Addr
	Close() error
}
