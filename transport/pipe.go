package transport

import (
	"context"
	"net"
	"sync"
	"time"
)

const pipeQueue = 64

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

type datagram struct {
	data []byte
	from net.Addr
}

// PipeConn 内存中的数据报端点
type PipeConn struct {
	addr  pipeAddr
	in    chan datagram
	peer  *PipeConn
	once  sync.Once
	close chan struct{}
}

// Pipe 创建一对互相连接的端点。队列满时数据报被丢弃，与 UDP 行为一致
func Pipe() (*PipeConn, *PipeConn) {
	a := &PipeConn{addr: "pipe-a", in: make(chan datagram, pipeQueue), close: make(chan struct{})}
	b := &PipeConn{addr: "pipe-b", in: make(chan datagram, pipeQueue), close: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeConn) WriteTo(b []byte, addr net.Addr) error {
	select {
	case <-p.close:
		return ErrClosed
	default:
	}
	data := make([]byte, len(b))
	copy(data, b)
	select {
	case p.peer.in <- datagram{data: data, from: p.addr}:
	default:
	}
	return nil
}

func (p *PipeConn) ReadFrom(ctx context.Context, b []byte, timeout time.Duration) (int, net.Addr, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case d := <-p.in:
		return copy(b, d.data), d.from, nil
	case <-expired:
		return 0, nil, ErrTimeout
	case <-p.close:
		return 0, nil, ErrClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (p *PipeConn) LocalAddr() net.Addr {
	return p.addr
}

// PeerAddr 对端地址
func (p *PipeConn) PeerAddr() net.Addr {
	return p.peer.addr
}

func (p *PipeConn) Close() error {
	p.once.Do(func() { close(p.close) })
	return nil
}
