package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// UDPConn 基于 net.UDPConn 的实现
type UDPConn struct {
	conn *net.UDPConn
}

// Listen 在本地地址上监听，用于接收方
func Listen(laddr string) (*UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", laddr, err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", laddr, err)
	}
	return &UDPConn{conn: conn}, nil
}

// ResolvePeer 解析对端地址
func ResolvePeer(host string, port int) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}
	return addr, nil
}

// SetTOS 设置 IP 头中的 TOS 字段
func (c *UDPConn) SetTOS(tos int) error {
	return ipv4.NewConn(c.conn).SetTOS(tos)
}

func (c *UDPConn) WriteTo(b []byte, addr net.Addr) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("unsupported address %T", addr)
	}
	_, err := c.conn.WriteToUDP(b, udpAddr)
	return err
}

func (c *UDPConn) ReadFrom(ctx context.Context, b []byte, timeout time.Duration) (int, net.Addr, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, nil, err
	}

	// ctx 取消时打断阻塞中的读
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	n, addr, err := c.conn.ReadFromUDP(b)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return 0, nil, ErrTimeout
		}
		if errors.Is(err, net.ErrClosed) {
			return 0, nil, ErrClosed
		}
		return 0, nil, err
	}
	return n, addr, nil
}

func (c *UDPConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *UDPConn) Close() error {
	return c.conn.Close()
}
