package transport

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"
)

// FaultPolicy 决定一个待发送的数据报如何被网络处理。
// 返回 nil 表示丢弃，否则返回实际发出的字节
type FaultPolicy interface {
	Apply(b []byte) []byte
}

// FaultFunc 函数形式的 FaultPolicy
type FaultFunc func(b []byte) []byte

func (f FaultFunc) Apply(b []byte) []byte { return f(b) }

// RandomFaults 按概率丢弃或翻转一个比特
type RandomFaults struct {
	DropRate    float64
	CorruptRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomFaults 使用固定种子，便于复现
func NewRandomFaults(dropRate, corruptRate float64, seed int64) *RandomFaults {
	return &RandomFaults{
		DropRate:    dropRate,
		CorruptRate: corruptRate,
		rnd:         rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomFaults) Apply(b []byte) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rnd.Float64() < r.DropRate {
		return nil
	}
	if len(b) > 0 && r.rnd.Float64() < r.CorruptRate {
		out := make([]byte, len(b))
		copy(out, b)
		i := r.rnd.Intn(len(out))
		out[i] ^= 1 << uint(r.rnd.Intn(8))
		return out
	}
	return b
}

// FaultyConn 在发送方向上模拟不可靠网络
type FaultyConn struct {
	Conn
	policy FaultPolicy
}

// Faulty 包装 conn，所有发出的数据报都经过 policy
func Faulty(conn Conn, policy FaultPolicy) *FaultyConn {
	return &FaultyConn{Conn: conn, policy: policy}
}

func (f *FaultyConn) WriteTo(b []byte, addr net.Addr) error {
	out := f.policy.Apply(b)
	if out == nil {
		return nil
	}
	return f.Conn.WriteTo(out, addr)
}

func (f *FaultyConn) ReadFrom(ctx context.Context, b []byte, timeout time.Duration) (int, net.Addr, error) {
	return f.Conn.ReadFrom(ctx, b, timeout)
}
