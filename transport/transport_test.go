package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestPipe(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	if err := a.WriteTo([]byte("ping"), b.LocalAddr()); err != nil {
		t.Fatalf("write failed %v", err)
	}
	buf := make([]byte, 16)
	n, from, err := b.ReadFrom(context.Background(), buf, time.Second)
	if err != nil {
		t.Fatalf("read failed %v", err)
	}
	if string(buf[:n]) != "ping" || from.String() != a.LocalAddr().String() {
		t.Errorf("got %q from %v", buf[:n], from)
	}
	if a.PeerAddr().String() != b.LocalAddr().String() {
		t.Errorf("peer addr %v", a.PeerAddr())
	}
}

func TestPipeTimeout(t *testing.T) {
	a, _ := Pipe()
	_, _, err := a.ReadFrom(context.Background(), make([]byte, 4), 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestPipeCancel(t *testing.T) {
	a, _ := Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := a.ReadFrom(ctx, make([]byte, 4), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	a.Close()
	if err := a.WriteTo([]byte("x"), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestFaultyDrop(t *testing.T) {
	a, b := Pipe()
	sent := 0
	fa := Faulty(a, FaultFunc(func(p []byte) []byte {
		sent++
		if sent == 1 {
			return nil
		}
		return p
	}))
	fa.WriteTo([]byte("first"), b.LocalAddr())
	fa.WriteTo([]byte("second"), b.LocalAddr())

	buf := make([]byte, 16)
	n, _, err := b.ReadFrom(context.Background(), buf, time.Second)
	if err != nil {
		t.Fatalf("read failed %v", err)
	}
	if string(buf[:n]) != "second" {
		t.Errorf("first datagram should be dropped, got %q", buf[:n])
	}
}

func TestRandomFaults(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5a}, 100)

	always := NewRandomFaults(1, 0, 1)
	if always.Apply(payload) != nil {
		t.Errorf("drop rate 1 must drop")
	}

	corrupt := NewRandomFaults(0, 1, 1)
	out := corrupt.Apply(payload)
	if bytes.Equal(out, payload) {
		t.Errorf("corrupt rate 1 must change the datagram")
	}
	if !bytes.Equal(payload, bytes.Repeat([]byte{0x5a}, 100)) {
		t.Errorf("input must not be modified in place")
	}

	clean := NewRandomFaults(0, 0, 1)
	if !bytes.Equal(clean.Apply(payload), payload) {
		t.Errorf("zero rates must pass through")
	}
}

func TestUDPLoopback(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Skipf("udp not available: %v", err)
	}
	defer server.Close()
	client, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed %v", err)
	}
	defer client.Close()

	if err := client.WriteTo([]byte("hello"), server.LocalAddr()); err != nil {
		t.Fatalf("write failed %v", err)
	}
	buf := make([]byte, 32)
	n, from, err := server.ReadFrom(context.Background(), buf, 2*time.Second)
	if err != nil {
		t.Fatalf("read failed %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("got %q", buf[:n])
	}
	if from.String() != client.LocalAddr().String() {
		t.Errorf("from %v, want %v", from, client.LocalAddr())
	}

	if _, _, err := server.ReadFrom(context.Background(), buf, 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
