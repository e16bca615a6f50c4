package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/motongxue/stopAndWaitTransfer/models"
	"github.com/motongxue/stopAndWaitTransfer/protocol"
	"github.com/motongxue/stopAndWaitTransfer/transport"
)

// 应答缓冲区，大于 AckSize 以便识别过长的应答
const responseBufferSize = 64

// State 发送方所处的阶段
type State int

const (
	StateAnnouncingPath State = iota
	StateSendingChunk
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAnnouncingPath:
		return "announcing_path"
	case StateSendingChunk:
		return "sending_chunk"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RetryPolicy 重传策略。MaxAttempts 为 0 时无限重试
type RetryPolicy struct {
	MaxAttempts    int
	InitialTimeout time.Duration
	MaxTimeout     time.Duration
	// 连续超时后等待时间的倍数
	Backoff float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    0,
		InitialTimeout: 200 * time.Millisecond,
		MaxTimeout:     5 * time.Second,
		Backoff:        2,
	}
}

// timeout 第 timeouts 次连续超时之后的等待时间
func (p RetryPolicy) timeout(base time.Duration, timeouts int) time.Duration {
	if base < p.InitialTimeout {
		base = p.InitialTimeout
	}
	d := float64(base) * math.Pow(p.Backoff, float64(timeouts))
	if p.MaxTimeout > 0 && d > float64(p.MaxTimeout) {
		return p.MaxTimeout
	}
	return time.Duration(d)
}

// Result 一次传输的统计
type Result struct {
	TransferID uuid.UUID
	// 包括路径单元
	Units           int
	Attempts        int
	Retransmissions int
	// 被忽略的迟到 ACK
	StaleAcks       int
	Bytes           int64
	Elapsed         time.Duration
}

type Option func(*Sender)

func WithCodec(codec protocol.Codec) Option {
	return func(s *Sender) { s.codec = codec }
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Sender) { s.policy = policy }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Sender) { s.log = log }
}

// Sender 停等协议的发送方，同一时刻最多一个未确认的数据包
type Sender struct {
	conn   transport.Conn
	peer   net.Addr
	codec  protocol.Codec
	policy RetryPolicy
	log    logrus.FieldLogger
	rtt    rttEstimator

	state       State
	record      *models.FileRecord
	transferID  uuid.UUID
	currentUnit uint32
	totalUnits  uint32
	result      Result
}

func NewSender(conn transport.Conn, peer net.Addr, opts ...Option) *Sender {
	s := &Sender{
		conn:   conn,
		peer:   peer,
		codec:  protocol.Codec{PacketSize: protocol.DefaultPacketSize},
		policy: DefaultRetryPolicy(),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Progress 当前单元、分片总数和状态
func (s *Sender) Progress() (current, total uint32, state State) {
	return s.currentUnit, s.totalUnits, s.state
}

// Send 先发送目标路径，再发送文件内容
func (s *Sender) Send(ctx context.Context, dest string, data []byte) (*Result, error) {
	start := time.Now()
	s.result = Result{}
	err := s.AnnounceDestination(ctx, dest, data)
	if err == nil {
		err = s.SendFile(ctx, data)
	}
	s.result.Elapsed = time.Since(start)
	result := s.result
	if err != nil {
		return &result, err
	}
	s.log.WithFields(logrus.Fields{
		"transfer":        result.TransferID,
		"units":           result.Units,
		"retransmissions": result.Retransmissions,
		"elapsed":         result.Elapsed,
	}).Info("transfer completed")
	return &result, nil
}

// AnnounceDestination 以单元 0 发送目标路径以及文件的大小、分片数和 MD5
func (s *Sender) AnnounceDestination(ctx context.Context, dest string, data []byte) error {
	if dest == "" {
		return fmt.Errorf("%w: empty", ErrBadDestination)
	}
	if max := protocol.MaxPathLength(s.codec.Capacity()); len(dest) > max {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrBadDestination, len(dest), max)
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	record := NewFileRecord(dest, data, s.codec.Capacity())
	s.transferID = id
	s.record = &record
	s.state = StateAnnouncingPath
	s.currentUnit = 0
	s.totalUnits = uint32(record.NumFragments)
	s.result.TransferID = id

	announcement := protocol.Announcement{
		TransferID: id,
		TotalUnits: uint32(record.NumFragments),
		FileSize:   uint64(record.FileSize),
		MD5:        record.HashValue,
		Path:       dest,
	}
	s.log.WithFields(logrus.Fields{
		"transfer": id,
		"path":     dest,
		"size":     record.FileSize,
		"chunks":   record.NumFragments,
	}).Info("announcing destination")
	return s.transmit(ctx, 0, announcement.Marshal())
}

// SendFile 依次发送每个分片，必须在 AnnounceDestination 之后调用
func (s *Sender) SendFile(ctx context.Context, data []byte) error {
	if s.record == nil || s.state != StateSendingChunk || s.record.FileSize != int64(len(data)) {
		return ErrNotAnnounced
	}
	for _, fragment := range Chunks(data, s.codec.Capacity()) {
		s.currentUnit = fragment.FragmentID
		if err := s.transmit(ctx, fragment.FragmentID, fragment.Fragment); err != nil {
			return err
		}
		s.result.Bytes += int64(len(fragment.Fragment))
	}
	s.state = StateDone
	return nil
}

// transmit 发送一个单元直到收到对应的 ACK
func (s *Sender) transmit(ctx context.Context, seq uint32, payload []byte) error {
	wire, err := s.codec.Encode(seq, payload)
	if err != nil {
		s.state = StateFailed
		return err
	}
	log := s.log.WithFields(logrus.Fields{
		"unit": seq,
		"crc":  protocol.Checksum(seq, payload),
	})

	var lastErr error
	attempts, timeouts := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			s.state = StateFailed
			return err
		}
		if s.policy.MaxAttempts > 0 && attempts >= s.policy.MaxAttempts {
			s.state = StateFailed
			return &TransferFailedError{Unit: seq, Attempts: attempts, Err: lastErr}
		}
		attempts++
		s.result.Attempts++
		if attempts > 1 {
			s.result.Retransmissions++
		}

		sentAt := time.Now()
		if err := s.conn.WriteTo(wire, s.peer); err != nil {
			s.state = StateFailed
			return fmt.Errorf("send unit %d: %w", seq, err)
		}
		log.WithField("attempt", attempts).Debug("unit sent")

		timeout := s.policy.timeout(s.rtt.rto(), timeouts)
		err := s.awaitAck(ctx, seq, timeout)
		switch {
		case err == nil:
			// Karn: 重传过的单元不更新 RTT
			if attempts == 1 {
				s.rtt.update(time.Since(sentAt))
			}
			log.WithField("attempt", attempts).Debug("unit acknowledged")
			s.result.Units++
			if seq == 0 {
				s.state = StateSendingChunk
			}
			return nil
		case errors.Is(err, transport.ErrTimeout):
			timeouts++
		case errors.Is(err, errNegativeAck), errors.Is(err, protocol.ErrMalformedResponse):
			timeouts = 0
		default:
			s.state = StateFailed
			return err
		}
		lastErr = err
		log.WithFields(logrus.Fields{
			"attempt": attempts,
			"timeout": timeout,
		}).WithError(err).Warn("resending unit")
	}
}

// awaitAck 等待当前单元的应答。其他单元的 ACK 是迟到的重复确认，
// 直接丢弃并在剩余时间内继续等待，不触发重传
func (s *Sender) awaitAck(ctx context.Context, seq uint32, timeout time.Duration) error {
	buf := make([]byte, responseBufferSize)
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		var remaining time.Duration
		if !deadline.IsZero() {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return transport.ErrTimeout
			}
		}
		n, _, err := s.conn.ReadFrom(ctx, buf, remaining)
		if err != nil {
			return err
		}
		ack, err := protocol.DecodeAck(buf[:n])
		if err != nil {
			return err
		}
		if ack.Kind == protocol.NAK {
			return fmt.Errorf("%w for unit %d", errNegativeAck, ack.Sequence)
		}
		if ack.Sequence != seq {
			s.result.StaleAcks++
			s.log.WithFields(logrus.Fields{
				"unit":  seq,
				"acked": ack.Sequence,
			}).Debug("ignoring stale ACK")
			continue
		}
		return nil
	}
}
