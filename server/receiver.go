package server

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/motongxue/stopAndWaitTransfer/protocol"
	"github.com/motongxue/stopAndWaitTransfer/transport"
)

var (
	ErrDigestMismatch = errors.New("digest mismatch")
	// 传输进行中对端长时间没有数据
	ErrIdle       = errors.New("transfer idle")
	ErrIncomplete = errors.New("transfer incomplete")
)

// 预分配的上限，避免对端声明的超大文件直接占用内存
const maxPrealloc = 64 << 20

// State 接收方所处的阶段
type State int

const (
	StateAwaitingPathUnit State = iota
	StateAwaitingChunk
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateAwaitingPathUnit:
		return "awaiting_path_unit"
	case StateAwaitingChunk:
		return "awaiting_chunk"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event 处理一个数据报后发生的变化
type Event int

const (
	// 校验失败，回复 NAK
	EventCorrupt Event = iota
	// 重复或超前的单元，只回复 ACK
	EventDuplicate
	// 接受了路径单元
	EventAnnounced
	// 接受了一个分片
	EventChunk
	// 新的传输取代了进行中的传输
	EventRestarted
	EventComplete
)

func (e Event) String() string {
	switch e {
	case EventCorrupt:
		return "corrupt"
	case EventDuplicate:
		return "duplicate"
	case EventAnnounced:
		return "announced"
	case EventChunk:
		return "chunk"
	case EventRestarted:
		return "restarted"
	case EventComplete:
		return "complete"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Transfer 接收完成的文件
type Transfer struct {
	TransferID      uuid.UUID
	DestinationPath string
	Data            []byte
	// 大小和 MD5 与路径单元中声明的一致
	Verified bool
}

// Receiver 停等协议的接收方。Handle 不做 I/O，便于单独测试
type Receiver struct {
	codec protocol.Codec
	log   logrus.FieldLogger

	state        State
	announcement protocol.Announcement
	data         []byte
	nextExpected uint32
	// 上一次已完成的传输，其路径单元的重传只需确认
	finished uuid.UUID
	// 最近一个数据报的来源
	lastPeer net.Addr
}

func NewReceiver(codec protocol.Codec, log logrus.FieldLogger) *Receiver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Receiver{codec: codec, log: log}
}

func (r *Receiver) State() State { return r.state }

func (r *Receiver) NextExpected() uint32 { return r.nextExpected }

// Announcement 当前传输的路径单元，仅在 StateAwaitingPathUnit 之后有效
func (r *Receiver) Announcement() protocol.Announcement { return r.announcement }

// LastPeer 最近一次 ReceiveUnit 读到的数据报来源
func (r *Receiver) LastPeer() net.Addr { return r.lastPeer }

// Received 已接收的字节数
func (r *Receiver) Received() int { return len(r.data) }

// Handle 处理一个数据报，返回需要发回给对端的应答
func (r *Receiver) Handle(datagram []byte) ([]byte, Event) {
	pkt, err := r.codec.Decode(datagram)
	if err != nil {
		r.log.WithField("expected", r.nextExpected).WithError(err).Debug("corrupt packet")
		return protocol.EncodeAck(protocol.NAK, r.nextExpected), EventCorrupt
	}
	seq := pkt.SequenceNumber
	log := r.log.WithFields(logrus.Fields{"unit": seq, "crc": pkt.Checksum})

	if seq == 0 && r.state != StateAwaitingPathUnit {
		ann, err := protocol.UnmarshalAnnouncement(pkt.Data())
		if err == nil && ann.TransferID != r.announcement.TransferID {
			log.WithFields(logrus.Fields{
				"previous": r.announcement.TransferID,
				"transfer": ann.TransferID,
			}).Warn("sender restarted, dropping current transfer")
			r.start(ann)
			return protocol.EncodeAck(protocol.ACK, seq), r.eventAfterStart(EventRestarted)
		}
	}

	if seq != r.nextExpected || r.state == StateComplete {
		log.WithField("expected", r.nextExpected).Debug("duplicate unit, re-acknowledging")
		return protocol.EncodeAck(protocol.ACK, seq), EventDuplicate
	}

	if seq == 0 {
		ann, err := protocol.UnmarshalAnnouncement(pkt.Data())
		if err != nil {
			log.WithError(err).Warn("unreadable path unit")
			return protocol.EncodeAck(protocol.NAK, 0), EventCorrupt
		}
		if ann.TransferID == r.finished {
			log.WithField("transfer", ann.TransferID).Debug("path unit of finished transfer")
			return protocol.EncodeAck(protocol.ACK, 0), EventDuplicate
		}
		r.start(ann)
		log.WithFields(logrus.Fields{
			"transfer": ann.TransferID,
			"path":     ann.Path,
			"chunks":   ann.TotalUnits,
		}).Info("transfer announced")
		return protocol.EncodeAck(protocol.ACK, 0), r.eventAfterStart(EventAnnounced)
	}

	r.data = append(r.data, pkt.Data()...)
	r.nextExpected++
	log.WithField("received", len(r.data)).Debug("chunk accepted")
	if seq == r.announcement.TotalUnits {
		r.state = StateComplete
		return protocol.EncodeAck(protocol.ACK, seq), EventComplete
	}
	return protocol.EncodeAck(protocol.ACK, seq), EventChunk
}

func (r *Receiver) start(ann protocol.Announcement) {
	r.announcement = ann
	r.nextExpected = 1
	r.state = StateAwaitingChunk
	prealloc := ann.FileSize
	if prealloc > maxPrealloc {
		prealloc = maxPrealloc
	}
	r.data = make([]byte, 0, prealloc)
}

// eventAfterStart 空文件在路径单元之后即完成
func (r *Receiver) eventAfterStart(ev Event) Event {
	if r.announcement.TotalUnits == 0 {
		r.state = StateComplete
		return EventComplete
	}
	return ev
}

// Transfer 返回接收完成的文件，并与路径单元中的大小和 MD5 比较
func (r *Receiver) Transfer() (*Transfer, error) {
	if r.state != StateComplete {
		return nil, ErrIncomplete
	}
	t := &Transfer{
		TransferID:      r.announcement.TransferID,
		DestinationPath: r.announcement.Path,
		Data:            r.data,
	}
	if uint64(len(r.data)) != r.announcement.FileSize {
		return t, fmt.Errorf("%w: got %d bytes, want %d", ErrDigestMismatch, len(r.data), r.announcement.FileSize)
	}
	if sum := md5.Sum(r.data); sum != r.announcement.MD5 {
		return t, fmt.Errorf("%w: md5 %x, want %x", ErrDigestMismatch, sum, r.announcement.MD5)
	}
	t.Verified = true
	return t, nil
}

// Reset 准备接收下一次传输
func (r *Receiver) Reset() {
	if r.state == StateComplete {
		r.finished = r.announcement.TransferID
	}
	r.state = StateAwaitingPathUnit
	r.announcement = protocol.Announcement{}
	r.data = nil
	r.nextExpected = 0
}

// ReceiveUnit 读取一个数据报，处理后向其来源回复应答
func (r *Receiver) ReceiveUnit(ctx context.Context, conn transport.Conn, timeout time.Duration) (Event, error) {
	buf := make([]byte, r.codec.PacketSize)
	n, from, err := conn.ReadFrom(ctx, buf, timeout)
	if err != nil {
		return EventCorrupt, err
	}
	r.lastPeer = from
	reply, ev := r.Handle(buf[:n])
	if err := conn.WriteTo(reply, from); err != nil {
		return ev, fmt.Errorf("reply to %v: %w", from, err)
	}
	return ev, nil
}

// Run 接收一次完整的传输。idle 大于 0 时，传输开始后超过 idle 没有数据返回 ErrIdle
func (r *Receiver) Run(ctx context.Context, conn transport.Conn, idle time.Duration) (*Transfer, error) {
	for {
		ev, err := r.ReceiveUnit(ctx, conn, idle)
		if errors.Is(err, transport.ErrTimeout) {
			if r.state == StateAwaitingPathUnit {
				continue
			}
			return nil, fmt.Errorf("%w: no data for %v at unit %d", ErrIdle, idle, r.nextExpected)
		}
		if err != nil {
			return nil, err
		}
		if ev == EventComplete {
			return r.Transfer()
		}
	}
}
