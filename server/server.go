package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/motongxue/stopAndWaitTransfer/models"
	"github.com/motongxue/stopAndWaitTransfer/protocol"
	"github.com/motongxue/stopAndWaitTransfer/store"
	"github.com/motongxue/stopAndWaitTransfer/transport"
	"github.com/motongxue/stopAndWaitTransfer/utils"
)

// Config Serve 的参数
type Config struct {
	Codec     protocol.Codec
	OutputDir string
	// 0 表示不限制
	IdleTimeout time.Duration
	Store       store.Store
	Logger      logrus.FieldLogger
}

// 连续读写失败时的退避，超过次数后 Serve 返回错误
const (
	retryBaseDelay     = time.Millisecond
	retryMaxDelay      = 100 * time.Millisecond
	maxConsecutiveErrs = 10
)

// session 当前传输在存储中的记录
type session struct {
	cfg  Config
	meta *models.FileMetaData
}

// Serve 依次接收传输并写入 OutputDir，直到 ctx 结束或连接关闭
func Serve(ctx context.Context, conn transport.Conn, cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	log := cfg.Logger
	r := NewReceiver(cfg.Codec, log)
	s := &session{cfg: cfg}
	log.WithFields(logrus.Fields{
		"addr":   conn.LocalAddr(),
		"output": cfg.OutputDir,
	}).Info("receiver started")

	failures := 0
	for {
		ev, err := r.ReceiveUnit(ctx, conn, cfg.IdleTimeout)
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, transport.ErrTimeout):
			if r.State() != StateAwaitingPathUnit {
				idleErr := fmt.Errorf("%w: no data for %v at unit %d", ErrIdle, cfg.IdleTimeout, r.NextExpected())
				log.WithError(idleErr).Warn("abandoning transfer")
				s.fail(ctx, idleErr)
				r.Reset()
			}
			continue
		case ctx.Err() != nil:
			s.fail(context.Background(), ctx.Err())
			return nil
		case errors.Is(err, transport.ErrClosed):
			s.fail(context.Background(), err)
			return nil
		default:
			failures++
			if failures >= maxConsecutiveErrs {
				s.fail(context.Background(), err)
				return fmt.Errorf("receive failed %d times in a row: %w", failures, err)
			}
			log.WithField("failures", failures).WithError(err).Warn("receive failed")
			if !sleepCtx(ctx, retryDelay(failures)) {
				s.fail(context.Background(), ctx.Err())
				return nil
			}
			// 回复失败时状态已更新，继续处理事件
		}

		switch ev {
		case EventRestarted:
			s.fail(ctx, errors.New("sender restarted"))
			s.begin(ctx, r)
		case EventAnnounced:
			s.begin(ctx, r)
		case EventChunk:
			s.progress(ctx, r)
		case EventComplete:
			if s.meta == nil || s.meta.ID != r.Announcement().TransferID.String() {
				s.fail(ctx, errors.New("sender restarted"))
				s.begin(ctx, r)
			}
			s.complete(ctx, r)
			r.Reset()
		}
	}
}

func (s *session) begin(ctx context.Context, r *Receiver) {
	ann := r.Announcement()
	now := time.Now()
	s.meta = &models.FileMetaData{
		ID:        ann.TransferID.String(),
		Path:      ann.Path,
		MD5:       utils.MD5Hex(ann.MD5),
		Peer:      peerString(r.LastPeer()),
		FileSize:  int64(ann.FileSize),
		ChunkSize: s.cfg.Codec.Capacity(),
		ChunkNum:  int(ann.TotalUnits),
		State:     models.StateReceiving,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.save(ctx)
}

func (s *session) progress(ctx context.Context, r *Receiver) {
	if s.meta == nil {
		return
	}
	s.meta.Received = int(r.NextExpected()) - 1
	s.meta.UpdatedAt = time.Now()
	s.save(ctx)
}

func (s *session) complete(ctx context.Context, r *Receiver) {
	log := s.cfg.Logger
	s.meta.Received = s.meta.ChunkNum
	s.meta.IsTransmitted = true
	transfer, err := r.Transfer()
	if err != nil {
		log.WithField("transfer", s.meta.ID).WithError(err).Error("verification failed, file not written")
		s.fail(ctx, err)
		return
	}
	path, err := utils.WriteAllBytes(s.cfg.OutputDir, transfer.DestinationPath, transfer.Data)
	if err != nil {
		log.WithField("transfer", s.meta.ID).WithError(err).Error("write failed")
		s.fail(ctx, err)
		return
	}
	s.meta.IsCompleted = true
	s.meta.State = models.StateCompleted
	s.meta.UpdatedAt = time.Now()
	log.WithFields(logrus.Fields{
		"transfer": s.meta.ID,
		"path":     path,
		"size":     utils.FormatBytesCount(s.meta.FileSize),
		"elapsed":  s.meta.UpdatedAt.Sub(s.meta.StartedAt),
	}).Info("file received")
	s.save(ctx)
	s.meta = nil
}

func (s *session) fail(ctx context.Context, cause error) {
	if s.meta == nil {
		return
	}
	s.meta.State = models.StateFailed
	s.meta.Error = cause.Error()
	s.meta.UpdatedAt = time.Now()
	s.save(ctx)
	s.meta = nil
}

func (s *session) save(ctx context.Context) {
	if err := s.cfg.Store.Save(ctx, *s.meta); err != nil {
		s.cfg.Logger.WithField("transfer", s.meta.ID).WithError(err).Warn("failed to record progress")
	}
}

func peerString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

// retryDelay 第 n 次连续失败后的等待时间
func retryDelay(n int) time.Duration {
	d := retryBaseDelay << uint(n-1)
	if d <= 0 || d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

// sleepCtx ctx 结束时返回 false
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
