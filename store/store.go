package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/motongxue/stopAndWaitTransfer/models"
)

var ErrNotFound = errors.New("transfer not found")

// Store 记录接收方每次传输的进度，供状态接口查询。
// 实现必须可以被并发调用
type Store interface {
	// Save 新增或覆盖一条记录
	Save(ctx context.Context, meta models.FileMetaData) error
	Get(ctx context.Context, id string) (models.FileMetaData, error)
	// List 按开始时间倒序返回所有记录
	List(ctx context.Context) ([]models.FileMetaData, error)
}

// MemoryStore 进程内存储，未配置 Redis 时使用
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]models.FileMetaData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]models.FileMetaData)}
}

func (s *MemoryStore) Save(_ context.Context, meta models.FileMetaData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[meta.ID] = meta
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.FileMetaData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.items[id]
	if !ok {
		return models.FileMetaData{}, ErrNotFound
	}
	return meta, nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.FileMetaData, error) {
	s.mu.RLock()
	list := make([]models.FileMetaData, 0, len(s.items))
	for _, meta := range s.items {
		list = append(list, meta)
	}
	s.mu.RUnlock()
	sortNewestFirst(list)
	return list, nil
}

func sortNewestFirst(list []models.FileMetaData) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].StartedAt.After(list[j].StartedAt)
	})
}
