package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/motongxue/stopAndWaitTransfer/models"
)

const (
	// 传输元数据，值为 json
	FILE_METADATA_KEY = "transfer:metadata:"
	// 所有传输的索引，score 为开始时间
	FILE_TRANSFER_INDEX_KEY = "transfer:index"
)

// RedisStore 将传输记录保存在 Redis 中
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore ttl 为 0 时记录不过期
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient 创建客户端并用 Ping 检查连接
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,     // Redis服务器地址和端口
		Password: password, // Redis服务器密码
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Save(ctx context.Context, meta models.FileMetaData) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal transfer %s: %w", meta.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, FILE_METADATA_KEY+meta.ID, data, s.ttl)
		pipe.ZAdd(ctx, FILE_TRANSFER_INDEX_KEY, &redis.Z{
			Score:  float64(meta.StartedAt.UnixNano()),
			Member: meta.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save transfer %s: %w", meta.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.FileMetaData, error) {
	val, err := s.client.Get(ctx, FILE_METADATA_KEY+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.FileMetaData{}, ErrNotFound
	}
	if err != nil {
		return models.FileMetaData{}, fmt.Errorf("get transfer %s: %w", id, err)
	}
	var meta models.FileMetaData
	if err := json.Unmarshal(val, &meta); err != nil {
		return models.FileMetaData{}, fmt.Errorf("unmarshal transfer %s: %w", id, err)
	}
	return meta, nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.FileMetaData, error) {
	ids, err := s.client.ZRevRange(ctx, FILE_TRANSFER_INDEX_KEY, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	if len(ids) == 0 {
		return []models.FileMetaData{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = FILE_METADATA_KEY + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	list := make([]models.FileMetaData, 0, len(vals))
	var expired []interface{}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// 元数据已过期，清理索引
			expired = append(expired, ids[i])
			continue
		}
		var meta models.FileMetaData
		if err := json.Unmarshal([]byte(str), &meta); err != nil {
			return nil, fmt.Errorf("unmarshal transfer %s: %w", ids[i], err)
		}
		list = append(list, meta)
	}
	if len(expired) > 0 {
		s.client.ZRem(ctx, FILE_TRANSFER_INDEX_KEY, expired...)
	}
	return list, nil
}
