package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
)

// =============================================================================
// 💾 任务存储
// =============================================================================

// ErrMiss 缓存未命中
var ErrMiss = errors.New("cache miss")

// IsMiss 判断是否为缓存未命中
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// JobRecord 一次队列提交的记录
type JobRecord struct {
	Endpoint    string    `json:"endpoint"`
	Handle      string    `json:"handle"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Store 基于 Redis 的任务存储：已完成任务的结果与最近提交的任务
//
// 已完成任务的结果不会再变化，按 endpoint + handle 缓存；
// 提交记录保存在定长列表中，新记录在前。
type Store struct {
	redis  *redis.Client
	config config.CacheConfig
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewStore 连接 Redis 并验证可用
func NewStore(cfg config.CacheConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &Store{
		redis:  client,
		config: cfg,
		logger: logger.With(zap.String("component", "cache")),
	}
	s.logger.Debug("job store connected", zap.String("addr", cfg.Addr))
	return s, nil
}

// =============================================================================
// 🎯 结果缓存
// =============================================================================

func (s *Store) resultKey(endpoint, handle string) string {
	return s.config.KeyPrefix + "result:" + endpoint + ":" + handle
}

func (s *Store) historyKey() string {
	return s.config.KeyPrefix + "jobs"
}

// GetResult 读取已缓存的任务结果，未命中返回 ErrMiss
func (s *Store) GetResult(ctx context.Context, endpoint, handle string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("job store is closed")
	}

	val, err := s.redis.Get(ctx, s.resultKey(endpoint, handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var payload any
	if err := json.Unmarshal(val, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return payload, nil
}

// PutResult 缓存任务结果，TTL 取配置值，0 表示不过期
func (s *Store) PutResult(ctx context.Context, endpoint, handle string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("job store is closed")
	}

	if err := s.redis.Set(ctx, s.resultKey(endpoint, handle), data, s.config.ResultTTL).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// =============================================================================
// 📜 提交记录
// =============================================================================

// RecordSubmission 追加一条提交记录，列表超过 HistorySize 时截断
func (s *Store) RecordSubmission(ctx context.Context, rec JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("job store is closed")
	}

	size := int64(s.config.HistorySize)
	if size <= 0 {
		size = 1
	}
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, s.historyKey(), data)
	pipe.LTrim(ctx, s.historyKey(), 0, size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record submission failed: %w", err)
	}
	return nil
}

// RecentJobs 返回最近 n 条提交记录，新记录在前
func (s *Store) RecentJobs(ctx context.Context, n int) ([]JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("job store is closed")
	}
	if n <= 0 {
		return nil, nil
	}

	items, err := s.redis.LRange(ctx, s.historyKey(), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs failed: %w", err)
	}

	records := make([]JobRecord, 0, len(items))
	for _, item := range items {
		var rec JobRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.logger.Warn("skipping malformed job record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close 关闭连接，可重复调用
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.redis.Close()
}
