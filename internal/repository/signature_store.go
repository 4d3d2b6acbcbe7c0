package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const usedSignaturePrefix = "wallet_sig:"

// RedisSignatureStore shares replay state across server instances.
type RedisSignatureStore struct {
	redis *redis.Client
}

func NewRedisSignatureStore(client *redis.Client) *RedisSignatureStore {
	return &RedisSignatureStore{redis: client}
}

func (s *RedisSignatureStore) MarkUsed(ctx context.Context, signature string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.SetNX(ctx, usedSignaturePrefix+signature, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record signature: %w", err)
	}
	return ok, nil
}

// MemorySignatureStore is the single-instance fallback when Redis is not configured.
type MemorySignatureStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemorySignatureStore() *MemorySignatureStore {
	return &MemorySignatureStore{seen: make(map[string]time.Time), now: time.Now}
}

func (s *MemorySignatureStore) MarkUsed(ctx context.Context, signature string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for sig, expires := range s.seen {
		if !now.Before(expires) {
			delete(s.seen, sig)
		}
	}

	if _, exists := s.seen[signature]; exists {
		return false, nil
	}
	s.seen[signature] = now.Add(ttl)
	return true, nil
}
