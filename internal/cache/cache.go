// Package cache keeps built capsules close to the API so repeated reads skip the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"civicbriefs/internal/core"
	"civicbriefs/internal/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "civicbriefs:capsule:"

// CapsuleKey is the cache key for a date's capsule.
func CapsuleKey(date string) string {
	return keyPrefix + date
}

// Redis stores capsules as JSON values with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	logger.Info("Redis capsule cache initialized", "addr", addr, "ttl", ttl)
	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the cached capsule for date, or false on a miss.
func (r *Redis) Get(ctx context.Context, date string) (*core.Capsule, bool, error) {
	data, err := r.client.Get(ctx, CapsuleKey(date)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get capsule cache: %w", err)
	}

	var c core.Capsule
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached capsule: %w", err)
	}
	logger.Debug("Capsule cache hit", "date", date)
	return &c, true, nil
}

// Set stores a capsule under its date.
func (r *Redis) Set(ctx context.Context, c *core.Capsule) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal capsule: %w", err)
	}
	if err := r.client.Set(ctx, CapsuleKey(c.Date), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set capsule cache: %w", err)
	}
	return nil
}

// Delete drops a date's entry.
func (r *Redis) Delete(ctx context.Context, date string) error {
	if err := r.client.Del(ctx, CapsuleKey(date)).Err(); err != nil {
		return fmt.Errorf("failed to delete capsule cache: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Memory is an in-process cache used when no redis address is configured.
// Entries do not expire.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, date string) (*core.Capsule, bool, error) {
	m.mu.RLock()
	data, ok := m.entries[CapsuleKey(date)]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	var c core.Capsule
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, err
	}
	return &c, true, nil
}

func (m *Memory) Set(_ context.Context, c *core.Capsule) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[CapsuleKey(c.Date)] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, date string) error {
	m.mu.Lock()
	delete(m.entries, CapsuleKey(date))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
