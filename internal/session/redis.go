package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
)

// RedisConfig holds configuration for the Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisStore keeps records in Redis so several gateway replicas can share
// one mailbox. Delivery uses GETDEL, so exactly one poller wins.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tutor:session:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: cfg.TTL}, nil
}

func (s *RedisStore) key(id string) string     { return s.prefix + id }
func (s *RedisStore) channel(id string) string { return s.prefix + "ready:" + id }

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, id string, rec Record) error {
	if id == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err = s.rdb.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", id, err)
	}
	metrics.SessionsStored.Inc()

	// The record is already pollable; a lost notification only delays
	// streaming waiters until their next heartbeat re-check.
	if err = s.rdb.Publish(ctx, s.channel(id), "1").Err(); err != nil {
		slog.Warn("session ready notify failed", "session_id", id, "error", err)
		metrics.Errors.WithLabelValues("session", "publish").Inc()
	}
	return nil
}

// TakeIfReady implements Store.
func (s *RedisStore) TakeIfReady(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	raw, err := s.rdb.GetDel(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel %s: %w", id, err)
	}
	metrics.SessionsDelivered.Inc()

	var rec Record
	if err = json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

// Wait implements Waiter by subscribing to the record's ready channel.
func (s *RedisStore) Wait(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	sub := s.rdb.Subscribe(ctx, s.channel(id))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", id, err)
	}

	// The record may have landed before the subscription was live.
	n, err := s.rdb.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis exists %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	select {
	case <-sub.Channel():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
