package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := NewRedisStore(RedisConfig{Addr: addr, Prefix: "tutor:test:", TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStoreSingleDelivery(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	rec, err := s.TakeIfReady(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, s.Put(ctx, id, Record{VideoURL: "/videos/x.mp4", Timestamp: time.Now()}))
	rec, err = s.TakeIfReady(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "/videos/x.mp4", rec.VideoURL)

	rec, err = s.TakeIfReady(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisStoreWait(t *testing.T) {
	s := newTestRedisStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id := uuid.NewString()

	done := make(chan error, 1)
	go func() { done <- s.Wait(ctx, id) }()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Put(ctx, id, Record{VideoURL: "u"}))
	require.NoError(t, <-done)
}

// failingPublish answers SET and GETDEL from memory and fails every PUBLISH,
// so no server is needed.
type failingPublish struct {
	mu   sync.Mutex
	vals map[string]string
}

func (h *failingPublish) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failingPublish) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *failingPublish) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.StatusCmd:
			h.vals[args[1].(string)] = string(args[2].([]byte))
			c.SetVal("OK")
			return nil
		case *redis.StringCmd:
			key := args[1].(string)
			v, ok := h.vals[key]
			if !ok {
				return redis.Nil
			}
			delete(h.vals, key)
			c.SetVal(v)
			return nil
		}
		return errors.New("publish refused")
	}
}

func TestRedisStorePutSurvivesPublishFailure(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	rdb.AddHook(&failingPublish{vals: map[string]string{}})
	s := &RedisStore{rdb: rdb, prefix: "tutor:test:", ttl: time.Minute}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "s1", Record{VideoURL: "/videos/s1.mp4"}))

	rec, err := s.TakeIfReady(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "/videos/s1.mp4", rec.VideoURL)
}
