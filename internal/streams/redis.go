package streams

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisFactory opens Redis Streams-backed Streams. Entry IDs are Redis's
// own "<ms>-<seq>" stream entry IDs, which are lexicographically and
// numerically comparable by construction, satisfying the monotonic-id
// contract of spec §4.1 for free.
//
// Grounded on goa-ai's registry/result_stream.go: a Redis client used
// both for XADD/XREAD stream operations and for a SET NX PX advisory
// lock guarding the single-consumer Pop path.
type RedisFactory struct {
	rdb *redis.Client
}

// NewRedisFactory wraps an existing Redis client.
func NewRedisFactory(rdb *redis.Client) *RedisFactory {
	return &RedisFactory{rdb: rdb}
}

// Open returns a RedisStream bound to the given key.
func (f *RedisFactory) Open(name string) Stream {
	return &RedisStream{rdb: f.rdb, key: name}
}

// RedisStream implements Stream over a single Redis Streams key.
type RedisStream struct {
	rdb *redis.Client
	key string
}

func (s *RedisStream) lockKey() string {
	return fmt.Sprintf("streams:poplock:%s", s.key)
}

// Put appends payload as the "data" field of a new stream entry.
func (s *RedisStream) Put(ctx context.Context, payload []byte) (string, error) {
	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]any{"data": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("streams: xadd %s: %w", s.key, err)
	}
	return id, nil
}

// Tail blocks on XREAD for the first entry after afterID, up to blockFor.
func (s *RedisStream) Tail(ctx context.Context, afterID string, blockFor time.Duration) (*Entry, error) {
	if afterID == "" {
		afterID = "0"
	}
	res, err := s.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{s.key, afterID},
		Count:   1,
		Block:   blockFor,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("streams: xread %s: %w", s.key, err)
	}
	for _, stream := range res {
		for _, msg := range stream.Messages {
			return entryFromMessage(msg), nil
		}
	}
	return nil, nil
}

// Pop acquires a SET NX PX advisory lock scoped to this stream key
// (5s bounded acquire, 10s expiry per spec §4.1), then XRANGEs the head
// entry and XDELs it.
func (s *RedisStream) Pop(ctx context.Context) (*Entry, error) {
	cfg := DefaultPopLockConfig()
	token := uuid.NewString()

	acquired, err := s.acquirePopLock(ctx, token, cfg)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLockTimeout
	}
	defer s.releasePopLock(context.Background(), token)

	msgs, err := s.rdb.XRange(ctx, s.key, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("streams: xrange %s: %w", s.key, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	head := msgs[0]
	if err := s.rdb.XDel(ctx, s.key, head.ID).Err(); err != nil {
		return nil, fmt.Errorf("streams: xdel %s: %w", s.key, err)
	}
	return entryFromMessage(head), nil
}

func (s *RedisStream) acquirePopLock(ctx context.Context, token string, cfg PopLockConfig) (bool, error) {
	deadline := time.Now().Add(cfg.AcquireTimeout)
	for {
		ok, err := s.rdb.SetNX(ctx, s.lockKey(), token, cfg.LockTTL).Result()
		if err != nil {
			return false, fmt.Errorf("streams: acquire pop lock %s: %w", s.key, err)
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// releasePopLockScript only deletes the lock if it still holds our token,
// so a lock that expired and was re-acquired by another consumer is not
// released out from under them.
const releasePopLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

func (s *RedisStream) releasePopLock(ctx context.Context, token string) {
	s.rdb.Eval(ctx, releasePopLockScript, []string{s.lockKey()}, token)
}

// Clear removes the stream key entirely.
func (s *RedisStream) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

// Size returns the stream's entry count.
func (s *RedisStream) Size(ctx context.Context) (int, error) {
	n, err := s.rdb.XLen(ctx, s.key).Result()
	return int(n), err
}

// Delete removes a single entry by id.
func (s *RedisStream) Delete(ctx context.Context, id string) error {
	return s.rdb.XDel(ctx, s.key, id).Err()
}

func entryFromMessage(msg redis.XMessage) *Entry {
	var payload []byte
	if v, ok := msg.Values["data"]; ok {
		switch t := v.(type) {
		case string:
			payload = []byte(t)
		case []byte:
			payload = t
		}
	}
	return &Entry{ID: msg.ID, Payload: payload}
}
