package streams

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestEntryFromMessageDecodesStringPayload(t *testing.T) {
	e := entryFromMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"data": "hello"}})
	if e.ID != "1-0" || string(e.Payload) != "hello" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestEntryFromMessageDecodesByteSlicePayload(t *testing.T) {
	e := entryFromMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"data": []byte("hello")}})
	if string(e.Payload) != "hello" {
		t.Fatalf("unexpected payload: %q", e.Payload)
	}
}

func TestEntryFromMessageHandlesMissingDataField(t *testing.T) {
	e := entryFromMessage(redis.XMessage{ID: "1-0", Values: map[string]any{}})
	if e.Payload != nil {
		t.Fatalf("expected nil payload, got %q", e.Payload)
	}
}

func TestRedisStreamLockKeyIsScopedToStreamKey(t *testing.T) {
	s := &RedisStream{key: "session-1"}
	if got := s.lockKey(); got != "streams:poplock:session-1" {
		t.Fatalf("unexpected lock key: %s", got)
	}
}
