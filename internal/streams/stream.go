// Package streams implements the append-only, ID-keyed, tail-follow
// message queue that backs a Task's input and output streams, and the
// persistent ordered event log each Session exposes as a resumable SSE
// tail.
package streams

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by stream operations once the stream has been
// deleted or the owning process is shutting down.
var ErrClosed = errors.New("streams: stream closed")

// ErrLockTimeout is returned by Pop when the advisory lock could not be
// acquired within its bounded window.
var ErrLockTimeout = errors.New("streams: pop lock acquire timed out")

// Entry is one record on a Stream: a strictly monotonic, lexicographically
// comparable ID, and an opaque JSON payload.
type Entry struct {
	ID      string
	Payload []byte
}

// Stream is an append-only sequence of (id, payload) entries, as
// specified for the per-task input/output queues and the per-session
// event log (spec §4.1).
//
//   - Put is the single append path; it returns a strictly monotonic id.
//   - Tail is the many-reader path: each call returns the first entry
//     strictly after afterID, blocking up to blockFor. afterID == "0"
//     means "from the beginning". Tail does not consume; many
//     independent readers may tail the same stream at their own cursor.
//   - Pop is the single-consumer path: it atomically removes and returns
//     the head entry, guarded by a stream-scoped advisory lock so that
//     concurrent Pop calls from multiple worker processes are serialized
//     rather than racing to deliver the same entry twice.
type Stream interface {
	Put(ctx context.Context, payload []byte) (id string, err error)
	Tail(ctx context.Context, afterID string, blockFor time.Duration) (*Entry, error)
	Pop(ctx context.Context) (*Entry, error)
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

// Factory opens (or creates) the named stream. Implementations key the
// name verbatim, e.g. "task:input:{task_id}" or "task:output:{task_id}".
type Factory interface {
	Open(name string) Stream
}

// PopLockConfig bounds how long Pop waits to acquire the per-stream
// advisory lock, and how long that lock is held before it auto-expires
// (protecting against a consumer that crashes mid-pop).
type PopLockConfig struct {
	AcquireTimeout time.Duration
	LockTTL        time.Duration
}

// DefaultPopLockConfig matches spec §4.1: a 5s bounded acquire and a
// fixed 10s expiry.
func DefaultPopLockConfig() PopLockConfig {
	return PopLockConfig{
		AcquireTimeout: 5 * time.Second,
		LockTTL:        10 * time.Second,
	}
}
