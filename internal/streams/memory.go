package streams

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryFactory opens in-process MemoryStreams keyed by name. It is used
// for tests and for single-process deployments that do not configure
// Redis (spec §6 persisted-state is optional infrastructure; the core
// only requires the Stream contract).
type MemoryFactory struct {
	mu      sync.Mutex
	streams map[string]*MemoryStream
}

// NewMemoryFactory creates an empty MemoryFactory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{streams: make(map[string]*MemoryStream)}
}

// Open returns the named stream, creating it on first use.
func (f *MemoryFactory) Open(name string) Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[name]
	if !ok {
		s = newMemoryStream()
		f.streams[name] = s
	}
	return s
}

// MemoryStream is an in-process append-only queue with condvar-based
// tail-follow and a single-holder advisory lock guarding Pop, mirroring
// the contract a Redis-backed Stream provides across processes.
type MemoryStream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries []Entry
	seq     uint64
	closed  bool

	popLock     bool
	popLockCond *sync.Cond
}

func newMemoryStream() *MemoryStream {
	s := &MemoryStream{}
	s.cond = sync.NewCond(&s.mu)
	s.popLockCond = sync.NewCond(&s.mu)
	return s
}

func (s *MemoryStream) nextID() string {
	s.seq++
	// Zero-padded so lexicographic and numeric ordering agree, matching
	// the "lexicographically comparable across a single stream" contract
	// from spec §4.1.
	return fmt.Sprintf("%020d", s.seq)
}

// Put appends payload and returns its strictly monotonic id.
func (s *MemoryStream) Put(_ context.Context, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	id := s.nextID()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.entries = append(s.entries, Entry{ID: id, Payload: cp})
	s.cond.Broadcast()
	return id, nil
}

// Tail returns the first entry strictly after afterID, blocking up to
// blockFor if none is yet available. afterID == "0" starts from the
// beginning. Tail never consumes entries.
func (s *MemoryStream) Tail(ctx context.Context, afterID string, blockFor time.Duration) (*Entry, error) {
	deadline := time.Now().Add(blockFor)

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed {
			return nil, ErrClosed
		}
		if e := firstAfter(s.entries, afterID); e != nil {
			return e, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// cond.Wait must be called by the goroutine already holding s.mu
		// (it unlocks and relocks that same mutex internally), so the
		// timeout and cancellation watchers below broadcast from the
		// outside instead of calling Wait themselves.
		stop := make(chan struct{})
		timer := time.AfterFunc(remaining, func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		if done := ctx.Done(); done != nil {
			go func() {
				select {
				case <-done:
					s.mu.Lock()
					s.cond.Broadcast()
					s.mu.Unlock()
				case <-stop:
				}
			}()
		}

		s.cond.Wait()

		timer.Stop()
		close(stop)

		// Re-check loop condition on the next iteration; a spurious
		// wakeup simply falls through to firstAfter again.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) {
			if e := firstAfter(s.entries, afterID); e != nil {
				return e, nil
			}
			return nil, nil
		}
	}
}

func firstAfter(entries []Entry, afterID string) *Entry {
	if afterID == "" {
		afterID = "0"
	}
	for i := range entries {
		if entries[i].ID > afterID {
			e := entries[i]
			return &e
		}
	}
	return nil
}

// Pop acquires the stream's advisory lock (bounded by DefaultPopLockConfig)
// and atomically removes and returns the head entry.
func (s *MemoryStream) Pop(ctx context.Context) (*Entry, error) {
	cfg := DefaultPopLockConfig()

	s.mu.Lock()
	deadline := time.Now().Add(cfg.AcquireTimeout)
	for s.popLock {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.mu.Unlock()
			return nil, ErrLockTimeout
		}
		// popLockCond.Wait must be called by the goroutine already
		// holding s.mu; a timer goroutine broadcasts from the outside
		// to wake it instead of calling Wait itself.
		timer := time.AfterFunc(remaining, func() {
			s.mu.Lock()
			s.popLockCond.Broadcast()
			s.mu.Unlock()
		})
		s.popLockCond.Wait()
		timer.Stop()
	}
	s.popLock = true
	releaseAt := time.Now().Add(cfg.LockTTL)
	defer func() {
		s.mu.Lock()
		s.popLock = false
		s.popLockCond.Signal()
		s.mu.Unlock()
	}()

	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	if time.Now().After(releaseAt) {
		s.mu.Unlock()
		return nil, ErrLockTimeout
	}
	head := s.entries[0]
	s.entries = s.entries[1:]
	s.mu.Unlock()
	return &head, nil
}

// Clear removes all entries.
func (s *MemoryStream) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

// Size returns the number of entries currently queued.
func (s *MemoryStream) Size(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// Delete removes a single entry by id.
func (s *MemoryStream) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}
