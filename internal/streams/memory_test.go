package streams

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStream_PutMonotonic(t *testing.T) {
	s := newMemoryStream()
	ctx := context.Background()

	id1, err := s.Put(ctx, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.Put(ctx, []byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	if !(id2 > id1) {
		t.Fatalf("id2 %q not greater than id1 %q", id2, id1)
	}
}

func TestMemoryStream_TailFromBeginning(t *testing.T) {
	s := newMemoryStream()
	ctx := context.Background()
	id1, _ := s.Put(ctx, []byte("a"))
	s.Put(ctx, []byte("b"))

	e, err := s.Tail(ctx, "0", 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.ID != id1 {
		t.Fatalf("expected first entry %q, got %+v", id1, e)
	}
}

func TestMemoryStream_TailResumesAfterCursor(t *testing.T) {
	s := newMemoryStream()
	ctx := context.Background()
	id1, _ := s.Put(ctx, []byte("a"))
	id2, _ := s.Put(ctx, []byte("b"))

	e, err := s.Tail(ctx, id1, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.ID != id2 {
		t.Fatalf("expected second entry %q, got %+v", id2, e)
	}
}

func TestMemoryStream_TailBlocksUntilPut(t *testing.T) {
	s := newMemoryStream()
	ctx := context.Background()

	done := make(chan *Entry, 1)
	go func() {
		e, err := s.Tail(ctx, "0", time.Second)
		if err != nil {
			t.Error(err)
		}
		done <- e
	}()

	time.Sleep(20 * time.Millisecond)
	id, _ := s.Put(ctx, []byte("later"))

	select {
	case e := <-done:
		if e == nil || e.ID != id {
			t.Fatalf("expected entry %q, got %+v", id, e)
		}
	case <-time.After(time.Second):
		t.Fatal("Tail did not unblock on Put")
	}
}

func TestMemoryStream_TailTimesOutWithoutEntry(t *testing.T) {
	s := newMemoryStream()
	ctx := context.Background()

	start := time.Now()
	e, err := s.Tail(ctx, "0", 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if e != nil {
		t.Fatalf("expected nil entry, got %+v", e)
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatalf("returned too early: %v", time.Since(start))
	}
}

func TestMemoryStream_PopRemovesHeadOnce(t *testing.T) {
	s := newMemoryStream()
	ctx := context.Background()
	id1, _ := s.Put(ctx, []byte("a"))
	s.Put(ctx, []byte("b"))

	e, err := s.Pop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.ID != id1 {
		t.Fatalf("expected %q, got %+v", id1, e)
	}

	size, _ := s.Size(ctx)
	if size != 1 {
		t.Fatalf("size = %d, want 1", size)
	}
}

func TestMemoryStream_ConcurrentPopDeliversEachOnce(t *testing.T) {
	s := newMemoryStream()
	ctx := context.Background()
	const n = 20
	for i := 0; i < n; i++ {
		s.Put(ctx, []byte("x"))
	}

	results := make(chan *Entry, n*2)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, err := s.Pop(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				if e == nil {
					return
				}
				results <- e
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	count := 0
	for e := range results {
		if seen[e.ID] {
			t.Fatalf("entry %q delivered more than once", e.ID)
		}
		seen[e.ID] = true
		count++
	}
	if count != n {
		t.Fatalf("delivered %d entries, want %d", count, n)
	}
}
