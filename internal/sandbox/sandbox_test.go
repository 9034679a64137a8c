package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func statusServer(t *testing.T, readyAfter int32) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		state := "STARTING"
		if n >= readyAfter {
			state = "RUNNING"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"shell": state, "browser": state},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestManager_EnsureReady_SucceedsOnceRunning(t *testing.T) {
	srv, calls := statusServer(t, 3)

	cfg := DefaultConfig()
	cfg.SharedEndpoint = srv.URL
	cfg.ReadinessAttempts = 10
	cfg.ReadinessInterval = time.Millisecond

	mgr := NewManager(cfg, nil)
	sess, err := mgr.Create(context.Background(), "sess-1")
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.EnsureReady(context.Background(), sess); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if atomic.LoadInt32(calls) < 3 {
		t.Fatalf("expected at least 3 polls, got %d", atomic.LoadInt32(calls))
	}
}

func TestManager_EnsureReady_FailsWhenNeverRunning(t *testing.T) {
	srv, _ := statusServer(t, 1000)

	cfg := DefaultConfig()
	cfg.SharedEndpoint = srv.URL
	cfg.ReadinessAttempts = 3
	cfg.ReadinessInterval = time.Millisecond

	mgr := NewManager(cfg, nil)
	sess, err := mgr.Create(context.Background(), "sess-2")
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.EnsureReady(context.Background(), sess); err == nil {
		t.Fatal("expected EnsureReady to fail")
	}
}

func TestManager_Create_ReturnsCachedSessionForSameID(t *testing.T) {
	srv, _ := statusServer(t, 1)
	cfg := DefaultConfig()
	cfg.SharedEndpoint = srv.URL

	mgr := NewManager(cfg, nil)
	s1, _ := mgr.Create(context.Background(), "sess-3")
	s2, _ := mgr.Create(context.Background(), "sess-3")
	if s1 != s2 {
		t.Fatal("expected Create to return the cached session for a known id")
	}
}

func TestManager_Destroy_IsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SharedEndpoint = "http://example.invalid"
	mgr := NewManager(cfg, nil)

	if err := mgr.Destroy(context.Background(), "never-created"); err != nil {
		t.Fatalf("Destroy on unknown session should be a no-op: %v", err)
	}

	mgr.Create(context.Background(), "sess-4")
	if err := mgr.Destroy(context.Background(), "sess-4"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Destroy(context.Background(), "sess-4"); err != nil {
		t.Fatalf("second Destroy should also be a no-op: %v", err)
	}
	if _, ok := mgr.Get("sess-4"); ok {
		t.Fatal("destroyed session should no longer be cached")
	}
}
