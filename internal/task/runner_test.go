package task

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/agentexec/internal/agentloop"
	"github.com/haasonsaas/agentexec/internal/flow"
	"github.com/haasonsaas/agentexec/internal/llm"
	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/internal/planner"
	"github.com/haasonsaas/agentexec/internal/react"
	"github.com/haasonsaas/agentexec/internal/sandbox"
	"github.com/haasonsaas/agentexec/internal/streams"
	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// scriptedProvider returns one canned, tool-free completion per call,
// enough to drive a single-step plan through CreatePlan, ExecuteStep, and
// Summarize without a real model backend.
type scriptedProvider struct {
	replies []string
	calls   int
}

func (p *scriptedProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := p.calls
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	p.calls++
	return &llm.CompletionResponse{Content: p.replies[i]}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

type memorySessionStore struct {
	sessions map[string]*models.Session
	memories map[string]*memory.Memory
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*models.Session), memories: make(map[string]*memory.Memory)}
}

func (s *memorySessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.sessions[sessionID], nil
}

func (s *memorySessionStore) Save(ctx context.Context, session *models.Session) error {
	s.sessions[session.ID] = session
	return nil
}

func (s *memorySessionStore) LoadMemory(ctx context.Context, sessionID, agentID string) (*memory.Memory, error) {
	if m, ok := s.memories[sessionID+"/"+agentID]; ok {
		return m, nil
	}
	return memory.New("you are a helpful agent"), nil
}

func (s *memorySessionStore) SaveMemory(ctx context.Context, sessionID, agentID string, mem *memory.Memory) error {
	s.memories[sessionID+"/"+agentID] = mem
	return nil
}

func readySandboxManager(t *testing.T) *sandbox.Manager {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"shell": "RUNNING"},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := sandbox.DefaultConfig()
	cfg.SharedEndpoint = srv.URL
	cfg.ReadinessAttempts = 5
	cfg.ReadinessInterval = time.Millisecond
	return sandbox.NewManager(cfg, nil)
}

func TestSessionRunnerDrivesTurnToCompletion(t *testing.T) {
	store := newMemorySessionStore()
	store.sessions["s1"] = &models.Session{ID: "s1", Status: models.SessionPending}

	planJSON := `{"title":"say hi","goal":"greet the user","language":"en","message":"ok","steps":[{"description":"say hello"}]}`
	stepJSON := `{"success":true,"result":"hello!"}`
	summaryJSON := `{"message":"said hello"}`
	provider := &scriptedProvider{replies: []string{planJSON, stepJSON, summaryJSON}}

	runner := &SessionRunner{
		Store:     store,
		Sandboxes: readySandboxManager(t),
		BuildFlow: func(ctx context.Context, sess *models.Session, sandboxSess *sandbox.Session) (*flow.Flow, error) {
			registry := toolsys.NewRegistry()
			registry.Register(toolsys.NewMessageToolbox())
			loop := agentloop.NewLoop(provider, registry, agentloop.LoopConfig{MaxIterations: 5, MaxRetries: 1})
			return flow.New(planner.New(loop, "test-model"), react.New(loop, "test-model"), "test-model"), nil
		},
		InputPoll: time.Millisecond,
	}

	factory := streams.NewMemoryFactory()
	input := factory.Open("task:input:t1")
	output := factory.Open("task:output:t1")
	turn, _ := json.Marshal(TurnInput{Message: "say hi"})
	if _, err := input.Put(context.Background(), turn); err != nil {
		t.Fatalf("seed input: %v", err)
	}

	tk := &Task{ID: "t1", SessionID: "s1", Input: input, Output: output}
	status, err := runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if status != StatusDone {
		t.Fatalf("expected StatusDone, got %s", status)
	}

	sess := store.sessions["s1"]
	if sess.Status != models.SessionCompleted {
		t.Fatalf("expected session completed, got %s", sess.Status)
	}
	if len(sess.Plans) != 1 || len(sess.Plans[0].Steps) != 1 {
		t.Fatalf("expected a single-step plan, got %+v", sess.Plans)
	}
	if sess.SandboxID == "" {
		t.Fatalf("expected sandbox id to be set on the session")
	}
	if sess.Title != "say hi" {
		t.Fatalf("expected session title set from the plan's title event, got %q", sess.Title)
	}

	size, err := output.Size(context.Background())
	if err != nil || size == 0 {
		t.Fatalf("expected events written to the output stream, size=%d err=%v", size, err)
	}
}

func TestSessionRunnerReturnsErrorWhenSandboxNeverReady(t *testing.T) {
	store := newMemorySessionStore()
	store.sessions["s2"] = &models.Session{ID: "s2", Status: models.SessionPending}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"shell": "STARTING"},
		})
	}))
	defer srv.Close()

	cfg := sandbox.DefaultConfig()
	cfg.SharedEndpoint = srv.URL
	cfg.ReadinessAttempts = 2
	cfg.ReadinessInterval = time.Millisecond

	runner := &SessionRunner{
		Store:     store,
		Sandboxes: sandbox.NewManager(cfg, nil),
		BuildFlow: func(ctx context.Context, sess *models.Session, sandboxSess *sandbox.Session) (*flow.Flow, error) {
			t.Fatalf("BuildFlow should not be reached when the sandbox never becomes ready")
			return nil, nil
		},
		InputPoll: time.Millisecond,
	}

	factory := streams.NewMemoryFactory()
	tk := &Task{ID: "t2", SessionID: "s2", Input: factory.Open("in"), Output: factory.Open("out")}
	status, err := runner.Run(context.Background(), tk)
	if err == nil || status != StatusError {
		t.Fatalf("expected a sandbox-not-ready error, got status=%s err=%v", status, err)
	}
}
