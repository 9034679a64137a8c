// Package session implements the Store interface a Task's Runner uses to
// load and persist a Session's state: its event history, plans,
// per-agent memories, and hierarchy/expiry metadata.
//
// Grounded on internal/sessions' Store interface shape and its two
// implementations (cockroach.go for a real database, branch_memory.go
// for an in-memory test double), generalized from that package's
// channel/branch-oriented session model to this spec's single linear
// per-session event log and per-agent memory map.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/agentexec/internal/memory"
	"github.com/haasonsaas/agentexec/pkg/models"
)

// ErrNotFound is returned when a session id has no corresponding record.
var ErrNotFound = fmt.Errorf("session: not found")

// Store is the persistence contract a Task's Runner and the chat
// orchestrator depend on.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, sessionID string) error

	// Children returns every session whose ParentSessionID is parentID,
	// per the parent/child handoff hierarchy (spec §4.8 supplement).
	Children(ctx context.Context, parentID string) ([]*models.Session, error)

	LoadMemory(ctx context.Context, sessionID, agentID string) (*memory.Memory, error)
	SaveMemory(ctx context.Context, sessionID, agentID string, mem *memory.Memory) error
}

// MemoryStore is an in-process Store backed by a guarded map, grounded on
// internal/sessions/branch_memory.go's MemoryBranchStore. It is meant for
// tests and single-process deployments without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *MemoryStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.UpdatedAt = session.CreatedAt
	if session.Memories == nil {
		session.Memories = make(map[string][]models.ChatMessage)
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemoryStore) Save(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	session.UpdatedAt = time.Now().UTC()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Children(ctx context.Context, parentID string) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.ParentSessionID == parentID {
			out = append(out, cloneSession(sess))
		}
	}
	return out, nil
}

func (s *MemoryStore) LoadMemory(ctx context.Context, sessionID, agentID string) (*memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return memory.Restore(sess.Memories[agentID]), nil
}

func (s *MemoryStore) SaveMemory(ctx context.Context, sessionID, agentID string, mem *memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Memories == nil {
		sess.Memories = make(map[string][]models.ChatMessage)
	}
	sess.Memories[agentID] = mem.Messages()
	return nil
}

func cloneSession(s *models.Session) *models.Session {
	cp := *s
	cp.Events = append([]models.Event(nil), s.Events...)
	cp.Files = append([]models.File(nil), s.Files...)
	cp.Plans = append([]*models.Plan(nil), s.Plans...)
	cp.Memories = make(map[string][]models.ChatMessage, len(s.Memories))
	for k, v := range s.Memories {
		cp.Memories[k] = append([]models.ChatMessage(nil), v...)
	}
	return &cp
}
