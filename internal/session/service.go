package session

import (
	"context"
	"fmt"

	"github.com/haasonsaas/agentexec/pkg/models"
)

// Service is the Session Service (C11): the thin business layer over
// Store that an HTTP/WebSocket adapter calls into directly, per spec §6
// ("thin adapters over internal/chat.Orchestrator, internal/session.Service,
// and internal/sandbox.Session"). It adds session creation, hierarchy,
// and expiry sweeping on top of Store's raw persistence contract.
type Service struct {
	Store  Store
	Expiry *ExpiryPolicy // nil disables the Sweep operation
}

// NewService builds a Service. expiry may be nil if expiry sweeping is
// not configured.
func NewService(store Store, expiry *ExpiryPolicy) *Service {
	return &Service{Store: store, Expiry: expiry}
}

// StartSession creates a fresh top-level session.
func (s *Service) StartSession(ctx context.Context, id, title string) (*models.Session, error) {
	sess := &models.Session{ID: id, Title: title, Status: models.SessionPending}
	if err := s.Store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: start: %w", err)
	}
	return sess, nil
}

// StartChild creates a session as a child of parentID.
func (s *Service) StartChild(ctx context.Context, id, title, parentID string) (*models.Session, error) {
	sess := &models.Session{ID: id, Title: title, Status: models.SessionPending}
	if err := CreateChild(ctx, s.Store, parentID, sess); err != nil {
		return nil, fmt.Errorf("session: start child: %w", err)
	}
	return sess, nil
}

// Lineage returns sessionID's ancestor chain, root first.
func (s *Service) Lineage(ctx context.Context, sessionID string) ([]*models.Session, error) {
	return Lineage(ctx, s.Store, sessionID)
}

// Sweep archives every top-level session in ids whose ExpiryPolicy says
// it has gone stale, per spec §3's supplemented idle/daily reset
// behavior. It is meant to be called periodically (e.g. from a cmd/
// ticker) rather than per-request.
func (s *Service) Sweep(ctx context.Context, ids []string) (archived int, err error) {
	if s.Expiry == nil {
		return 0, nil
	}
	for _, id := range ids {
		sess, getErr := s.Store.Get(ctx, id)
		if getErr != nil {
			continue
		}
		if !s.Expiry.ShouldReset(sess) {
			continue
		}
		Archive(sess)
		if saveErr := s.Store.Save(ctx, sess); saveErr != nil {
			return archived, fmt.Errorf("session: archive %s: %w", id, saveErr)
		}
		archived++
	}
	return archived, nil
}
