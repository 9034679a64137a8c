// Hierarchy support: parent/child sessions for sub-agent delegation.
//
// Supplemented from original_source/ (see SPEC_FULL.md §3): the
// distilled spec keeps Session.ParentSessionID but never describes an
// operation over it. The original implementation spawns child sessions
// when a step hands off to a sub-agent and later needs to look those
// children back up by parent id; this file is the minimal operation set
// that supports that, grounded on internal/sessions/hierarchy.go's
// HierarchicalKey/SessionKeyHierarchy helpers, simplified from that
// package's channel-scoped agent-handoff keying to this spec's flat
// ParentSessionID field.
package session

import (
	"context"

	"github.com/haasonsaas/agentexec/pkg/models"
)

// CreateChild creates a new session as a child of parentID, copying
// nothing from the parent but the linkage itself -- the child starts
// PENDING with its own empty event/plan/memory state, exactly like any
// other fresh session.
func CreateChild(ctx context.Context, store Store, parentID string, child *models.Session) error {
	child.ParentSessionID = parentID
	return store.Create(ctx, child)
}

// Lineage walks parent links starting from sessionID up to the root,
// returning the chain in root-first order. It stops at the first
// session with no ParentSessionID, or on the first load error.
func Lineage(ctx context.Context, store Store, sessionID string) ([]*models.Session, error) {
	var chain []*models.Session
	seen := map[string]bool{}
	id := sessionID
	for id != "" {
		if seen[id] {
			break // defend against a cyclic parent chain
		}
		seen[id] = true
		sess, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append([]*models.Session{sess}, chain...)
		id = sess.ParentSessionID
	}
	return chain, nil
}
