package session

import (
	"context"
	"testing"

	"github.com/haasonsaas/agentexec/pkg/models"
)

func TestCreateChildLinksParent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	parent := &models.Session{ID: "parent", Status: models.SessionPending}
	if err := store.Create(ctx, parent); err != nil {
		t.Fatalf("create parent: %v", err)
	}

	child := &models.Session{ID: "child", Status: models.SessionPending}
	if err := CreateChild(ctx, store, "parent", child); err != nil {
		t.Fatalf("create child: %v", err)
	}

	children, err := store.Children(ctx, "parent")
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 1 || children[0].ID != "child" {
		t.Fatalf("expected one child session, got %+v", children)
	}
}

func TestLineageWalksToRoot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	root := &models.Session{ID: "root", Status: models.SessionPending}
	mid := &models.Session{ID: "mid", Status: models.SessionPending, ParentSessionID: "root"}
	leaf := &models.Session{ID: "leaf", Status: models.SessionPending, ParentSessionID: "mid"}
	for _, s := range []*models.Session{root, mid, leaf} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.ID, err)
		}
	}

	chain, err := Lineage(ctx, store, "leaf")
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(chain) != 3 || chain[0].ID != "root" || chain[2].ID != "leaf" {
		t.Fatalf("expected root-first chain [root mid leaf], got %+v", ids(chain))
	}
}

func ids(sessions []*models.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
