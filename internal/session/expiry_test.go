package session

import (
	"testing"
	"time"

	"github.com/haasonsaas/agentexec/pkg/models"
)

func TestExpiryPolicyIdleReset(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	policy := NewExpiryPolicy(ResetModeIdle, 0, 30).WithNow(func() time.Time { return now })

	stale := &models.Session{UpdatedAt: now.Add(-45 * time.Minute)}
	if !policy.ShouldReset(stale) {
		t.Fatal("expected a 45-minute-idle session to reset under a 30-minute idle policy")
	}

	fresh := &models.Session{UpdatedAt: now.Add(-5 * time.Minute)}
	if policy.ShouldReset(fresh) {
		t.Fatal("expected a 5-minute-idle session not to reset under a 30-minute idle policy")
	}
}

func TestExpiryPolicyDailyReset(t *testing.T) {
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	policy := NewExpiryPolicy(ResetModeDaily, 4, 0).WithNow(func() time.Time { return now })

	beforeTodayReset := &models.Session{UpdatedAt: time.Date(2026, 7, 29, 2, 0, 0, 0, time.UTC)}
	if !policy.ShouldReset(beforeTodayReset) {
		t.Fatal("expected a session last active before today's 4am reset to reset")
	}

	afterTodayReset := &models.Session{UpdatedAt: time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)}
	if policy.ShouldReset(afterTodayReset) {
		t.Fatal("expected a session active after today's 4am reset not to reset")
	}
}

func TestExpiryPolicyNeverMode(t *testing.T) {
	policy := NewExpiryPolicy(ResetModeNever, 0, 0)
	stale := &models.Session{UpdatedAt: time.Now().Add(-30 * 24 * time.Hour)}
	if policy.ShouldReset(stale) {
		t.Fatal("expected never mode to never reset")
	}
}

func TestArchiveClearsConversationalState(t *testing.T) {
	sess := &models.Session{
		ID:        "s1",
		Status:    models.SessionCompleted,
		TaskID:    "t1",
		SandboxID: "sb1",
		Events:    []models.Event{{Type: models.EventDone}},
		Plans:     []*models.Plan{{}},
	}
	Archive(sess)

	if sess.ID != "s1" {
		t.Fatal("expected Archive to preserve the session ID")
	}
	if sess.TaskID != "" || sess.SandboxID != "" {
		t.Fatal("expected Archive to sever task/sandbox linkage")
	}
	if len(sess.Events) != 0 || len(sess.Plans) != 0 {
		t.Fatal("expected Archive to clear events and plans")
	}
	if sess.Status != models.SessionPending {
		t.Fatalf("expected status reset to PENDING, got %s", sess.Status)
	}
}
