// Idle and daily session archival.
//
// Supplemented from original_source/ (see SPEC_FULL.md §3): the
// distilled spec never says what happens to a session nobody touches
// again. Grounded on internal/sessions/expiry.go's SessionExpiry, pared
// down from that package's per-channel/per-conversation-type reset
// config (this spec has neither channels nor conversation types) to a
// single ExpiryPolicy evaluated against Session.UpdatedAt.
package session

import (
	"strings"
	"time"

	"github.com/haasonsaas/agentexec/pkg/models"
)

// ResetMode selects how ExpiryPolicy decides a session is stale.
type ResetMode string

const (
	ResetModeNever     ResetMode = "never"
	ResetModeDaily     ResetMode = "daily"
	ResetModeIdle      ResetMode = "idle"
	ResetModeDailyIdle ResetMode = "daily+idle"
)

// ExpiryPolicy decides whether a session's in-memory state (events,
// plans, memories) should be archived and the session reset to a fresh
// PENDING thread sharing the same ID.
type ExpiryPolicy struct {
	Mode        ResetMode
	AtHour      int // for daily/daily+idle, the hour (0-23, local) resets occur
	IdleMinutes int // for idle/daily+idle, minutes of inactivity before reset

	nowFunc  func() time.Time
	location *time.Location
}

// NewExpiryPolicy builds a policy against time.Now/time.Local; tests
// substitute nowFunc via WithNow.
func NewExpiryPolicy(mode ResetMode, atHour, idleMinutes int) *ExpiryPolicy {
	return &ExpiryPolicy{
		Mode:        mode,
		AtHour:      atHour,
		IdleMinutes: idleMinutes,
		nowFunc:     time.Now,
		location:    time.Local,
	}
}

// WithNow overrides the policy's clock, for deterministic tests.
func (p *ExpiryPolicy) WithNow(fn func() time.Time) *ExpiryPolicy {
	p.nowFunc = fn
	return p
}

// ShouldReset reports whether sess has gone stale under the policy.
func (p *ExpiryPolicy) ShouldReset(sess *models.Session) bool {
	if sess == nil {
		return false
	}
	now := p.nowFunc()
	switch ResetMode(strings.ToLower(strings.TrimSpace(string(p.Mode)))) {
	case ResetModeDaily:
		return p.pastDailyReset(sess, now)
	case ResetModeIdle:
		return p.idleExpired(sess, now)
	case ResetModeDailyIdle:
		return p.pastDailyReset(sess, now) || p.idleExpired(sess, now)
	default:
		return false
	}
}

func (p *ExpiryPolicy) lastActivity(sess *models.Session) time.Time {
	if !sess.UpdatedAt.IsZero() {
		return sess.UpdatedAt
	}
	return sess.CreatedAt
}

func (p *ExpiryPolicy) pastDailyReset(sess *models.Session, now time.Time) bool {
	last := p.lastActivity(sess)
	if last.IsZero() {
		return false
	}
	loc := p.location
	if loc == nil {
		loc = time.Local
	}
	hour := p.AtHour
	if hour < 0 || hour > 23 {
		hour = 0
	}
	nowInLoc, lastInLoc := now.In(loc), last.In(loc)
	reset := time.Date(nowInLoc.Year(), nowInLoc.Month(), nowInLoc.Day(), hour, 0, 0, 0, loc)
	if nowInLoc.Hour() < hour {
		reset = reset.AddDate(0, 0, -1)
	}
	return lastInLoc.Before(reset)
}

func (p *ExpiryPolicy) idleExpired(sess *models.Session, now time.Time) bool {
	if p.IdleMinutes <= 0 {
		return false
	}
	last := p.lastActivity(sess)
	if last.IsZero() {
		return false
	}
	return now.Sub(last) >= time.Duration(p.IdleMinutes)*time.Minute
}

// Archive resets sess's conversational state in place -- events, plans,
// and memories are cleared and the task/sandbox linkage severed -- while
// preserving its ID, title, and ParentSessionID, so a later message to
// the same session ID starts a fresh thread rather than minting a new
// session entirely.
func Archive(sess *models.Session) {
	sess.Events = nil
	sess.Plans = nil
	sess.Memories = nil
	sess.Files = nil
	sess.TaskID = ""
	sess.SandboxID = ""
	sess.LatestMessage = ""
	sess.UnreadCount = 0
	sess.Status = models.SessionPending
}
