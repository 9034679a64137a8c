package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/agentexec/pkg/models"
)

// EventLog wraps a Stream with models.Event-typed Put/Tail, used for a
// session's persistent ordered output history (spec §4.1's "persistent
// ordered session log with resumable tail").
type EventLog struct {
	stream Stream
}

// NewEventLog wraps the given stream.
func NewEventLog(stream Stream) *EventLog {
	return &EventLog{stream: stream}
}

// Append assigns ev an id and CreatedAt and writes it to the underlying
// stream, returning the assigned id.
func (l *EventLog) Append(ctx context.Context, ev models.Event) (models.Event, error) {
	ev.CreatedAt = time.Now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		return ev, fmt.Errorf("streams: marshal event: %w", err)
	}
	id, err := l.stream.Put(ctx, body)
	if err != nil {
		return ev, err
	}
	ev.ID = id
	return ev, nil
}

// Tail returns the next event strictly after afterID, blocking up to
// blockFor.
func (l *EventLog) Tail(ctx context.Context, afterID string, blockFor time.Duration) (*models.Event, error) {
	entry, err := l.stream.Tail(ctx, afterID, blockFor)
	if err != nil || entry == nil {
		return nil, err
	}
	var ev models.Event
	if err := json.Unmarshal(entry.Payload, &ev); err != nil {
		return nil, fmt.Errorf("streams: unmarshal event %s: %w", entry.ID, err)
	}
	ev.ID = entry.ID
	return &ev, nil
}
