package reminder

import (
	"context"
	"time"
)

type EventType string

const (
	EventSent   EventType = "sent"
	EventFailed EventType = "failed"
)

// Event is emitted after a reminder reaches sent or failed.
type Event struct {
	Type     EventType
	Reminder *Reminder
	At       time.Time
}

// Listener receives lifecycle events. Implementations must not block for long;
// they run on the dispatching goroutine.
type Listener interface {
	HandleReminderEvent(ctx context.Context, e Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, e Event)

func (f ListenerFunc) HandleReminderEvent(ctx context.Context, e Event) { f(ctx, e) }
