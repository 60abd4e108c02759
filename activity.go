package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegister        ActivityEventType = "auth.register"
	ActivityEventActivate        ActivityEventType = "auth.activate"
	ActivityEventVerify          ActivityEventType = "auth.verify"
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventRefresh         ActivityEventType = "auth.refresh"
	ActivityEventLogout          ActivityEventType = "auth.logout"
	ActivityEventPasswordChanged ActivityEventType = "auth.password.changed"
	ActivityEventPasskeyRegister ActivityEventType = "auth.passkey.register"
	ActivityEventPasskeyLogin    ActivityEventType = "auth.passkey.login"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

// NoopActivitySink discards every event
func NoopActivitySink() ActivitySink {
	return noopActivitySink{}
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// RecordActivity emits best-effort, sink errors are only logged
func RecordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink error during %s: %v", event.EventType, err)
	}
}
