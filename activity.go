package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSessionEstablished ActivityEventType = "auth.session.established"
	ActivityEventSessionReconciled  ActivityEventType = "auth.session.reconciled"
	ActivityEventSessionCleared     ActivityEventType = "auth.session.cleared"
	ActivityEventSessionExpired     ActivityEventType = "auth.session.expired"
	ActivityEventSessionDesync      ActivityEventType = "auth.session.desync"
	ActivityEventSessionCorrupted   ActivityEventType = "auth.session.corrupted"
	ActivityEventSessionUpdated     ActivityEventType = "auth.session.updated"
	ActivityEventSignOut            ActivityEventType = "auth.signout"
	ActivityEventRemoteFailure      ActivityEventType = "auth.remote.failure"
	ActivityEventVerificationSent   ActivityEventType = "auth.verification.sent"
)

// ActivityEvent captures audit-friendly information about a session change.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	State      AuthState
	Reason     LogoutReason
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

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
