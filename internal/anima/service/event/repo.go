package event

import "context"

// Repository is the persistence contract for events.
type Repository interface {
	// InsertEvent stores an event and fills UUID/CreatedAt.
	InsertEvent(ctx context.Context, ev *Event) error

	// GetEvent returns an event by uuid or errno.ErrNotFound.
	GetEvent(ctx context.Context, uuid string) (*Event, error)

	// ListEvents returns events, optionally filtered by status, newest first.
	ListEvents(ctx context.Context, status Status, limit int) ([]*Event, error)

	// UpdateEventStatus writes the status and appends a log line in one
	// transaction.
	UpdateEventStatus(ctx context.Context, uuid string, status Status, log *Log) error

	// AppendEventLog adds an audit line without touching status.
	AppendEventLog(ctx context.Context, uuid string, log *Log) error

	// ListEventLogs returns an event's audit lines in append order.
	ListEventLogs(ctx context.Context, uuid string) ([]*Log, error)
}
