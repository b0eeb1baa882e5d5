package memory

import (
	"context"
)

// Repository is the persistence contract for layered memory.
type Repository interface {
	// AppendMessage stores a message in the short-term log and fills its ID.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListShortTerm returns the whole short-term log in append order.
	ListShortTerm(ctx context.Context) ([]*Message, error)

	// RecentMessages returns the newest limit messages in append order.
	RecentMessages(ctx context.Context, limit int) ([]*Message, error)

	// ArchiveMessages inserts the summary and deletes the archived messages
	// in one transaction.
	ArchiveMessages(ctx context.Context, summary *Summary, messageIDs []int64) error

	// ListSummaries returns the newest limit summaries, oldest first.
	ListSummaries(ctx context.Context, limit int) ([]*Summary, error)

	// InsertExpressionStyle stores a learned or configured style.
	InsertExpressionStyle(ctx context.Context, style *ExpressionStyle) error

	// ListExpressionStyles returns styles of a kind, newest first.
	ListExpressionStyles(ctx context.Context, kind StyleKind, limit int) ([]*ExpressionStyle, error)
}

// MetadataRepository is the persistent key/value counter store.
type MetadataRepository interface {
	// GetMeta returns the value for key, "" when absent.
	GetMeta(ctx context.Context, key string) (string, error)

	// SetMeta stores the value for key.
	SetMeta(ctx context.Context, key, value string) error

	// IncrMetaInt atomically increments an integer value and returns it.
	IncrMetaInt(ctx context.Context, key string, delta int64) (int64, error)

	// GetMetaInt returns the integer value for key, 0 when absent.
	GetMetaInt(ctx context.Context, key string) (int64, error)
}
