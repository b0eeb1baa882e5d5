package schedule

import "context"

// Repository is the persistence contract for schedules.
type Repository interface {
	// InsertSchedule stores a schedule and fills UUID/CreatedAt.
	InsertSchedule(ctx context.Context, s *Schedule) error

	// GetSchedule returns a schedule by uuid or errno.ErrNotFound.
	GetSchedule(ctx context.Context, uuid string) (*Schedule, error)

	// ListSchedules returns all schedules, optionally only active rows,
	// ordered by start time.
	ListSchedules(ctx context.Context, activeOnly bool) ([]*Schedule, error)

	// SoftDeleteSchedule marks a schedule inactive. The single deletion
	// path; rows are never removed.
	SoftDeleteSchedule(ctx context.Context, uuid string) error

	// UpdateCollaboration writes the collaboration outcome fields.
	UpdateCollaboration(ctx context.Context, uuid string, status CollaborationStatus, isQueryable, isActive bool) error
}
