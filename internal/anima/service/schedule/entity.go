package schedule

import "time"

// Kind partitions schedules by origin and recurrence.
type Kind string

const (
	KindRecurring   Kind = "recurring"
	KindAppointment Kind = "appointment"
	KindTemporary   Kind = "temporary"
)

// Priority levels order conflict resolution.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank maps a priority to its ordering weight. Unknown values rank lowest.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// CollaborationStatus tracks user-involving schedules.
type CollaborationStatus string

const (
	CollabNone     CollaborationStatus = "none"
	CollabPending  CollaborationStatus = "pending"
	CollabAccepted CollaborationStatus = "accepted"
	CollabDeclined CollaborationStatus = "declined"
)

// WeekdayUnset marks non-recurring schedules.
const WeekdayUnset = -1

// Schedule is a single plan entry. Recurring entries carry a weekday and
// their Start/End hold the time of day on an anchor date; appointment and
// temporary entries hold concrete instants.
type Schedule struct {
	UUID                string              `json:"uuid"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	Kind                Kind                `json:"kind"`
	StartTime           time.Time           `json:"start_time"`
	EndTime             time.Time           `json:"end_time"`
	Priority            Priority            `json:"priority"`
	Weekday             int                 `json:"weekday"`
	RecurrencePattern   string              `json:"recurrence_pattern,omitempty"`
	GeneratedReason     string              `json:"generated_reason,omitempty"`
	InvolvesUser        bool                `json:"involves_user"`
	CollaborationStatus CollaborationStatus `json:"collaboration_status"`
	IsQueryable         bool                `json:"is_queryable"`
	IsActive            bool                `json:"is_active"`
	Source              string              `json:"source"`
	CreatedAt           time.Time           `json:"created_at"`
}

// Occurrence is a schedule materialised onto a concrete interval. For
// non-recurring schedules it mirrors the stored times.
type Occurrence struct {
	*Schedule
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FreeSlot is a gap in a day's schedule.
type FreeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// overlaps applies the strict interval rule.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
