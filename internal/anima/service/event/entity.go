package event

import "time"

// Kind partitions events by how they are handled.
type Kind string

const (
	KindNotification Kind = "notification"
	KindTask         Kind = "task"
)

// Status values an event moves through.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Metadata keys task events carry.
const (
	MetaTaskRequirements   = "task_requirements"
	MetaCompletionCriteria = "completion_criteria"
)

// Event is an externally created unit of work the kernel processes.
type Event struct {
	UUID        string            `json:"uuid"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Kind        Kind              `json:"kind"`
	Priority    string            `json:"priority"`
	Status      Status            `json:"status"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Log is one audit line appended while an event is processed.
type Log struct {
	Timestamp time.Time `json:"ts"`
	Action    string    `json:"action"`
	Content   string    `json:"content"`
}
