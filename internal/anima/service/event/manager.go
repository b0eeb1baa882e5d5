package event

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/internal/anima/service/taskgraph"
	"github.com/kiosk404/anima/pkg/logger"
)

const ModuleName = "event"

// Manager dispatches events: notifications get a single explanation call,
// tasks run through the task graph engine keyed by the event id.
type Manager struct {
	repo  Repository
	llm   llm.Caller
	tasks *taskgraph.Engine
}

// NewManager creates the event manager.
func NewManager(repo Repository, caller llm.Caller, tasks *taskgraph.Engine) *Manager {
	return &Manager{repo: repo, llm: caller, tasks: tasks}
}

// Create stores a new pending event.
func (m *Manager) Create(ctx context.Context, ev *Event) error {
	if ev.Title == "" {
		return fmt.Errorf("%w: event title required", errno.ErrBadInput)
	}
	switch ev.Kind {
	case KindNotification, KindTask:
	default:
		return fmt.Errorf("%w: unknown event kind %q", errno.ErrBadInput, ev.Kind)
	}
	ev.Status = StatusPending
	return m.repo.InsertEvent(ctx, ev)
}

// Get returns an event by uuid.
func (m *Manager) Get(ctx context.Context, uuid string) (*Event, error) {
	return m.repo.GetEvent(ctx, uuid)
}

// List returns events, optionally filtered by status.
func (m *Manager) List(ctx context.Context, status Status, limit int) ([]*Event, error) {
	return m.repo.ListEvents(ctx, status, limit)
}

// Logs returns an event's audit lines.
func (m *Manager) Logs(ctx context.Context, uuid string) ([]*Log, error) {
	return m.repo.ListEventLogs(ctx, uuid)
}

// Handle processes the event and returns the text to surface as the chat
// reply. Completed events are refused with errno.ErrEventAlreadyDone.
// The deliveryPending flag mirrors the task graph's simple path: the host
// decides when to call MarkEventCompleted.
func (m *Manager) Handle(ctx context.Context, uuid, characterContext string) (reply string, deliveryPending bool, err error) {
	ev, err := m.repo.GetEvent(ctx, uuid)
	if err != nil {
		return "", false, err
	}
	if ev.Status == StatusCompleted {
		return "", false, fmt.Errorf("%w: event %s", errno.ErrEventAlreadyDone, uuid)
	}

	if err := m.repo.UpdateEventStatus(ctx, uuid, StatusProcessing, logLine("processing", "event handling started")); err != nil {
		return "", false, err
	}

	switch ev.Kind {
	case KindNotification:
		reply, err = m.handleNotification(ctx, ev, characterContext)
		if err != nil {
			_ = m.repo.UpdateEventStatus(ctx, uuid, StatusFailed, logLine("failed", err.Error()))
			return "", false, err
		}
		if err := m.repo.UpdateEventStatus(ctx, uuid, StatusCompleted, logLine("completed", "notification explained")); err != nil {
			return "", false, err
		}
		return reply, false, nil

	case KindTask:
		return m.handleTask(ctx, ev, characterContext)

	default:
		err = fmt.Errorf("%w: unknown event kind %q", errno.ErrBadInput, ev.Kind)
		_ = m.repo.UpdateEventStatus(ctx, uuid, StatusFailed, logLine("failed", err.Error()))
		return "", false, err
	}
}

const notificationPrompt = `A notification arrived for the character.

Character context:
%s

Notification: %s
Details: %s

Understand the notification and explain it to the user in the character's voice, in a few sentences.`

func (m *Manager) handleNotification(ctx context.Context, ev *Event, characterContext string) (string, error) {
	return m.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(notificationPrompt, characterContext, ev.Title, ev.Description)),
	}, llm.TierMain)
}

func (m *Manager) handleTask(ctx context.Context, ev *Event, characterContext string) (string, bool, error) {
	task := taskgraph.TaskInput{
		EventID:      ev.UUID,
		Title:        ev.Title,
		Description:  ev.Description,
		Requirements: ev.Metadata[MetaTaskRequirements],
		Criteria:     ev.Metadata[MetaCompletionCriteria],
	}

	outcome, err := m.tasks.Run(ctx, ev.UUID, task, characterContext)
	if err != nil {
		_ = m.repo.UpdateEventStatus(ctx, ev.UUID, StatusFailed, logLine("failed", err.Error()))
		return "", false, err
	}

	for _, line := range outcome.CollaborationLogs {
		_ = m.repo.AppendEventLog(ctx, ev.UUID, logLine("collaboration", line))
	}

	if outcome.Failed {
		if err := m.repo.UpdateEventStatus(ctx, ev.UUID, StatusFailed, logLine("failed", "no agent succeeded")); err != nil {
			return "", false, err
		}
		return outcome.FinalResult, false, nil
	}

	if outcome.RequiresDeliveryConfirmation {
		_ = m.repo.AppendEventLog(ctx, ev.UUID, logLine("delivery_pending", "awaiting host confirmation"))
		logger.InfoX(ModuleName, "[Manager] event %s awaits delivery confirmation", ev.UUID)
		return outcome.FinalResult, true, nil
	}

	status := "task completed"
	if outcome.Partial {
		status = "task completed with partial failures"
	}
	if err := m.repo.UpdateEventStatus(ctx, ev.UUID, StatusCompleted, logLine("completed", status)); err != nil {
		return "", false, err
	}
	return outcome.FinalResult, false, nil
}

// MarkEventCompleted is the host-driven finaliser for delivery-pending
// events.
func (m *Manager) MarkEventCompleted(ctx context.Context, uuid string) error {
	ev, err := m.repo.GetEvent(ctx, uuid)
	if err != nil {
		return err
	}
	if ev.Status == StatusCompleted {
		return fmt.Errorf("%w: event %s", errno.ErrEventAlreadyDone, uuid)
	}
	return m.repo.UpdateEventStatus(ctx, uuid, StatusCompleted, logLine("completed", "delivery confirmed by host"))
}

func logLine(action, content string) *Log {
	return &Log{Timestamp: time.Now(), Action: action, Content: content}
}
