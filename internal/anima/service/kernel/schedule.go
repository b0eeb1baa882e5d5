package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/intent"
	"github.com/kiosk404/anima/internal/anima/service/schedule"
	"github.com/kiosk404/anima/pkg/logger"
)

var (
	affirmativeWords = []string{"好的", "好啊", "可以", "没问题", "行", "yes", "sure", "ok", "okay", "sounds good"}
	negativeWords    = []string{"不行", "不了", "不去", "算了", "no thanks", "can't", "cannot", "another time"}
)

// handleCollaborationReply applies an affirmative or negative answer to
// the most recent pending user-involving schedule. Empty when the input
// is not a confirmation or nothing is pending.
func (k *Kernel) handleCollaborationReply(ctx context.Context, userInput string) string {
	answer, isAnswer := classifyConfirmation(userInput)
	if !isAnswer {
		return ""
	}

	pending, err := k.deps.Schedules.LatestPendingCollaboration(ctx)
	if err != nil {
		if !errors.Is(err, errno.ErrNotFound) {
			logger.WarnX(ModuleName, "[Kernel] pending collaboration lookup failed: %v", err)
		}
		return ""
	}
	if err := k.deps.Schedules.ConfirmCollaboration(ctx, pending.UUID, answer); err != nil {
		logger.WarnX(ModuleName, "[Kernel] collaboration confirmation failed: %v", err)
		return ""
	}
	if answer {
		return fmt.Sprintf("The user agreed to the plan %q.", pending.Title)
	}
	return fmt.Sprintf("The user declined the plan %q; it has been dropped.", pending.Title)
}

func classifyConfirmation(input string) (answer, isAnswer bool) {
	lower := strings.ToLower(strings.TrimSpace(input))
	// Only short replies count as confirmations; longer messages carry
	// their own intent.
	if len([]rune(lower)) > 16 {
		return false, false
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			return false, true
		}
	}
	for _, w := range affirmativeWords {
		if strings.Contains(lower, w) {
			return true, true
		}
	}
	return false, false
}

// handleScheduleIntent classifies the input and either creates an
// appointment or prepares a query note. The returned note feeds the
// prompt so the character can speak about what happened.
func (k *Kernel) handleScheduleIntent(ctx context.Context, userInput string) string {
	res := k.deps.Intents.ClassifySchedule(ctx, userInput, k.now())
	if !res.HasScheduleIntent {
		return ""
	}

	switch res.ScheduleType {
	case intent.ScheduleTypeAppointment:
		return k.createFromIntent(ctx, res)
	case intent.ScheduleTypeQuery:
		return k.answerScheduleQuery(ctx, res)
	default:
		return ""
	}
}

func (k *Kernel) createFromIntent(ctx context.Context, res *intent.ScheduleIntent) string {
	start, err := time.Parse(time.RFC3339, res.StartTime)
	if err != nil {
		return ""
	}
	end, err := time.Parse(time.RFC3339, res.EndTime)
	if err != nil {
		end = start.Add(2 * time.Hour)
	}

	created, err := k.deps.Schedules.Create(ctx, schedule.CreateRequest{
		Title:           res.Title,
		Description:     res.Description,
		Kind:            schedule.KindAppointment,
		StartTime:       start,
		EndTime:         end,
		Priority:        schedule.PriorityMedium,
		InvolvesUser:    res.InvolvesUser,
		Source:          "intent",
		CheckConflict:   true,
		CheckSimilarity: true,
	})
	if err != nil {
		// Creation failures become a note, never an error: the character
		// explains the refusal conversationally.
		return fmt.Sprintf("Tried to plan %q but could not: %v.", res.Title, err)
	}
	if created.CollaborationStatus == schedule.CollabPending {
		return fmt.Sprintf("Proposed the plan %q (%s ~ %s); waiting for the user to confirm.",
			created.Title, start.Format("01-02 15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("Created the plan %q (%s ~ %s).",
		created.Title, start.Format("01-02 15:04"), end.Format("15:04"))
}

func (k *Kernel) answerScheduleQuery(ctx context.Context, res *intent.ScheduleIntent) string {
	target := k.now()
	if start, err := time.Parse(time.RFC3339, res.StartTime); err == nil {
		target = start
	}

	// A queried day without temporary schedules gets some generated.
	if generated, err := k.deps.Schedules.EnsureTemporaries(ctx, target); err != nil {
		logger.WarnX(ModuleName, "[Kernel] temporary generation failed: %v", err)
	} else if len(generated) > 0 {
		logger.InfoX(ModuleName, "[Kernel] generated %d temporary schedules for %s",
			len(generated), target.Format("2006-01-02"))
	}

	dayStart := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, target.Location())
	occs, err := k.deps.Schedules.InRange(ctx, dayStart, dayStart.AddDate(0, 0, 1), schedule.DefaultQueryOptions())
	if err != nil {
		logger.WarnX(ModuleName, "[Kernel] schedule query failed: %v", err)
		return ""
	}
	if len(occs) == 0 {
		return fmt.Sprintf("Nothing is planned for %s.", dayStart.Format("2006-01-02"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Plans for %s:\n", dayStart.Format("2006-01-02"))
	for _, occ := range occs {
		fmt.Fprintf(&sb, "- %s ~ %s %s\n", occ.Start.Format("15:04"), occ.End.Format("15:04"), occ.Title)
	}
	return strings.TrimRight(sb.String(), "\n")
}
