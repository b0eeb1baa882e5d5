package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/intent"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
)

const ModuleName = "schedule"

// CharacterInfo feeds temporary schedule generation.
type CharacterInfo struct {
	Name        string
	Personality string
	Hobbies     string
}

// Engine implements schedule creation, conflict and similarity resolution,
// range queries with recurring materialisation, free slots and temporary
// generation.
type Engine struct {
	repo       Repository
	llm        llm.Caller
	classifier *intent.Classifier
	character  CharacterInfo
}

// NewEngine creates the schedule engine.
func NewEngine(repo Repository, caller llm.Caller, classifier *intent.Classifier, character CharacterInfo) *Engine {
	return &Engine{
		repo:       repo,
		llm:        caller,
		classifier: classifier,
		character:  character,
	}
}

// CreateRequest carries everything the create flow needs.
type CreateRequest struct {
	Title             string
	Description       string
	Kind              Kind
	StartTime         time.Time
	EndTime           time.Time
	Priority          Priority
	Weekday           int
	RecurrencePattern string
	GeneratedReason   string
	InvolvesUser      bool
	Source            string

	CheckConflict   bool
	CheckSimilarity bool
}

// Create runs the full creation flow: validation, conflict resolution,
// same-day similarity, collaboration defaults.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Schedule, error) {
	s, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	if req.CheckConflict {
		if err := e.resolveConflicts(ctx, s); err != nil {
			return nil, err
		}
	}
	if req.CheckSimilarity && s.Kind != KindRecurring {
		proceed, err := e.resolveSimilarity(ctx, s)
		if err != nil {
			return nil, err
		}
		if !proceed {
			return nil, fmt.Errorf("%w: a similar schedule already exists", errno.ErrConflict)
		}
	}

	if s.InvolvesUser {
		s.CollaborationStatus = CollabPending
		s.IsQueryable = false
	} else {
		s.CollaborationStatus = CollabNone
		s.IsQueryable = true
	}
	s.IsActive = true

	if err := e.repo.InsertSchedule(ctx, s); err != nil {
		return nil, err
	}
	logger.InfoX(ModuleName, "[Engine] schedule %q created (%s, %s ~ %s)",
		s.Title, s.Kind, s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339))
	return s, nil
}

func (e *Engine) validate(req CreateRequest) (*Schedule, error) {
	switch req.Kind {
	case KindRecurring, KindAppointment, KindTemporary:
	default:
		return nil, fmt.Errorf("%w: unknown schedule kind %q", errno.ErrBadInput, req.Kind)
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("%w: end time must be after start time", errno.ErrBadInput)
	}

	weekday := WeekdayUnset
	if req.Kind == KindRecurring {
		if req.Weekday < 0 || req.Weekday > 6 {
			return nil, fmt.Errorf("%w: recurring schedule requires weekday in 0..6", errno.ErrBadInput)
		}
		weekday = req.Weekday
	}

	priority := req.Priority
	if priority.Rank() == 0 {
		priority = PriorityMedium
	}
	source := req.Source
	if source == "" {
		source = "manual"
	}

	return &Schedule{
		Title:             req.Title,
		Description:       req.Description,
		Kind:              req.Kind,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Priority:          priority,
		Weekday:           weekday,
		RecurrencePattern: req.RecurrencePattern,
		GeneratedReason:   req.GeneratedReason,
		InvolvesUser:      req.InvolvesUser,
		Source:            source,
	}, nil
}

// resolveConflicts finds active schedules overlapping the new interval.
// The conflict set is dismissible only when the new priority strictly
// exceeds every conflicting priority; dismissed peers are soft-deleted.
func (e *Engine) resolveConflicts(ctx context.Context, s *Schedule) error {
	occs, err := e.occurrences(ctx, s.StartTime, s.EndTime, false, true)
	if err != nil {
		return err
	}
	var conflicting []*Occurrence
	for _, occ := range occs {
		if overlaps(s.StartTime, s.EndTime, occ.Start, occ.End) {
			conflicting = append(conflicting, occ)
		}
	}
	if len(conflicting) == 0 {
		return nil
	}

	for _, occ := range conflicting {
		if s.Priority.Rank() <= occ.Priority.Rank() {
			return fmt.Errorf("%w: overlaps %q (%s ~ %s)", errno.ErrConflict,
				occ.Title, occ.Start.Format("15:04"), occ.End.Format("15:04"))
		}
	}
	for _, occ := range conflicting {
		if err := e.repo.SoftDeleteSchedule(ctx, occ.UUID); err != nil {
			return err
		}
		logger.InfoX(ModuleName, "[Engine] schedule %q dismissed by higher priority %q", occ.Title, s.Title)
	}
	return nil
}

// resolveSimilarity runs the pairwise similarity check against same-day
// schedules. Unreachable or unparsable similarity checks are skipped and
// creation proceeds.
func (e *Engine) resolveSimilarity(ctx context.Context, s *Schedule) (bool, error) {
	dayStart := time.Date(s.StartTime.Year(), s.StartTime.Month(), s.StartTime.Day(), 0, 0, 0, 0, s.StartTime.Location())
	occs, err := e.occurrences(ctx, dayStart, dayStart.AddDate(0, 0, 1), false, true)
	if err != nil {
		return false, err
	}

	for _, occ := range occs {
		verdict, err := e.classifier.ScheduleSimilarity(ctx,
			s.Title, s.StartTime.Format("15:04"), s.EndTime.Format("15:04"),
			occ.Title, occ.Start.Format("15:04"), occ.End.Format("15:04"))
		if err != nil {
			logger.WarnX(ModuleName, "[Engine] similarity check skipped: %v", err)
			continue
		}
		if !verdict.IsSimilar {
			continue
		}
		switch verdict.Keep {
		case intent.KeepNew:
			if err := e.repo.SoftDeleteSchedule(ctx, occ.UUID); err != nil {
				return false, err
			}
			logger.InfoX(ModuleName, "[Engine] similar schedule %q replaced by %q", occ.Title, s.Title)
		case intent.KeepExisting:
			return false, nil
		default:
			// keep=none leaves both untouched.
		}
	}
	return true, nil
}

// ConfirmCollaboration records the user's answer to a pending
// user-involving schedule.
func (e *Engine) ConfirmCollaboration(ctx context.Context, uuid string, accept bool) error {
	s, err := e.repo.GetSchedule(ctx, uuid)
	if err != nil {
		return err
	}
	if s.CollaborationStatus != CollabPending {
		return fmt.Errorf("%w: schedule %q is not pending collaboration", errno.ErrBadInput, s.Title)
	}
	if accept {
		return e.repo.UpdateCollaboration(ctx, uuid, CollabAccepted, true, true)
	}
	return e.repo.UpdateCollaboration(ctx, uuid, CollabDeclined, false, false)
}

// LatestPendingCollaboration returns the most recently created active
// schedule awaiting the user's answer, or errno.ErrNotFound.
func (e *Engine) LatestPendingCollaboration(ctx context.Context) (*Schedule, error) {
	rows, err := e.repo.ListSchedules(ctx, true)
	if err != nil {
		return nil, err
	}
	var latest *Schedule
	for _, s := range rows {
		if s.CollaborationStatus != CollabPending {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: no pending collaboration", errno.ErrNotFound)
	}
	return latest, nil
}

// QueryOptions filter range queries. The zero value applies the defaults
// used by conversational queries.
type QueryOptions struct {
	QueryableOnly bool
	ActiveOnly    bool
}

// DefaultQueryOptions are the conversational-query defaults.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{QueryableOnly: true, ActiveOnly: true}
}

// InRange returns occurrences strictly overlapping [start, end), with
// recurring schedules materialised onto their weekdays within the range.
func (e *Engine) InRange(ctx context.Context, start, end time.Time, opts QueryOptions) ([]*Occurrence, error) {
	return e.occurrences(ctx, start, end, opts.QueryableOnly, opts.ActiveOnly)
}

func (e *Engine) occurrences(ctx context.Context, start, end time.Time, queryableOnly, activeOnly bool) ([]*Occurrence, error) {
	rows, err := e.repo.ListSchedules(ctx, activeOnly)
	if err != nil {
		return nil, err
	}

	var occs []*Occurrence
	for _, s := range rows {
		if queryableOnly && !s.IsQueryable {
			continue
		}
		if s.Kind == KindRecurring {
			occs = append(occs, materialise(s, start, end)...)
			continue
		}
		if overlaps(s.StartTime, s.EndTime, start, end) {
			occs = append(occs, &Occurrence{Schedule: s, Start: s.StartTime, End: s.EndTime})
		}
	}
	sort.Slice(occs, func(i, j int) bool { return occs[i].Start.Before(occs[j].Start) })
	return occs, nil
}

// materialise projects a recurring schedule onto every matching weekday in
// [start, end), carrying the stored time of day.
func materialise(s *Schedule, start, end time.Time) []*Occurrence {
	var occs []*Occurrence
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		if int(day.Weekday()) != s.Weekday {
			continue
		}
		occStart := time.Date(day.Year(), day.Month(), day.Day(),
			s.StartTime.Hour(), s.StartTime.Minute(), 0, 0, start.Location())
		occEnd := occStart.Add(s.EndTime.Sub(s.StartTime))
		if overlaps(occStart, occEnd, start, end) {
			occs = append(occs, &Occurrence{Schedule: s, Start: occStart, End: occEnd})
		}
	}
	return occs
}

// FreeSlots returns the gaps between the day's active, queryable schedules
// that are at least slotMinutes long.
func (e *Engine) FreeSlots(ctx context.Context, date time.Time, slotMinutes int) ([]FreeSlot, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	occs, err := e.occurrences(ctx, dayStart, dayEnd, true, true)
	if err != nil {
		return nil, err
	}

	minLen := time.Duration(slotMinutes) * time.Minute
	var slots []FreeSlot
	cursor := dayStart
	for _, occ := range occs {
		s, en := occ.Start, occ.End
		if s.Before(dayStart) {
			s = dayStart
		}
		if en.After(dayEnd) {
			en = dayEnd
		}
		if s.After(cursor) && s.Sub(cursor) >= minLen {
			slots = append(slots, FreeSlot{Start: cursor, End: s})
		}
		if en.After(cursor) {
			cursor = en
		}
	}
	if dayEnd.Sub(cursor) >= minLen {
		slots = append(slots, FreeSlot{Start: cursor, End: dayEnd})
	}
	return slots, nil
}

// SoftDelete marks a schedule inactive.
func (e *Engine) SoftDelete(ctx context.Context, uuid string) error {
	return e.repo.SoftDeleteSchedule(ctx, uuid)
}

// Get returns a schedule by uuid.
func (e *Engine) Get(ctx context.Context, uuid string) (*Schedule, error) {
	return e.repo.GetSchedule(ctx, uuid)
}

// PromptBlock renders today's plan for the system prompt. Empty when the
// day holds nothing queryable.
func (e *Engine) PromptBlock(ctx context.Context, date time.Time) (string, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	occs, err := e.occurrences(ctx, dayStart, dayStart.AddDate(0, 0, 1), true, true)
	if err != nil {
		return "", err
	}
	if len(occs) == 0 {
		return "", nil
	}
	block := "## Today's schedule\n"
	for _, occ := range occs {
		block += fmt.Sprintf("- %s ~ %s %s", occ.Start.Format("15:04"), occ.End.Format("15:04"), occ.Title)
		if occ.Description != "" {
			block += " (" + occ.Description + ")"
		}
		block += "\n"
	}
	return block, nil
}
