package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/schedule"
)

const scheduleColumns = `uuid, title, description, kind, start_time, end_time, priority, weekday,
	recurrence_pattern, generated_reason, involves_user, collaboration_status, is_queryable, is_active, source, created_at`

// InsertSchedule stores a schedule.
func (s *Store) InsertSchedule(ctx context.Context, sch *schedule.Schedule) error {
	if sch.UUID == "" {
		sch.UUID = uuid.NewString()
	}
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableSchedules+` (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sch.UUID, sch.Title, sch.Description, string(sch.Kind), sch.StartTime, sch.EndTime,
		string(sch.Priority), sch.Weekday, sch.RecurrencePattern, sch.GeneratedReason,
		sch.InvolvesUser, string(sch.CollaborationStatus), sch.IsQueryable, sch.IsActive,
		sch.Source, sch.CreatedAt)
	return err
}

// GetSchedule returns a schedule by uuid.
func (s *Store) GetSchedule(ctx context.Context, id string) (*schedule.Schedule, error) {
	sch := &schedule.Schedule{}
	var kind, priority, collab string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM `+TableSchedules+` WHERE uuid = ?`, id).
		Scan(&sch.UUID, &sch.Title, &sch.Description, &kind, &sch.StartTime, &sch.EndTime,
			&priority, &sch.Weekday, &sch.RecurrencePattern, &sch.GeneratedReason,
			&sch.InvolvesUser, &collab, &sch.IsQueryable, &sch.IsActive, &sch.Source, &sch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: schedule %s", errno.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	sch.Kind = schedule.Kind(kind)
	sch.Priority = schedule.Priority(priority)
	sch.CollaborationStatus = schedule.CollaborationStatus(collab)
	return sch, nil
}

// ListSchedules returns schedules ordered by start time, optionally only
// active rows.
func (s *Store) ListSchedules(ctx context.Context, activeOnly bool) ([]*schedule.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM ` + TableSchedules
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY start_time ASC, uuid ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*schedule.Schedule
	for rows.Next() {
		sch := &schedule.Schedule{}
		var kind, priority, collab string
		if err := rows.Scan(&sch.UUID, &sch.Title, &sch.Description, &kind, &sch.StartTime, &sch.EndTime,
			&priority, &sch.Weekday, &sch.RecurrencePattern, &sch.GeneratedReason,
			&sch.InvolvesUser, &collab, &sch.IsQueryable, &sch.IsActive, &sch.Source, &sch.CreatedAt); err != nil {
			return nil, err
		}
		sch.Kind = schedule.Kind(kind)
		sch.Priority = schedule.Priority(priority)
		sch.CollaborationStatus = schedule.CollaborationStatus(collab)
		out = append(out, sch)
	}
	return out, rows.Err()
}

// SoftDeleteSchedule marks a schedule inactive. Both conflict dismissal
// and similarity replacement go through this single path.
func (s *Store) SoftDeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+TableSchedules+` SET is_active = 0 WHERE uuid = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %s", errno.ErrNotFound, id)
	}
	return nil
}

// UpdateCollaboration writes the collaboration outcome fields.
func (s *Store) UpdateCollaboration(ctx context.Context, id string, status schedule.CollaborationStatus, isQueryable, isActive bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+TableSchedules+` SET collaboration_status = ?, is_queryable = ?, is_active = ? WHERE uuid = ?`,
		string(status), isQueryable, isActive, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %s", errno.ErrNotFound, id)
	}
	return nil
}
