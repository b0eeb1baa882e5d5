package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/event"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

// InsertEvent stores an event.
func (s *Store) InsertEvent(ctx context.Context, ev *event.Event) error {
	if ev.UUID == "" {
		ev.UUID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = nowUTC()
	}
	if ev.Priority == "" {
		ev.Priority = "medium"
	}
	meta := "{}"
	if len(ev.Metadata) > 0 {
		raw, err := jsonx.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
		meta = string(raw)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableEvents+` (uuid, title, description, kind, priority, status, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.UUID, ev.Title, ev.Description, string(ev.Kind), ev.Priority, string(ev.Status), meta, ev.CreatedAt)
	return err
}

const eventColumns = `uuid, title, description, kind, priority, status, metadata, created_at`

func scanEvent(scan func(dest ...any) error) (*event.Event, error) {
	ev := &event.Event{}
	var kind, status, meta string
	if err := scan(&ev.UUID, &ev.Title, &ev.Description, &kind, &ev.Priority, &status, &meta, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Kind = event.Kind(kind)
	ev.Status = event.Status(status)
	ev.Metadata = make(map[string]string)
	if meta != "" {
		if err := jsonx.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// GetEvent returns an event by uuid.
func (s *Store) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM `+TableEvents+` WHERE uuid = ?`, id)
	ev, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: event %s", errno.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvents returns events newest first, optionally filtered by status.
func (s *Store) ListEvents(ctx context.Context, status event.Status, limit int) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM ` + TableEvents
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, uuid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// UpdateEventStatus writes the status and appends a log line in one
// transaction.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, status event.Status, log *event.Log) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE `+TableEvents+` SET status = ? WHERE uuid = ?`, string(status), id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: event %s", errno.ErrNotFound, id)
		}
		if log == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO `+TableEventLogs+` (event_uuid, ts, action, content) VALUES (?, ?, ?, ?)`,
			id, log.Timestamp, log.Action, log.Content)
		return err
	})
}

// AppendEventLog adds an audit line without touching status.
func (s *Store) AppendEventLog(ctx context.Context, id string, log *event.Log) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableEventLogs+` (event_uuid, ts, action, content) VALUES (?, ?, ?, ?)`,
		id, log.Timestamp, log.Action, log.Content)
	return err
}

// ListEventLogs returns an event's audit lines in append order.
func (s *Store) ListEventLogs(ctx context.Context, id string) ([]*event.Log, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, action, content FROM `+TableEventLogs+` WHERE event_uuid = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*event.Log
	for rows.Next() {
		log := &event.Log{}
		if err := rows.Scan(&log.Timestamp, &log.Action, &log.Content); err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	return out, rows.Err()
}
