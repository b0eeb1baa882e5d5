package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"github.com/kiosk404/anima/internal/anima/service/memory"
)

// AppendMessage stores a message in the short-term log.
func (s *Store) AppendMessage(ctx context.Context, msg *memory.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = nowUTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableMessages+` (role, content, created_at) VALUES (?, ?, ?)`,
		string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return err
	}
	msg.ID, err = res.LastInsertId()
	return err
}

// ListShortTerm returns the whole short-term log in append order.
func (s *Store) ListShortTerm(ctx context.Context) ([]*memory.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM `+TableMessages+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the newest limit messages in append order.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]*memory.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM (
			SELECT id, role, content, created_at FROM `+TableMessages+` ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*memory.Message, error) {
	var out []*memory.Message
	for rows.Next() {
		msg := &memory.Message{}
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = memory.Role(role)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ArchiveMessages inserts the summary and deletes the archived messages in
// one transaction.
func (s *Store) ArchiveMessages(ctx context.Context, summary *memory.Summary, messageIDs []int64) error {
	if summary.UUID == "" {
		summary.UUID = uuid.NewString()
	}
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO `+TableSummaries+` (uuid, text, rounds, message_count, created_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)`,
			summary.UUID, summary.Text, summary.Rounds, summary.MessageCount, summary.CreatedAt, summary.EndedAt)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM `+TableMessages+` WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range messageIDs {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListSummaries returns the newest limit summaries in chronological order.
func (s *Store) ListSummaries(ctx context.Context, limit int) ([]*memory.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, text, rounds, message_count, created_at, ended_at FROM (
			SELECT uuid, text, rounds, message_count, created_at, ended_at
			FROM `+TableSummaries+` ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*memory.Summary
	for rows.Next() {
		sum := &memory.Summary{}
		if err := rows.Scan(&sum.UUID, &sum.Text, &sum.Rounds, &sum.MessageCount, &sum.CreatedAt, &sum.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// InsertExpressionStyle stores a learned or configured style.
func (s *Store) InsertExpressionStyle(ctx context.Context, style *memory.ExpressionStyle) error {
	if style.UUID == "" {
		style.UUID = uuid.NewString()
	}
	if style.CreatedAt.IsZero() {
		style.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableExpressionStyles+` (uuid, kind, expression, meaning, category, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		style.UUID, string(style.Kind), style.Expression, style.Meaning, style.Category, style.CreatedAt)
	return err
}

// ListExpressionStyles returns styles of a kind, newest first.
func (s *Store) ListExpressionStyles(ctx context.Context, kind memory.StyleKind, limit int) ([]*memory.ExpressionStyle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, kind, expression, meaning, category, created_at
		FROM `+TableExpressionStyles+` WHERE kind = ? ORDER BY created_at DESC, uuid DESC LIMIT ?`,
		string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*memory.ExpressionStyle
	for rows.Next() {
		style := &memory.ExpressionStyle{}
		var k string
		if err := rows.Scan(&style.UUID, &k, &style.Expression, &style.Meaning, &style.Category, &style.CreatedAt); err != nil {
			return nil, err
		}
		style.Kind = memory.StyleKind(k)
		out = append(out, style)
	}
	return out, rows.Err()
}

// GetMeta returns the value for key, "" when absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM `+TableMetadata+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetMeta stores the value for key.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+TableMetadata+` (key, value) VALUES (?, ?)`, key, value)
	return err
}

// IncrMetaInt atomically increments an integer value and returns it.
func (s *Store) IncrMetaInt(ctx context.Context, key string, delta int64) (int64, error) {
	var out int64
	err := s.withTx(func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT value FROM `+TableMetadata+` WHERE key = ?`, key).Scan(&raw)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		current, _ := strconv.ParseInt(raw, 10, 64)
		out = current + delta
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO `+TableMetadata+` (key, value) VALUES (?, ?)`,
			key, strconv.FormatInt(out, 10))
		return err
	})
	return out, err
}

// GetMetaInt returns the integer value for key, 0 when absent.
func (s *Store) GetMetaInt(ctx context.Context, key string) (int64, error) {
	raw, err := s.GetMeta(ctx, key)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
