package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/emotion"
)

// InsertSnapshot stores a new emotion snapshot. Snapshots are append-only.
func (s *Store) InsertSnapshot(ctx context.Context, snap *emotion.Snapshot) error {
	if snap.UUID == "" {
		snap.UUID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableEmotions+`
		(uuid, relationship_type, emotional_tone, overall_score, intimacy, trust, pleasure, resonance, dependence, analysis_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.UUID, snap.RelationshipType, snap.EmotionalTone, snap.OverallScore,
		snap.Dims.Intimacy, snap.Dims.Trust, snap.Dims.Pleasure, snap.Dims.Resonance, snap.Dims.Dependence,
		snap.AnalysisSummary, snap.CreatedAt)
	return err
}

// LatestSnapshot returns the newest emotion snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (*emotion.Snapshot, error) {
	snap := &emotion.Snapshot{}
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, relationship_type, emotional_tone, overall_score, intimacy, trust, pleasure, resonance, dependence, analysis_summary, created_at
		FROM `+TableEmotions+` ORDER BY created_at DESC, uuid DESC LIMIT 1`).
		Scan(&snap.UUID, &snap.RelationshipType, &snap.EmotionalTone, &snap.OverallScore,
			&snap.Dims.Intimacy, &snap.Dims.Trust, &snap.Dims.Pleasure, &snap.Dims.Resonance, &snap.Dims.Dependence,
			&snap.AnalysisSummary, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no emotion snapshot", errno.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}
