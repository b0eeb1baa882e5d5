package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/knowledge"
)

// GetEntityByName resolves an entity by normalised name.
func (s *Store) GetEntityByName(ctx context.Context, name string) (*knowledge.Entity, error) {
	ent := &knowledge.Entity{}
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, name, created_at, updated_at FROM `+TableEntities+` WHERE normalized_name = ?`,
		knowledge.NormalizeName(name)).
		Scan(&ent.UUID, &ent.Name, &ent.CreatedAt, &ent.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity %q", errno.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return ent, nil
}

// EnsureEntity returns the entity for name, creating it lazily.
func (s *Store) EnsureEntity(ctx context.Context, name string) (*knowledge.Entity, error) {
	ent, err := s.GetEntityByName(ctx, name)
	if err == nil {
		return ent, nil
	}
	if !errors.Is(err, errno.ErrNotFound) {
		return nil, err
	}

	now := nowUTC()
	ent = &knowledge.Entity{UUID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+TableEntities+` (uuid, name, normalized_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		ent.UUID, ent.Name, knowledge.NormalizeName(name), ent.CreatedAt, ent.UpdatedAt)
	if err != nil {
		// Lost a concurrent insert race; read the winner.
		if existing, gerr := s.GetEntityByName(ctx, name); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return ent, nil
}

// GetDefinition returns the definition for an entity.
func (s *Store) GetDefinition(ctx context.Context, entityUUID string) (*knowledge.Definition, error) {
	def := &knowledge.Definition{}
	err := s.db.QueryRowContext(ctx,
		`SELECT entity_uuid, content, type, source, confidence, priority, is_base_knowledge, updated_at
		FROM `+TableDefinitions+` WHERE entity_uuid = ?`, entityUUID).
		Scan(&def.EntityUUID, &def.Content, &def.Type, &def.Source,
			&def.Confidence, &def.Priority, &def.IsBaseKnowledge, &def.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: definition for entity %s", errno.ErrNotFound, entityUUID)
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

// SetDefinition inserts or overwrites the entity's definition, refusing to
// touch base-knowledge rows.
func (s *Store) SetDefinition(ctx context.Context, def *knowledge.Definition) error {
	def.UpdatedAt = nowUTC()
	return s.withTx(func(tx *sql.Tx) error {
		var isBase bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_base_knowledge FROM `+TableDefinitions+` WHERE entity_uuid = ?`,
			def.EntityUUID).Scan(&isBase)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil && isBase && !def.IsBaseKnowledge {
			return fmt.Errorf("%w: definition of entity %s is base knowledge", errno.ErrImmutable, def.EntityUUID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO `+TableDefinitions+`
			(entity_uuid, content, type, source, confidence, priority, is_base_knowledge, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			def.EntityUUID, def.Content, def.Type, def.Source,
			def.Confidence, def.Priority, def.IsBaseKnowledge, def.UpdatedAt)
		return err
	})
}

// AddOrIncrementRelatedInfo inserts the info or increments the mention
// count of the row with the same normalised content.
func (s *Store) AddOrIncrementRelatedInfo(ctx context.Context, info *knowledge.RelatedInfo) (*knowledge.RelatedInfo, error) {
	normalized := knowledge.NormalizeContent(info.Content)
	stored := &knowledge.RelatedInfo{}
	err := s.withTx(func(tx *sql.Tx) error {
		var existingUUID string
		err := tx.QueryRowContext(ctx,
			`SELECT uuid FROM `+TableRelatedInfos+` WHERE entity_uuid = ? AND normalized_content = ?`,
			info.EntityUUID, normalized).Scan(&existingUUID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if err == nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE `+TableRelatedInfos+` SET mention_count = mention_count + 1 WHERE uuid = ?`,
				existingUUID); err != nil {
				return err
			}
			return tx.QueryRowContext(ctx,
				`SELECT uuid, entity_uuid, content, type, source, confidence, status, mention_count, created_at
				FROM `+TableRelatedInfos+` WHERE uuid = ?`, existingUUID).
				Scan(&stored.UUID, &stored.EntityUUID, &stored.Content, &stored.Type, &stored.Source,
					&stored.Confidence, &stored.Status, &stored.MentionCount, &stored.CreatedAt)
		}

		*stored = *info
		stored.UUID = uuid.NewString()
		stored.MentionCount = 1
		stored.CreatedAt = nowUTC()
		if stored.Status == "" {
			stored.Status = knowledge.StatusSuspected
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO `+TableRelatedInfos+`
			(uuid, entity_uuid, content, normalized_content, type, source, confidence, status, mention_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.UUID, stored.EntityUUID, stored.Content, normalized, stored.Type, stored.Source,
			stored.Confidence, string(stored.Status), stored.MentionCount, stored.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListRelatedInfos returns up to limit related infos, confirmed before
// suspected, newest first within each status.
func (s *Store) ListRelatedInfos(ctx context.Context, entityUUID string, limit int) ([]*knowledge.RelatedInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, entity_uuid, content, type, source, confidence, status, mention_count, created_at
		FROM `+TableRelatedInfos+` WHERE entity_uuid = ?
		ORDER BY CASE status WHEN 'confirmed' THEN 0 ELSE 1 END, created_at DESC LIMIT ?`,
		entityUUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*knowledge.RelatedInfo
	for rows.Next() {
		info := &knowledge.RelatedInfo{}
		var status string
		if err := rows.Scan(&info.UUID, &info.EntityUUID, &info.Content, &info.Type, &info.Source,
			&info.Confidence, &status, &info.MentionCount, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.Status = knowledge.InfoStatus(status)
		out = append(out, info)
	}
	return out, rows.Err()
}

// InsertBaseFact stores a base fact together with the entity and its
// immutable definition. An existing fact for the name is refused.
func (s *Store) InsertBaseFact(ctx context.Context, fact *knowledge.BaseFact) error {
	normalized := knowledge.NormalizeName(fact.EntityName)
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = nowUTC()
	}

	ent, err := s.EnsureEntity(ctx, fact.EntityName)
	if err != nil {
		return err
	}

	return s.withTx(func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM `+TableBaseFacts+` WHERE normalized_name = ?`, normalized).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: base fact for %q already exists", errno.ErrImmutable, fact.EntityName)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+TableBaseFacts+`
			(entity_name, normalized_name, content, category, description, confidence, priority, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fact.EntityName, normalized, fact.Content, fact.Category, fact.Description,
			fact.Confidence, fact.Priority, fact.CreatedAt); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO `+TableDefinitions+`
			(entity_uuid, content, type, source, confidence, priority, is_base_knowledge, updated_at)
			VALUES (?, ?, 'base', 'base_knowledge', ?, ?, 1, ?)`,
			ent.UUID, fact.Content, fact.Confidence, fact.Priority, nowUTC())
		return err
	})
}

// GetBaseFact resolves a base fact by name, exact match first then
// case-insensitive.
func (s *Store) GetBaseFact(ctx context.Context, entityName string) (*knowledge.BaseFact, error) {
	fact, err := s.scanBaseFact(ctx,
		`SELECT entity_name, content, category, description, confidence, priority, created_at
		FROM `+TableBaseFacts+` WHERE entity_name = ?`, entityName)
	if err == nil {
		return fact, nil
	}
	if !errors.Is(err, errno.ErrNotFound) {
		return nil, err
	}
	return s.scanBaseFact(ctx,
		`SELECT entity_name, content, category, description, confidence, priority, created_at
		FROM `+TableBaseFacts+` WHERE normalized_name = ?`, knowledge.NormalizeName(entityName))
}

func (s *Store) scanBaseFact(ctx context.Context, query string, arg any) (*knowledge.BaseFact, error) {
	fact := &knowledge.BaseFact{}
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&fact.EntityName, &fact.Content, &fact.Category, &fact.Description,
			&fact.Confidence, &fact.Priority, &fact.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: base fact", errno.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return fact, nil
}

// ListBaseFacts returns all base facts ordered by category then name.
func (s *Store) ListBaseFacts(ctx context.Context) ([]*knowledge.BaseFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_name, content, category, description, confidence, priority, created_at
		FROM `+TableBaseFacts+` ORDER BY category ASC, entity_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*knowledge.BaseFact
	for rows.Next() {
		fact := &knowledge.BaseFact{}
		if err := rows.Scan(&fact.EntityName, &fact.Content, &fact.Category, &fact.Description,
			&fact.Confidence, &fact.Priority, &fact.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fact)
	}
	return out, rows.Err()
}
