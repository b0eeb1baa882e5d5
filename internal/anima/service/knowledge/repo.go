package knowledge

import (
	"context"
)

// Repository is the persistence contract for the knowledge graph.
// The sqlite store implements it; facades hold no durable state.
type Repository interface {
	// GetEntityByName resolves an entity by normalised name.
	// Returns errno.ErrNotFound when absent.
	GetEntityByName(ctx context.Context, name string) (*Entity, error)

	// EnsureEntity returns the entity for name, creating it lazily.
	EnsureEntity(ctx context.Context, name string) (*Entity, error)

	// GetDefinition returns the definition for an entity, or errno.ErrNotFound.
	GetDefinition(ctx context.Context, entityUUID string) (*Definition, error)

	// SetDefinition inserts or overwrites the entity's definition.
	// Returns errno.ErrImmutable when the stored row is base knowledge.
	SetDefinition(ctx context.Context, def *Definition) error

	// AddOrIncrementRelatedInfo inserts the info, or increments MentionCount
	// of the row matching (entityUUID, normalised content). Returns the
	// stored row.
	AddOrIncrementRelatedInfo(ctx context.Context, info *RelatedInfo) (*RelatedInfo, error)

	// ListRelatedInfos returns up to limit related infos for an entity,
	// confirmed before suspected, newest first within each status.
	ListRelatedInfos(ctx context.Context, entityUUID string, limit int) ([]*RelatedInfo, error)

	// InsertBaseFact stores a base fact and its immutable definition.
	// Returns errno.ErrImmutable when a fact already exists for the name.
	InsertBaseFact(ctx context.Context, fact *BaseFact) error

	// GetBaseFact resolves a base fact by name, exact match first then
	// case-insensitive. Returns errno.ErrNotFound when absent.
	GetBaseFact(ctx context.Context, entityName string) (*BaseFact, error)

	// ListBaseFacts returns all base facts ordered by category then name.
	ListBaseFacts(ctx context.Context) ([]*BaseFact, error)
}
