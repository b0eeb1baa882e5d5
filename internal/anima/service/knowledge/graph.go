package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
)

// GraphConfig bounds retrieval output.
type GraphConfig struct {
	// MaxItems caps the merged ranked list (default 10).
	MaxItems int
	// RelatedPerEntity caps related infos collected per entity (default 3).
	RelatedPerEntity int
}

// Complete fills defaults.
func (c *GraphConfig) Complete() {
	if c.MaxItems <= 0 {
		c.MaxItems = 10
	}
	if c.RelatedPerEntity <= 0 {
		c.RelatedPerEntity = 3
	}
}

// Graph is the entity → (definition?, related infos*) knowledge facade with
// base-knowledge override rules.
type Graph struct {
	repo Repository
	base *BaseKnowledge
	llm  llm.Caller
	cfg  GraphConfig
}

// NewGraph creates the knowledge graph facade.
func NewGraph(repo Repository, base *BaseKnowledge, caller llm.Caller, cfg GraphConfig) *Graph {
	cfg.Complete()
	return &Graph{repo: repo, base: base, llm: caller, cfg: cfg}
}

// SetDefinition writes the authoritative statement for an entity.
//
// When base knowledge holds a conflicting fact the write is refused with
// errno.ErrImmutable; if the entity has no definition yet, the base content
// is persisted first as an immutable definition so later reads resolve it
// without consulting the fact table.
func (g *Graph) SetDefinition(ctx context.Context, entityName, content, infoType, source string, confidence float64) error {
	entityName = strings.TrimSpace(entityName)
	if entityName == "" || strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: definition requires entity name and content", errno.ErrBadInput)
	}

	conflict, err := g.base.ConflictsWith(ctx, entityName, content)
	if err != nil {
		return err
	}
	if conflict {
		if err := g.ensureBaseDefinition(ctx, entityName); err != nil {
			return err
		}
		logger.WarnX(ModuleName, "[Graph] definition for %q refused: conflicts with base knowledge", entityName)
		return fmt.Errorf("%w: %q is pinned by base knowledge", errno.ErrImmutable, entityName)
	}

	ent, err := g.repo.EnsureEntity(ctx, entityName)
	if err != nil {
		return err
	}
	return g.repo.SetDefinition(ctx, &Definition{
		EntityUUID: ent.UUID,
		Content:    content,
		Type:       infoType,
		Source:     source,
		Confidence: confidence,
	})
}

// ensureBaseDefinition persists the base fact content as the entity's
// immutable definition when no definition exists yet.
func (g *Graph) ensureBaseDefinition(ctx context.Context, entityName string) error {
	fact, err := g.base.Get(ctx, entityName)
	if err != nil {
		return err
	}
	ent, err := g.repo.EnsureEntity(ctx, entityName)
	if err != nil {
		return err
	}
	if _, err := g.repo.GetDefinition(ctx, ent.UUID); err == nil {
		return nil
	} else if !errors.Is(err, errno.ErrNotFound) {
		return err
	}
	return g.repo.SetDefinition(ctx, &Definition{
		EntityUUID:      ent.UUID,
		Content:         fact.Content,
		Type:            "definition",
		Source:          "base_knowledge",
		Confidence:      fact.Confidence,
		Priority:        fact.Priority,
		IsBaseKnowledge: true,
	})
}

// AddRelatedInfo records a non-definition statement about an entity.
// A duplicate by (entity, normalised content) increments the mention count.
func (g *Graph) AddRelatedInfo(ctx context.Context, entityName, content, infoType, source string, confidence float64) (*RelatedInfo, error) {
	entityName = strings.TrimSpace(entityName)
	if entityName == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: related info requires entity name and content", errno.ErrBadInput)
	}
	ent, err := g.repo.EnsureEntity(ctx, entityName)
	if err != nil {
		return nil, err
	}
	return g.repo.AddOrIncrementRelatedInfo(ctx, &RelatedInfo{
		EntityUUID: ent.UUID,
		Content:    content,
		Type:       infoType,
		Source:     source,
		Confidence: confidence,
		Status:     StatusSuspected,
	})
}

// Sink is the write-only view of the graph for consumers that feed mined
// statements in and never need the stored row back.
type Sink struct {
	graph *Graph
}

// Sink returns the graph's write-only view.
func (g *Graph) Sink() *Sink { return &Sink{graph: g} }

// SetDefinition delegates to Graph.SetDefinition.
func (s *Sink) SetDefinition(ctx context.Context, entityName, content, infoType, source string, confidence float64) error {
	return s.graph.SetDefinition(ctx, entityName, content, infoType, source, confidence)
}

// AddRelatedInfo delegates to Graph.AddRelatedInfo and discards the row.
func (s *Sink) AddRelatedInfo(ctx context.Context, entityName, content, infoType, source string, confidence float64) error {
	_, err := s.graph.AddRelatedInfo(ctx, entityName, content, infoType, source, confidence)
	return err
}

// Definition returns the current definition for an entity name.
func (g *Graph) Definition(ctx context.Context, entityName string) (*Definition, error) {
	ent, err := g.repo.GetEntityByName(ctx, entityName)
	if err != nil {
		return nil, err
	}
	return g.repo.GetDefinition(ctx, ent.UUID)
}

// Retrieve extracts candidate entity names from the query and collects their
// base fact, definition and recent related infos into one ranked list.
func (g *Graph) Retrieve(ctx context.Context, query string) (*RetrieveResult, error) {
	names := g.extractEntityNames(ctx, query)
	result := &RetrieveResult{Entities: names}
	if len(names) == 0 {
		return result, nil
	}

	for _, name := range names {
		if fact, err := g.base.Get(ctx, name); err == nil {
			result.Items = append(result.Items, Item{
				Kind:       ItemBase,
				EntityName: fact.EntityName,
				Content:    fact.Content,
				Confidence: fact.Confidence,
				Priority:   0,
			})
		}

		ent, err := g.repo.GetEntityByName(ctx, name)
		if err != nil {
			continue
		}
		if def, err := g.repo.GetDefinition(ctx, ent.UUID); err == nil && !def.IsBaseKnowledge {
			result.Items = append(result.Items, Item{
				Kind:       ItemDefinition,
				EntityName: ent.Name,
				Content:    def.Content,
				Confidence: def.Confidence,
				Priority:   1,
			})
		}
		infos, err := g.repo.ListRelatedInfos(ctx, ent.UUID, g.cfg.RelatedPerEntity)
		if err != nil {
			continue
		}
		for _, info := range infos {
			result.Items = append(result.Items, Item{
				Kind:       ItemInfo,
				EntityName: ent.Name,
				Content:    info.Content,
				Confidence: info.Confidence,
				Priority:   2,
				Status:     info.Status,
			})
		}
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		if result.Items[i].Priority != result.Items[j].Priority {
			return result.Items[i].Priority < result.Items[j].Priority
		}
		return result.Items[i].Confidence > result.Items[j].Confidence
	})
	if len(result.Items) > g.cfg.MaxItems {
		result.Items = result.Items[:g.cfg.MaxItems]
	}
	return result, nil
}

// RenderPromptBlock formats retrieval items for prompt injection.
func RenderPromptBlock(items []Item) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Relevant knowledge\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "- [%s/%s] %s: %s\n",
			item.Kind, ConfidenceBand(item.Confidence), item.EntityName, item.Content)
	}
	return sb.String()
}
