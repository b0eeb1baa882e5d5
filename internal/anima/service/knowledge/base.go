package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/pkg/logger"
)

const ModuleName = "knowledge"

// BaseKnowledge manages the immutable, highest-priority fact layer.
type BaseKnowledge struct {
	repo Repository
}

// NewBaseKnowledge creates the base-knowledge facade.
func NewBaseKnowledge(repo Repository) *BaseKnowledge {
	return &BaseKnowledge{repo: repo}
}

// AddFact stores a new base fact. An existing fact for the same normalised
// name refuses the write with errno.ErrImmutable.
func (b *BaseKnowledge) AddFact(ctx context.Context, name, content, category, description string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: base fact requires name and content", errno.ErrBadInput)
	}
	fact := &BaseFact{
		EntityName:  name,
		Content:     content,
		Category:    category,
		Description: description,
		Confidence:  1.0,
		Priority:    100,
	}
	if err := b.repo.InsertBaseFact(ctx, fact); err != nil {
		return err
	}
	logger.InfoX(ModuleName, "[BaseKnowledge] fact added for %q (category=%s)", name, category)
	return nil
}

// Get resolves a base fact, exact match first then case-insensitive.
func (b *BaseKnowledge) Get(ctx context.Context, name string) (*BaseFact, error) {
	return b.repo.GetBaseFact(ctx, name)
}

// List returns all base facts ordered by category then name.
func (b *BaseKnowledge) List(ctx context.Context) ([]*BaseFact, error) {
	return b.repo.ListBaseFacts(ctx)
}

// ConflictsWith reports whether a base fact exists for name whose
// normalised content differs from candidate.
func (b *BaseKnowledge) ConflictsWith(ctx context.Context, name, candidate string) (bool, error) {
	fact, err := b.repo.GetBaseFact(ctx, name)
	if errors.Is(err, errno.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return NormalizeContent(fact.Content) != NormalizeContent(candidate), nil
}

// RenderPromptBlock formats all base facts grouped by category into a
// fixed-layout markdown block for prompt injection. Empty when no facts.
func (b *BaseKnowledge) RenderPromptBlock(ctx context.Context) (string, error) {
	facts, err := b.repo.ListBaseFacts(ctx)
	if err != nil {
		return "", err
	}
	if len(facts) == 0 {
		return "", nil
	}

	grouped := make(map[string][]*BaseFact)
	var order []string
	for _, f := range facts {
		cat := f.Category
		if cat == "" {
			cat = "general"
		}
		if _, ok := grouped[cat]; !ok {
			order = append(order, cat)
		}
		grouped[cat] = append(grouped[cat], f)
	}

	var sb strings.Builder
	sb.WriteString("## Established facts\n")
	for _, cat := range order {
		fmt.Fprintf(&sb, "### %s\n", cat)
		for _, f := range grouped[cat] {
			fmt.Fprintf(&sb, "- **%s**: %s", f.EntityName, f.Content)
			if f.Description != "" {
				fmt.Fprintf(&sb, " (%s)", f.Description)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
