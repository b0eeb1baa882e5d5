package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

const entityExtractionPrompt = `Extract the entity names (people, places, organizations, objects, concepts) mentioned in the following text.

Text: %s

Respond with a JSON array of strings, nothing else. Example: ["小明", "HeDaas"]
If there are no entities, respond with [].`

// extractEntityNames asks the Tool tier for candidate entity names.
// Classifier failures degrade to no candidates; they never fail the turn.
func (g *Graph) extractEntityNames(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	raw, err := g.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(entityExtractionPrompt, query)),
	}, llm.TierTool)
	if err != nil {
		logger.WarnX(ModuleName, "[Graph] entity extraction failed: %v", err)
		return nil
	}

	names, err := decodeNameArray(raw)
	if err != nil {
		logger.WarnX(ModuleName, "[Graph] entity extraction returned unparsable JSON: %v", err)
		return nil
	}
	return names
}

func decodeNameArray(raw string) ([]string, error) {
	var names []string
	if err := jsonx.DecodeStrict(raw, &names); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := NormalizeName(n)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}
