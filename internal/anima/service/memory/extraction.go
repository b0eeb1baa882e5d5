package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

// extractedStatement mirrors the strict extraction schema.
type extractedStatement struct {
	EntityName   string  `json:"entity_name"`
	IsDefinition bool    `json:"is_definition"`
	Content      string  `json:"content"`
	Type         string  `json:"type"`
	Source       string  `json:"source"`
	Confidence   float64 `json:"confidence"`
}

const extractionPrompt = `Extract factual statements about named entities from this conversation segment.

Conversation:
%s

Respond with a strict JSON array, nothing else:
[{"entity_name": "...", "is_definition": true|false, "content": "...", "type": "fact|preference|event|relationship", "source": "conversation", "confidence": 0.0-1.0}]

"is_definition" is true only for statements that define what the entity fundamentally is. Respond with [] when nothing is worth keeping.`

// extractKnowledge mines the last extraction window for statements and
// forwards them to the knowledge sink. Failures are logged and skipped;
// the counters stay advanced so the next interval retries on fresh turns.
func (m *LayeredMemory) extractKnowledge(ctx context.Context) {
	if m.sink == nil {
		return
	}
	window, err := m.lastUserRounds(ctx, m.cfg.ExtractionInterval)
	if err != nil || len(window) == 0 {
		return
	}

	raw, err := m.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(extractionPrompt, renderTranscript(window))),
	}, llm.TierTool)
	if err != nil {
		logger.WarnX(ModuleName, "[LayeredMemory] knowledge extraction failed: %v", err)
		return
	}

	var stmts []extractedStatement
	if err := jsonx.DecodeStrict(raw, &stmts); err != nil {
		logger.WarnX(ModuleName, "[LayeredMemory] knowledge extraction returned unparsable JSON: %v", err)
		return
	}

	stored := 0
	for _, st := range stmts {
		if strings.TrimSpace(st.EntityName) == "" || strings.TrimSpace(st.Content) == "" {
			continue
		}
		source := st.Source
		if source == "" {
			source = "conversation"
		}
		if st.IsDefinition {
			if err := m.sink.SetDefinition(ctx, st.EntityName, st.Content, st.Type, source, st.Confidence); err != nil {
				logger.DebugX(ModuleName, "[LayeredMemory] definition for %q not stored: %v", st.EntityName, err)
				continue
			}
		} else {
			if err := m.sink.AddRelatedInfo(ctx, st.EntityName, st.Content, st.Type, source, st.Confidence); err != nil {
				logger.DebugX(ModuleName, "[LayeredMemory] related info for %q not stored: %v", st.EntityName, err)
				continue
			}
		}
		stored++
	}
	if stored > 0 {
		logger.InfoX(ModuleName, "[LayeredMemory] extracted %d knowledge statements", stored)
	}
}

// lastUserRounds returns the newest n user rounds with interleaved replies.
func (m *LayeredMemory) lastUserRounds(ctx context.Context, n int) ([]*Message, error) {
	msgs, err := m.repo.ListShortTerm(ctx)
	if err != nil {
		return nil, err
	}
	rounds := 0
	start := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			rounds++
			if rounds == n {
				start = i
				break
			}
		}
	}
	return msgs[start:], nil
}
