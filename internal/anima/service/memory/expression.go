package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

type learnedExpression struct {
	Expression string `json:"expression"`
	Meaning    string `json:"meaning"`
	Category   string `json:"category"`
}

const expressionLearnPrompt = `Identify recurring expressions, catchphrases or wording habits the user shows in this conversation segment.

Conversation:
%s

Respond with a strict JSON array, nothing else:
[{"expression": "...", "meaning": "...", "category": "catchphrase|tone|slang"}]
Respond with [] when nothing stands out.`

// shouldLearnExpressions checks the expression-learning interval against the
// persistent counter.
func (m *LayeredMemory) shouldLearnExpressions(ctx context.Context, total int64) bool {
	last, err := m.meta.GetMetaInt(ctx, MetaLastExpressionLearnRound)
	if err != nil {
		return false
	}
	return total-last >= int64(m.cfg.ExpressionLearnInterval)
}

// learnUserExpressions mines user wording habits and persists them as
// user-kind expression styles. Failures leave the counter untouched so the
// next eligible turn retries.
func (m *LayeredMemory) learnUserExpressions(ctx context.Context, total int64) {
	window, err := m.lastUserRounds(ctx, m.cfg.ExpressionLearnInterval)
	if err != nil || len(window) == 0 {
		return
	}

	var userLines []string
	for _, msg := range window {
		if msg.Role == RoleUser {
			userLines = append(userLines, "user: "+msg.Content)
		}
	}
	raw, err := m.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(expressionLearnPrompt, strings.Join(userLines, "\n"))),
	}, llm.TierTool)
	if err != nil {
		logger.WarnX(ModuleName, "[LayeredMemory] expression learning failed: %v", err)
		return
	}

	var learned []learnedExpression
	if err := jsonx.DecodeStrict(raw, &learned); err != nil {
		logger.WarnX(ModuleName, "[LayeredMemory] expression learning returned unparsable JSON: %v", err)
		return
	}

	for _, expr := range learned {
		if strings.TrimSpace(expr.Expression) == "" {
			continue
		}
		if err := m.repo.InsertExpressionStyle(ctx, &ExpressionStyle{
			Kind:       StyleUser,
			Expression: expr.Expression,
			Meaning:    expr.Meaning,
			Category:   expr.Category,
		}); err != nil {
			logger.DebugX(ModuleName, "[LayeredMemory] expression %q not stored: %v", expr.Expression, err)
		}
	}
	_ = m.meta.SetMeta(ctx, MetaLastExpressionLearnRound, strconv.FormatInt(total, 10))
}

// ExpressionPromptBlock renders the newest styles of a kind for the prompt.
func (m *LayeredMemory) ExpressionPromptBlock(ctx context.Context, kind StyleKind, limit int) (string, error) {
	styles, err := m.repo.ListExpressionStyles(ctx, kind, limit)
	if err != nil {
		return "", err
	}
	if len(styles) == 0 {
		return "", nil
	}
	var sb strings.Builder
	if kind == StyleAgent {
		sb.WriteString("## Your expression style\n")
	} else {
		sb.WriteString("## The user's wording habits\n")
	}
	for _, s := range styles {
		fmt.Fprintf(&sb, "- %q", s.Expression)
		if s.Meaning != "" {
			fmt.Fprintf(&sb, " (%s)", s.Meaning)
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
