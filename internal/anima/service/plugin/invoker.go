package plugin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
)

const ModuleName = "plugin"

// Invoker picks the plugins relevant to a user input and collects their
// context into one composite block.
type Invoker struct {
	registry *Registry
	llm      llm.Caller
}

// NewInvoker creates the plugin invoker.
func NewInvoker(registry *Registry, caller llm.Caller) *Invoker {
	return &Invoker{registry: registry, llm: caller}
}

const selectPrompt = `The user said: %s

Available plugins:
%s
Which plugins are relevant to this message? Answer with their ids or numbers separated by commas, or "none".`

// ContextFor selects relevant plugins and concatenates their context,
// each section prefixed by the plugin name. Empty when nothing applies.
// Model failures fall back to keyword matching; plugin failures are
// logged and skipped.
func (i *Invoker) ContextFor(ctx context.Context, userInput string) string {
	candidates := i.registry.Enabled()
	if len(candidates) == 0 {
		return ""
	}

	relevant := i.selectByModel(ctx, userInput, candidates)
	if relevant == nil {
		relevant = selectByKeywords(userInput, candidates)
	}
	if len(relevant) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, p := range relevant {
		res, err := p.Invoke(ctx)
		if err != nil {
			logger.WarnX(ModuleName, "[Invoker] plugin %s failed: %v", p.ToolID(), err)
			continue
		}
		if res == nil || strings.TrimSpace(res.Context) == "" {
			continue
		}
		fmt.Fprintf(&sb, "[%s] %s\n", p.Name(), res.Context)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// selectByModel asks the Tool tier which plugins apply. A nil return means
// the caller should fall back to keywords; an empty non-nil slice means
// the model answered "none".
func (i *Invoker) selectByModel(ctx context.Context, userInput string, candidates []Plugin) []Plugin {
	var listing strings.Builder
	for idx, p := range candidates {
		fmt.Fprintf(&listing, "%d. %s (id=%s): %s\n", idx+1, p.Name(), p.ToolID(), p.Description())
	}

	raw, err := i.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(selectPrompt, userInput, listing.String())),
	}, llm.TierTool)
	if err != nil {
		logger.WarnX(ModuleName, "[Invoker] plugin selection degraded to keywords: %v", err)
		return nil
	}
	return parseSelection(raw, candidates)
}

// parseSelection accepts comma or Chinese-comma separated tokens, each
// either a tool id or a 1-based index.
func parseSelection(raw string, candidates []Plugin) []Plugin {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || strings.EqualFold(cleaned, "none") {
		return []Plugin{}
	}
	cleaned = strings.ReplaceAll(cleaned, "，", ",")
	cleaned = strings.ReplaceAll(cleaned, "、", ",")

	seen := make(map[string]bool)
	var out []Plugin
	for _, token := range strings.Split(cleaned, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		var match Plugin
		if idx, err := strconv.Atoi(token); err == nil {
			if idx >= 1 && idx <= len(candidates) {
				match = candidates[idx-1]
			}
		} else {
			for _, p := range candidates {
				if strings.EqualFold(p.ToolID(), token) {
					match = p
					break
				}
			}
		}
		if match != nil && !seen[match.ToolID()] {
			seen[match.ToolID()] = true
			out = append(out, match)
		}
	}
	return out
}

func selectByKeywords(userInput string, candidates []Plugin) []Plugin {
	lower := strings.ToLower(userInput)
	var out []Plugin
	for _, p := range candidates {
		for _, kw := range p.Keywords() {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
