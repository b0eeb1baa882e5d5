package kernel

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/service/knowledge"
	"github.com/kiosk404/anima/internal/anima/service/memory"
	"github.com/kiosk404/anima/internal/anima/service/prompt"
	"github.com/kiosk404/anima/internal/anima/service/world"
	"github.com/kiosk404/anima/pkg/logger"
)

// expressionStylesInPrompt caps rendered style lines per kind.
const expressionStylesInPrompt = 5

// composePrompt builds the system prompt from the chat template, appends
// the optional context blocks and the recent transcript tail.
func (k *Kernel) composePrompt(ctx context.Context, retrieved *knowledge.RetrieveResult,
	vision *world.VisionContext, scheduleNote, pluginContext string) ([]*schema.Message, error) {

	longTerm, err := k.deps.Memory.ContextForChat(ctx)
	if err != nil {
		logger.WarnX(ModuleName, "[Kernel] long-term context unavailable: %v", err)
	}
	envBlock, _ := k.deps.World.PromptBlock(ctx)
	toneBlock, _ := k.deps.Emotion.TonePromptBlock(ctx)

	system, err := k.deps.Prompts.Render(prompt.CategorySystem, "chat_system", map[string]string{
		"character_name":       k.character.Name,
		"character_profile":    k.character.Profile,
		"world_setting":        k.character.WorldSetting,
		"long_term_memory":     longTerm,
		"relevant_knowledge":   knowledge.RenderPromptBlock(retrieved.Items),
		"environment_context":  envBlock,
		"emotion_relationship": toneBlock,
	})
	if err != nil {
		return nil, err
	}

	var extras []string
	if block, err := k.deps.Base.RenderPromptBlock(ctx); err == nil && block != "" {
		extras = append(extras, block)
	}
	if block, err := k.deps.Memory.ExpressionPromptBlock(ctx, memory.StyleAgent, expressionStylesInPrompt); err == nil && block != "" {
		extras = append(extras, block)
	}
	if block, err := k.deps.Memory.ExpressionPromptBlock(ctx, memory.StyleUser, expressionStylesInPrompt); err == nil && block != "" {
		extras = append(extras, block)
	}
	if vision != nil && vision.Narration != "" {
		extras = append(extras, "## What you see\n"+vision.Narration)
	}
	if block, err := k.deps.Schedules.PromptBlock(ctx, k.now()); err == nil && block != "" {
		extras = append(extras, block)
	}
	if scheduleNote != "" {
		extras = append(extras, "## Schedule note\n"+scheduleNote)
	}
	if pluginContext != "" {
		extras = append(extras, "## Extra context\n"+pluginContext)
	}
	if len(extras) > 0 {
		system = strings.TrimRight(system, "\n") + "\n\n" + strings.Join(extras, "\n\n")
	}

	messages := []*schema.Message{schema.SystemMessage(system)}
	recent, err := k.deps.Memory.RecentMessages(ctx, recentMessagesInPrompt)
	if err != nil {
		return nil, err
	}
	for _, msg := range recent {
		switch msg.Role {
		case memory.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case memory.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		case memory.RoleSystem:
			messages = append(messages, schema.SystemMessage(msg.Content))
		default:
			return nil, fmt.Errorf("unknown message role %q", msg.Role)
		}
	}
	return messages, nil
}
