package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/emotion"
	"github.com/kiosk404/anima/internal/anima/service/event"
	"github.com/kiosk404/anima/internal/anima/service/intent"
	"github.com/kiosk404/anima/internal/anima/service/knowledge"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/internal/anima/service/memory"
	"github.com/kiosk404/anima/internal/anima/service/plugin"
	"github.com/kiosk404/anima/internal/anima/service/prompt"
	"github.com/kiosk404/anima/internal/anima/service/schedule"
	"github.com/kiosk404/anima/internal/anima/service/world"
	"github.com/kiosk404/anima/pkg/logger"
)

const ModuleName = "kernel"

// recentMessagesInPrompt caps the transcript tail appended after the
// system prompt.
const recentMessagesInPrompt = 10

// Character identifies who the agent plays.
type Character struct {
	Name         string
	Profile      string
	WorldSetting string
	Personality  string
	Hobbies      string
}

// Deps collects the service facades the kernel orchestrates.
type Deps struct {
	LLM       llm.Caller
	Prompts   *prompt.Library
	Base      *knowledge.BaseKnowledge
	Graph     *knowledge.Graph
	Memory    *memory.LayeredMemory
	Emotion   *emotion.Analyzer
	World     *world.Model
	Schedules *schedule.Engine
	Intents   *intent.Classifier
	Plugins   *plugin.Invoker
	Events    *event.Manager
}

// Kernel drives the per-turn conversation pipeline and event handling.
// Turns within a conversation are serialised; only the task graph fans
// out internally.
type Kernel struct {
	deps      Deps
	character Character
	now       func() time.Time

	mu sync.Mutex
}

// New creates the agent kernel.
func New(deps Deps, character Character) *Kernel {
	return &Kernel{deps: deps, character: character, now: time.Now}
}

// Chat runs one conversation turn and returns the reply text. The reply
// always exists: hard upstream failures yield an apology carrying the
// upstream message, with the user's message already in memory.
func (k *Kernel) Chat(ctx context.Context, userInput string) (string, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return "", fmt.Errorf("%w: empty input", errno.ErrBadInput)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Understand: knowledge retrieval and environment switching.
	retrieved, err := k.deps.Graph.Retrieve(ctx, userInput)
	if err != nil {
		logger.WarnX(ModuleName, "[Kernel] knowledge retrieval failed: %v", err)
		retrieved = &knowledge.RetrieveResult{}
	}
	k.maybeSwitchEnvironment(ctx, userInput)

	// Vision context when the input asks about the surroundings.
	vision, err := k.deps.World.VisionContext(ctx, userInput)
	if err != nil {
		logger.DebugX(ModuleName, "[Kernel] no vision context: %v", err)
	}

	// Schedule confirmation, then schedule intent.
	scheduleNote := k.handleCollaborationReply(ctx, userInput)
	if scheduleNote == "" {
		scheduleNote = k.handleScheduleIntent(ctx, userInput)
	}

	pluginContext := k.deps.Plugins.ContextFor(ctx, userInput)

	// The user message lands in memory before prompt assembly so the
	// short-term log the prompt sees includes this turn.
	if err := k.deps.Memory.AddMessage(ctx, memory.RoleUser, userInput); err != nil {
		return "", err
	}
	k.deps.Emotion.MaybeAnalyze(ctx, k.character.Profile)

	messages, err := k.composePrompt(ctx, retrieved, vision, scheduleNote, pluginContext)
	if err != nil {
		return "", err
	}

	reply, err := k.deps.LLM.Chat(ctx, messages, llm.TierMain)
	if err != nil {
		if errors.Is(err, errno.ErrCancelled) {
			return "", err
		}
		logger.ErrorX(ModuleName, "[Kernel] main generation failed: %v", err)
		reply = fmt.Sprintf("Sorry, I lost my train of thought for a moment (%v). Could you say that again?", err)
	}

	if err := k.deps.Memory.AddMessage(ctx, memory.RoleAssistant, reply); err != nil {
		logger.WarnX(ModuleName, "[Kernel] assistant append failed: %v", err)
	}
	return reply, nil
}

// HandleEvent processes an externally created event and returns the text
// to surface as the chat reply.
func (k *Kernel) HandleEvent(ctx context.Context, eventID string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	reply, deliveryPending, err := k.deps.Events.Handle(ctx, eventID, k.characterContext())
	if err != nil {
		return "", err
	}
	if deliveryPending {
		logger.InfoX(ModuleName, "[Kernel] event %s result held for delivery confirmation", eventID)
	}
	if reply != "" {
		if err := k.deps.Memory.AddMessage(ctx, memory.RoleAssistant, reply); err != nil {
			logger.WarnX(ModuleName, "[Kernel] event reply append failed: %v", err)
		}
	}
	return reply, nil
}

func (k *Kernel) characterContext() string {
	return fmt.Sprintf("Name: %s\nProfile: %s\nPersonality: %s\nHobbies: %s",
		k.character.Name, k.character.Profile, k.character.Personality, k.character.Hobbies)
}

func (k *Kernel) maybeSwitchEnvironment(ctx context.Context, userInput string) {
	sw, err := k.deps.World.DetectSwitchIntent(ctx, userInput)
	if err != nil || !sw.CanSwitch || sw.ToEnvUUID == "" {
		return
	}
	if err := k.deps.World.Switch(ctx, sw.ToEnvUUID); err != nil {
		logger.WarnX(ModuleName, "[Kernel] environment switch failed: %v", err)
		return
	}
	note := fmt.Sprintf("(moved from %s to %s)", sw.FromEnv, sw.ToEnv)
	if err := k.deps.Memory.AddMessage(ctx, memory.RoleSystem, note); err != nil {
		logger.WarnX(ModuleName, "[Kernel] switch note append failed: %v", err)
	}
}
