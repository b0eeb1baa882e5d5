package world

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/service/intent"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/pkg/logger"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

const ModuleName = "world"

// Model exposes the environment state: one active place, domain grouping,
// intent-driven switching and perception context.
type Model struct {
	repo      Repository
	llm       llm.Caller
	precision *intent.Classifier

	mu     sync.Mutex
	active *Environment
}

// NewModel creates the environment model.
func NewModel(repo Repository, caller llm.Caller, precision *intent.Classifier) *Model {
	return &Model{repo: repo, llm: caller, precision: precision}
}

// ActiveEnvironment returns the active environment through a read-through
// cache. The cache is invalidated only by this model's own writes.
func (m *Model) ActiveEnvironment(ctx context.Context) (*Environment, error) {
	m.mu.Lock()
	if m.active != nil {
		env := m.active
		m.mu.Unlock()
		return env, nil
	}
	m.mu.Unlock()

	env, err := m.repo.ActiveEnvironment(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.active = env
	m.mu.Unlock()
	return env, nil
}

// Switch activates the target environment. The repository performs the
// deactivate-all / activate-one pair in a single transaction.
func (m *Model) Switch(ctx context.Context, envUUID string) error {
	if err := m.repo.ActivateEnvironment(ctx, envUUID); err != nil {
		return err
	}
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
	logger.InfoX(ModuleName, "[Model] switched active environment to %s", envUUID)
	return nil
}

const switchConfirmPrompt = `The user said: %s

The character is currently at "%s". The user mentioned the place "%s".
Does the user actually want the character to move there now?
Respond with strict JSON, nothing else: {"can_switch": true|false}`

// DetectSwitchIntent looks for environment or domain names in the input
// and, when one is found, asks the Tool model whether the user actually
// wants to move there. Any upstream failure yields canSwitch=false.
func (m *Model) DetectSwitchIntent(ctx context.Context, userInput string) (*SwitchIntent, error) {
	res := &SwitchIntent{}
	active, err := m.ActiveEnvironment(ctx)
	if err == nil {
		res.FromEnv = active.Name
	}

	target, targetName := m.matchTarget(ctx, userInput, active)
	if target == nil {
		return res, nil
	}
	res.ToEnv = targetName
	res.ToEnvUUID = target.UUID

	raw, err := m.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(switchConfirmPrompt, userInput, res.FromEnv, targetName)),
	}, llm.TierTool)
	if err != nil {
		logger.WarnX(ModuleName, "[Model] switch confirmation degraded to no-switch: %v", err)
		return res, nil
	}
	var verdict struct {
		CanSwitch bool `json:"can_switch"`
	}
	if err := jsonx.DecodeStrict(raw, &verdict); err != nil {
		return res, nil
	}
	res.CanSwitch = verdict.CanSwitch
	return res, nil
}

// matchTarget scans environment names first, then domain names resolved to
// their default environment. The active environment never matches.
func (m *Model) matchTarget(ctx context.Context, userInput string, active *Environment) (*Environment, string) {
	lower := strings.ToLower(userInput)

	envs, err := m.repo.ListEnvironments(ctx)
	if err == nil {
		for _, env := range envs {
			if active != nil && env.UUID == active.UUID {
				continue
			}
			if env.Name != "" && strings.Contains(lower, strings.ToLower(env.Name)) {
				return env, env.Name
			}
		}
	}

	doms, err := m.repo.ListDomains(ctx)
	if err != nil {
		return nil, ""
	}
	for _, dom := range doms {
		if dom.Name == "" || !strings.Contains(lower, strings.ToLower(dom.Name)) {
			continue
		}
		if dom.DefaultEnvironmentUUID == "" {
			continue
		}
		env, err := m.repo.GetEnvironment(ctx, dom.DefaultEnvironmentUUID)
		if err != nil {
			continue
		}
		if active != nil && env.UUID == active.UUID {
			continue
		}
		return env, dom.Name
	}
	return nil, ""
}

// perceptionKeywords gate vision context generation.
var perceptionKeywords = []string{
	"看", "看到", "周围", "环境", "风景", "样子",
	"see", "look", "around", "surroundings", "scenery", "view", "describe",
}

// VisionContext describes the current surroundings when the input asks
// about them. High-precision questions get the environment's full sensory
// detail; the rest get a domain-level overview when one exists.
func (m *Model) VisionContext(ctx context.Context, userInput string) (*VisionContext, error) {
	if !containsPerception(userInput) {
		return nil, nil
	}
	env, err := m.ActiveEnvironment(ctx)
	if err != nil {
		return nil, err
	}

	vc := &VisionContext{Environment: env}
	if m.precision != nil && !m.precision.HighPrecision(ctx, userInput) {
		if dom, err := m.repo.DomainOfEnvironment(ctx, env.UUID); err == nil {
			vc.Domain = dom
			vc.ObjectCount = countSensoryDetails(env)
			vc.Narration = m.narrate(ctx, fmt.Sprintf("%s, part of %s. %s", env.Name, dom.Name, dom.Description))
			return vc, nil
		}
	}

	details := sensoryDetails(env)
	vc.ObjectCount = len(details)
	var sb strings.Builder
	sb.WriteString(env.Name)
	if env.OverallDescription != "" {
		sb.WriteString(": ")
		sb.WriteString(env.OverallDescription)
	}
	for _, d := range details {
		sb.WriteString(" ")
		sb.WriteString(d)
	}
	vc.Narration = m.narrate(ctx, sb.String())
	return vc, nil
}

const narrationPrompt = `Rewrite this scene description as what the character sees right now, in first person, two or three sentences. Respond with the narration only.

%s`

// narrate turns the composed scene description into first-person narration
// via the Vision tier. Upstream failure keeps the composed text.
func (m *Model) narrate(ctx context.Context, composed string) string {
	text, err := m.llm.Chat(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(narrationPrompt, composed)),
	}, llm.TierVision)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.DebugX(ModuleName, "[Model] narration kept composed description: %v", err)
		return composed
	}
	return strings.TrimSpace(text)
}

func containsPerception(input string) bool {
	lower := strings.ToLower(input)
	for _, kw := range perceptionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func sensoryDetails(env *Environment) []string {
	var details []string
	for _, d := range []string{env.Atmosphere, env.Lighting, env.Sounds, env.Smells} {
		if strings.TrimSpace(d) != "" {
			details = append(details, d)
		}
	}
	return details
}

func countSensoryDetails(env *Environment) int {
	return len(sensoryDetails(env))
}

// PromptBlock renders the active environment for the system prompt.
// Empty when no environment is active.
func (m *Model) PromptBlock(ctx context.Context) (string, error) {
	env, err := m.ActiveEnvironment(ctx)
	if err != nil {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString("## Current environment\n")
	fmt.Fprintf(&sb, "- Place: %s\n", env.Name)
	if env.OverallDescription != "" {
		fmt.Fprintf(&sb, "- %s\n", env.OverallDescription)
	}
	for _, pair := range [][2]string{
		{"Atmosphere", env.Atmosphere},
		{"Lighting", env.Lighting},
		{"Sounds", env.Sounds},
		{"Smells", env.Smells},
	} {
		if strings.TrimSpace(pair[1]) != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", pair[0], pair[1])
		}
	}
	return sb.String(), nil
}
