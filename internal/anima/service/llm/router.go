package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/pkg/logger"
)

const ModuleName = "llm"

// Caller is the single contract every consumer of the LLM module depends on.
// Tests substitute a scripted implementation.
type Caller interface {
	// Chat sends the messages to the selected tier and returns the reply text.
	Chat(ctx context.Context, messages []*schema.Message, tier Tier) (string, error)
}

// Router dispatches chat calls to one of three configured model tiers.
// Models are built lazily on first use and cached per tier.
type Router struct {
	mu     sync.Mutex
	tiers  Tiers
	models map[Tier]model.BaseChatModel
}

var _ Caller = (*Router)(nil)

// NewRouter creates a Router over the given tier configurations.
// Tiers without an explicit config fall back to the Main config.
func NewRouter(tiers Tiers) *Router {
	return &Router{
		tiers:  tiers,
		models: make(map[Tier]model.BaseChatModel),
	}
}

// Chat sends messages to the tier's model and returns the generated text.
// Transport failures are wrapped in errno.ErrUpstream with the original
// message preserved; callers decide fallback behaviour.
func (r *Router) Chat(ctx context.Context, messages []*schema.Message, tier Tier) (string, error) {
	cm, err := r.chatModel(ctx, tier)
	if err != nil {
		return "", fmt.Errorf("%w: tier %s: %v", errno.ErrUpstream, tier, err)
	}

	msg, err := cm.Generate(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", errno.ErrCancelled, ctx.Err())
		}
		return "", fmt.Errorf("%w: tier %s: %v", errno.ErrUpstream, tier, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: tier %s returned empty message", errno.ErrUpstream, tier)
	}
	return msg.Content, nil
}

// chatModel returns the cached model for the tier, building it on first use.
func (r *Router) chatModel(ctx context.Context, tier Tier) (model.BaseChatModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cm, ok := r.models[tier]; ok {
		return cm, nil
	}

	cfg, ok := r.tiers[tier]
	if !ok {
		// Unconfigured auxiliary tiers share the main tier's model.
		cfg, ok = r.tiers[TierMain]
		if !ok {
			return nil, fmt.Errorf("no configuration for tier %s and no main fallback", tier)
		}
	}

	cm, err := buildChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.models[tier] = cm
	logger.InfoX(ModuleName, "[Router] built chat model for tier %s (provider=%s model=%s)",
		tier, cfg.Provider, cfg.Model)
	return cm, nil
}

// Config holds the configuration for the LLM module.
type Config struct {
	Tiers Tiers
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete validates and fills defaults.
func (c *Config) Complete() CompletedConfig {
	if c.Tiers == nil {
		c.Tiers = make(Tiers)
	}
	return CompletedConfig{c}
}

// Module is the top-level LLM module.
type Module struct {
	Router *Router
}

// New creates and initializes the LLM module from a completed config.
func (c CompletedConfig) New(_ context.Context) (*Module, error) {
	if _, ok := c.Tiers[TierMain]; !ok {
		return nil, fmt.Errorf("llm: main tier must be configured")
	}
	logger.InfoX(ModuleName, "[Module] LLM module initialized with %d tiers", len(c.Tiers))
	return &Module{Router: NewRouter(c.Tiers)}, nil
}
