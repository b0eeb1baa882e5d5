package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/gg/gptr"
	einoDeepseek "github.com/cloudwego/eino-ext/components/model/deepseek"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	einoQwen "github.com/cloudwego/eino-ext/components/model/qwen"
	"github.com/cloudwego/eino/components/model"
)

// buildChatModel constructs an Eino BaseChatModel for one tier config.
// The provider switch covers the OpenAI-compatible protocol family; each
// branch uses the dedicated SDK so provider quirks stay encapsulated.
func buildChatModel(ctx context.Context, cfg TierConfig) (model.BaseChatModel, error) {
	switch strings.ToLower(cfg.Provider) {
	case "deepseek":
		return buildDeepseekChatModel(ctx, cfg)
	case "qwen":
		return buildQwenChatModel(ctx, cfg)
	case "openai", "":
		return buildOpenAIChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildOpenAIChatModel(ctx context.Context, cfg TierConfig) (model.BaseChatModel, error) {
	conf := &einoOpenAI.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      ResolveEnvValue(cfg.APIKey),
		Temperature: gptr.Of(cfg.Temperature),
		ResponseFormat: &einoOpenAI.ChatCompletionResponseFormat{
			Type: einoOpenAI.ChatCompletionResponseFormatTypeText,
		},
	}
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		conf.MaxTokens = gptr.Of(cfg.MaxTokens)
	}
	return einoOpenAI.NewChatModel(ctx, conf)
}

func buildDeepseekChatModel(ctx context.Context, cfg TierConfig) (model.BaseChatModel, error) {
	conf := &einoDeepseek.ChatModelConfig{
		APIKey:      ResolveEnvValue(cfg.APIKey),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	}
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		conf.MaxTokens = cfg.MaxTokens
	}
	return einoDeepseek.NewChatModel(ctx, conf)
}

func buildQwenChatModel(ctx context.Context, cfg TierConfig) (model.BaseChatModel, error) {
	conf := &einoQwen.ChatModelConfig{
		APIKey:      ResolveEnvValue(cfg.APIKey),
		Model:       cfg.Model,
		Temperature: gptr.Of(cfg.Temperature),
	}
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		conf.MaxTokens = gptr.Of(cfg.MaxTokens)
	}
	return einoQwen.NewChatModel(ctx, conf)
}

// ResolveEnvValue resolves "${ENV_VAR}" references in a string.
func ResolveEnvValue(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
