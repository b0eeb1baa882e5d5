package llm

// Tier selects one of the three configured model tiers.
// Selection is caller-driven: classifiers and extractors use Tool,
// the main reply and task synthesis use Main, perception narration
// may use Vision.
type Tier string

const (
	TierMain   Tier = "main"
	TierTool   Tier = "tool"
	TierVision Tier = "vision"
)

// TierConfig holds the connection and sampling parameters for one tier.
type TierConfig struct {
	// Provider selects the wire protocol: "openai", "deepseek" or "qwen".
	// All three expose OpenAI-compatible endpoints but differ in SDK quirks.
	Provider string `json:"provider" mapstructure:"provider"`

	// Model is the model identifier as registered with the provider.
	Model string `json:"model" mapstructure:"model"`

	// BaseURL is the API endpoint. Empty means the provider default.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey is the credential. "${ENV_VAR}" references are resolved
	// against the process environment.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Temperature is the sampling temperature for this tier.
	Temperature float32 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens bounds generation length. 0 means provider default.
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
}

// Tiers maps every tier to its configuration.
type Tiers map[Tier]TierConfig
