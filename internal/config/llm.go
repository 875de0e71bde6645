package config

// LLMConfig configures the text-completion capability.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini (default)
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`

	// TimeoutSeconds bounds every completion call. A stuck external
	// call must never block the agent (stuck = no output this cycle).
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxTokens is the per-call output token budget.
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultLLMConfig returns defaults for the Gemini-backed client.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:       "gemini",
		Model:          "gemini-2.0-flash",
		TimeoutSeconds: 60,
		MaxTokens:      2048,
	}
}
