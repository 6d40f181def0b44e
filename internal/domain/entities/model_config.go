package entities

// ModelConfig describes one configured completion provider endpoint
type ModelConfig struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Provider     string  `json:"provider,omitempty"`
	APIEndpoint  string  `json:"api_endpoint"`
	APIKey       string  `json:"api_key"`
	SystemPrompt string  `json:"system_prompt"`
	ModelID      string  `json:"model_id"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Enabled      bool    `json:"enabled"`
}

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 100
)

// DefaultModelConfig returns the configuration seeded into an empty registry
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		ID:           "default-gpt4",
		Name:         "GPT-4",
		Provider:     "openai",
		APIEndpoint:  "https://api.openai.com/v1/chat/completions",
		APIKey:       "",
		SystemPrompt: "You are a helpful AI assistant.",
		// without a ModelID the dispatcher falls back to grok-2-latest, which
		// the OpenAI endpoint above does not serve
		ModelID:     "gpt-4",
		Temperature: 0.7,
		MaxTokens:   2000,
		Enabled:     true,
	}
}

// HasAPIKey returns true if a key is configured
func (m *ModelConfig) HasAPIKey() bool {
	return m.APIKey != ""
}

// Clone returns a copy of the configuration
func (m *ModelConfig) Clone() *ModelConfig {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

// Redacted returns a copy safe to hand to outer surfaces
func (m *ModelConfig) Redacted() *ModelConfig {
	cp := m.Clone()
	if cp != nil && cp.APIKey != "" {
		cp.APIKey = "********"
	}
	return cp
}
