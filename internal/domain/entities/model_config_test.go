package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultModelConfig(t *testing.T) {
	cfg := DefaultModelConfig()

	assert.Equal(t, "default-gpt4", cfg.ID)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", cfg.APIEndpoint)
	assert.Equal(t, "gpt-4", cfg.ModelID, "the seed names a model its endpoint serves")
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.HasAPIKey())
}

func TestModelConfig_CloneIsIndependent(t *testing.T) {
	cfg := DefaultModelConfig()
	cp := cfg.Clone()
	cp.Name = "Changed"

	assert.Equal(t, "GPT-4", cfg.Name)
	assert.Nil(t, (*ModelConfig)(nil).Clone())
}
