package ports

import (
	"context"

	"github.com/findirfin/ringil/internal/domain/entities"
)

// CompletionPort executes a single chat completion call against a provider
type CompletionPort interface {
	Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a fully resolved provider request
type CompletionRequest struct {
	Endpoint    string              `json:"endpoint"`
	APIKey      string              `json:"-"`
	Model       string              `json:"model"`
	Messages    []CompletionMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

// CompletionMessage is one entry of the provider message list
type CompletionMessage struct {
	Role    entities.MessageRole `json:"role"`
	Content string               `json:"content"`
}

// CompletionResponse carries the first choice of a provider answer
type CompletionResponse struct {
	ID           string      `json:"id"`
	Model        string      `json:"model"`
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// TokenUsage represents token usage statistics
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
