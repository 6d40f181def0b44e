package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/ports"
)

// maxErrorBody caps how much of a failed response body is kept
const maxErrorBody = 64 << 10

// Adapter implements the CompletionPort against any OpenAI-compatible
// chat completions endpoint (OpenAI, xAI, LM Studio, ...).
type Adapter struct {
	httpClient *http.Client
}

var _ ports.CompletionPort = (*Adapter)(nil)

// NewAdapter creates an adapter; a nil client uses http.DefaultClient
func NewAdapter(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{httpClient: httpClient}
}

// Complete performs exactly one POST to request.Endpoint
func (a *Adapter) Complete(ctx context.Context, request *ports.CompletionRequest) (*ports.CompletionResponse, error) {
	endpoint, err := url.Parse(request.Endpoint)
	if err != nil || endpoint.Host == "" {
		return nil, &apperr.ConfigError{Field: "api_endpoint", Reason: "is not a valid URL", Err: err}
	}

	messages := convertMessages(request.Messages)
	body, err := json.Marshal(chatRequest{
		Model:       request.Model,
		Messages:    messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat completion request: %w", err)
	}

	doer := &pinnedDoer{endpoint: endpoint, client: a.httpClient, body: body}
	config := openai.DefaultConfig(request.APIKey)
	config.BaseURL = strings.TrimSuffix(request.Endpoint, "/")
	config.HTTPClient = doer
	client := openai.NewClientWithConfig(config)

	// sampling fields travel in body only; go-openai's client-side checks
	// reject max_tokens for reasoning models before any request is made
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    request.Model,
		Messages: messages,
	})
	if err != nil {
		return nil, mapError(ctx, err, doer)
	}

	if len(resp.Choices) == 0 {
		return nil, &apperr.ProviderError{
			StatusCode: doer.status,
			Body:       "no choices returned from API",
		}
	}

	choice := resp.Choices[0]
	response := &ports.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	if resp.Usage.TotalTokens > 0 {
		response.Usage = &ports.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return response, nil
}

// chatRequest is the wire body. Unlike openai.ChatCompletionRequest it always
// carries temperature and stream, even when they hold zero values.
type chatRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Temperature float64                        `json:"temperature"`
	MaxTokens   int                            `json:"max_tokens"`
	Stream      bool                           `json:"stream"`
}

// mapError turns client failures into ProviderError, keeping the raw body of non-2xx answers
func mapError(ctx context.Context, err error, doer *pinnedDoer) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("failed to create chat completion: %w", ctxErr)
	}

	if doer.status != 0 && (doer.status < 200 || doer.status > 299) {
		return &apperr.ProviderError{StatusCode: doer.status, Body: doer.errBody}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apperr.ProviderError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apperr.ProviderError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}

	return &apperr.ProviderError{StatusCode: doer.status, Body: err.Error()}
}

// convertMessages maps the provider-neutral message list to go-openai messages
func convertMessages(messages []ports.CompletionMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    convertRole(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

func convertRole(role entities.MessageRole) string {
	switch role {
	case entities.RoleSystem:
		return openai.ChatMessageRoleSystem
	case entities.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// pinnedDoer sends every request to the configured endpoint verbatim, so
// endpoints that do not end in /chat/completions still work. It replaces the
// request body with body when set and keeps the body of a failed response for
// error reporting.
type pinnedDoer struct {
	endpoint *url.URL
	client   *http.Client
	body     []byte

	status  int
	errBody string
}

func (d *pinnedDoer) Do(req *http.Request) (*http.Response, error) {
	target := *d.endpoint
	req.URL = &target
	req.Host = target.Host
	if d.body != nil {
		req.Body = io.NopCloser(bytes.NewReader(d.body))
		req.ContentLength = int64(len(d.body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(d.body)), nil
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	d.status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read error response: %w", readErr)
		}
		d.errBody = string(body)
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}
