package services

import (
	"context"
	"time"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/metrics"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/logutil"
	"github.com/findirfin/ringil/pkg/tokenizer"
)

// CompletionDispatcher turns a conversation history plus a model configuration
// into a single provider call.
type CompletionDispatcher struct {
	port     ports.CompletionPort
	logger   *logutil.Logger
	metrics  *metrics.Collector
	counters func(model string) tokenizer.Counter
}

// DispatcherOption configures a CompletionDispatcher
type DispatcherOption func(*CompletionDispatcher)

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger *logutil.Logger) DispatcherOption {
	return func(d *CompletionDispatcher) { d.logger = logger }
}

// WithDispatcherMetrics sets the metrics collector
func WithDispatcherMetrics(m *metrics.Collector) DispatcherOption {
	return func(d *CompletionDispatcher) { d.metrics = m }
}

// WithTokenCounter overrides how prompt tokens are estimated
func WithTokenCounter(fn func(model string) tokenizer.Counter) DispatcherOption {
	return func(d *CompletionDispatcher) { d.counters = fn }
}

// NewCompletionDispatcher creates a dispatcher over port
func NewCompletionDispatcher(port ports.CompletionPort, opts ...DispatcherOption) *CompletionDispatcher {
	d := &CompletionDispatcher{
		port:     port,
		logger:   logutil.NewDefaultLogger(),
		counters: tokenizer.ForModel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BuildRequest maps cfg and history to a provider request: the system prompt
// first, then every user and assistant message in order.
func BuildRequest(cfg *entities.ModelConfig, history []entities.Message) *ports.CompletionRequest {
	messages := make([]ports.CompletionMessage, 0, len(history)+1)
	messages = append(messages, ports.CompletionMessage{
		Role:    entities.RoleSystem,
		Content: cfg.SystemPrompt,
	})
	for _, msg := range history {
		if msg.IsSystem() {
			continue
		}
		messages = append(messages, ports.CompletionMessage{
			Role:    msg.Role,
			Content: msg.Text,
		})
	}

	model := cfg.ModelID
	if model == "" {
		model = constants.FallbackModelID
	}

	return &ports.CompletionRequest{
		Endpoint:    cfg.APIEndpoint,
		APIKey:      cfg.APIKey,
		Model:       model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// Complete returns the assistant reply for history. It fails with ConfigError
// before any network activity when cfg has no API key.
func (d *CompletionDispatcher) Complete(ctx context.Context, cfg *entities.ModelConfig, history []entities.Message) (string, error) {
	if cfg == nil {
		return "", &apperr.ConfigError{Field: "model", Reason: "is not selected"}
	}
	if !cfg.HasAPIKey() {
		return "", &apperr.ConfigError{Field: "api_key", Reason: "is required for " + cfg.Name}
	}

	request := BuildRequest(cfg, history)

	log := d.logger.WithFields(logutil.Fields{
		"model_config": cfg.ID,
		"model":        request.Model,
		"messages":     len(request.Messages),
	})
	if d.logger.Enabled(logutil.DEBUG) {
		log.Debug("Dispatching completion", logutil.Fields{
			"prompt_tokens_estimate": tokenizer.CountConversationTokens(d.counters(request.Model), history, cfg.SystemPrompt),
		})
	}

	start := time.Now()
	resp, err := d.port.Complete(ctx, request)
	elapsed := time.Since(start)
	d.metrics.RecordCompletionLatency(elapsed, request.Model)

	if err != nil {
		d.metrics.RecordProviderFailure(request.Model)
		log.Warn("Completion failed", logutil.Fields{"error": err, "duration_ms": elapsed.Milliseconds()})
		return "", err
	}

	fields := logutil.Fields{"duration_ms": elapsed.Milliseconds(), "finish_reason": resp.FinishReason}
	if resp.Usage != nil {
		fields["total_tokens"] = resp.Usage.TotalTokens
	}
	log.Info("Completion received", fields)

	return resp.Content, nil
}
