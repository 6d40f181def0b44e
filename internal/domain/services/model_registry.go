package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/configutil"
	"github.com/findirfin/ringil/internal/pkg/logutil"
)

// ModelRegistry owns the list of provider configurations, persisted as one
// blob in the primary store.
type ModelRegistry struct {
	store     ports.PrimaryStore
	seed      *entities.ModelConfig
	logger    *logutil.Logger
	publisher ports.EventPublisher

	mu      sync.RWMutex
	configs []*entities.ModelConfig
}

// NewModelRegistry creates a registry; seed is used when the store holds no
// configurations (entities.DefaultModelConfig when nil).
func NewModelRegistry(store ports.PrimaryStore, seed *entities.ModelConfig, logger *logutil.Logger) *ModelRegistry {
	if seed == nil {
		seed = entities.DefaultModelConfig()
	}
	if logger == nil {
		logger = logutil.NewDefaultLogger()
	}
	return &ModelRegistry{
		store:  store,
		seed:   seed,
		logger: logger,
	}
}

// SetPublisher registers where models.updated events go
func (r *ModelRegistry) SetPublisher(p ports.EventPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = p
}

// Load reads persisted configurations, seeding the default when none exist
func (r *ModelRegistry) Load(ctx context.Context) error {
	blob, found, err := r.store.Read(ctx, ports.KeyModels)
	if err != nil {
		return fmt.Errorf("failed to read models: %w", err)
	}

	var configs []*entities.ModelConfig
	if found && len(blob) > 0 {
		if err := json.Unmarshal(blob, &configs); err != nil {
			return fmt.Errorf("failed to decode models: %w", err)
		}
	}
	configs = slices.DeleteFunc(configs, func(c *entities.ModelConfig) bool { return c == nil })

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(configs) == 0 {
		r.configs = []*entities.ModelConfig{r.seed.Clone()}
		r.logger.Info("Seeded default model configuration", logutil.Fields{"model_config": r.seed.ID})
		return r.persistLocked(ctx)
	}

	r.configs = configs
	r.logger.Debug("Loaded model configurations", logutil.Fields{"count": len(configs)})
	return nil
}

// ListEnabled returns copies of enabled configurations in insertion order
func (r *ModelRegistry) ListEnabled() []*entities.ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.ModelConfig, 0, len(r.configs))
	for _, c := range r.configs {
		if c.Enabled {
			out = append(out, c.Clone())
		}
	}
	return out
}

// List returns copies of all configurations in insertion order
func (r *ModelRegistry) List() []*entities.ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.ModelConfig, len(r.configs))
	for i, c := range r.configs {
		out[i] = c.Clone()
	}
	return out
}

// Get returns a copy of the configuration with id
func (r *ModelRegistry) Get(id string) (*entities.ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		return r.configs[i].Clone(), nil
	}
	return nil, apperr.NotFound("model", id)
}

// GetEnabled is Get restricted to enabled configurations
func (r *ModelRegistry) GetEnabled(id string) (*entities.ModelConfig, error) {
	cfg, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, apperr.NotFound("model", id)
	}
	return cfg, nil
}

// Upsert validates cfg, assigns an id when empty, and inserts it or replaces
// the existing entry in place. The whole set is persisted.
func (r *ModelRegistry) Upsert(ctx context.Context, cfg *entities.ModelConfig) (*entities.ModelConfig, error) {
	if cfg == nil {
		return nil, &apperr.ConfigError{Field: "model", Reason: "is required"}
	}
	if err := ValidateModelConfig(cfg); err != nil {
		return nil, err
	}

	stored := cfg.Clone()
	stored.Name = strings.TrimSpace(stored.Name)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexLocked(stored.ID); i >= 0 {
		r.configs[i] = stored
	} else {
		r.configs = append(r.configs, stored)
	}

	if err := r.persistLocked(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("Saved model configuration", logutil.Fields{
		"model_config": stored.ID,
		"name":         stored.Name,
		"enabled":      stored.Enabled,
	})
	r.notifyLocked(ctx)
	return stored.Clone(), nil
}

// Remove deletes the configuration with id. The last configuration cannot be removed.
func (r *ModelRegistry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return apperr.NotFound("model", id)
	}
	if len(r.configs) == 1 {
		return &apperr.ConfigError{Field: "model", Reason: "cannot remove the last model configuration"}
	}

	r.configs = slices.Delete(r.configs, i, i+1)
	if err := r.persistLocked(ctx); err != nil {
		return err
	}

	r.logger.Info("Removed model configuration", logutil.Fields{"model_config": id})
	r.notifyLocked(ctx)
	return nil
}

// Promote moves an enabled configuration to the front of the list, making it
// the model new sessions use until they select another one.
func (r *ModelRegistry) Promote(ctx context.Context, id string) (*entities.ModelConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 || !r.configs[i].Enabled {
		return nil, apperr.NotFound("model", id)
	}
	if i == 0 {
		return r.configs[0].Clone(), nil
	}

	cfg := r.configs[i]
	r.configs = slices.Insert(slices.Delete(r.configs, i, i+1), 0, cfg)
	if err := r.persistLocked(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("Promoted model configuration", logutil.Fields{"model_config": id})
	r.notifyLocked(ctx)
	return cfg.Clone(), nil
}

func (r *ModelRegistry) indexLocked(id string) int {
	return slices.IndexFunc(r.configs, func(c *entities.ModelConfig) bool { return c.ID == id })
}

func (r *ModelRegistry) persistLocked(ctx context.Context) error {
	blob, err := json.Marshal(r.configs)
	if err != nil {
		return fmt.Errorf("failed to encode models: %w", err)
	}
	if err := r.store.Write(ctx, ports.KeyModels, blob); err != nil {
		return fmt.Errorf("failed to persist models: %w", err)
	}
	return nil
}

func (r *ModelRegistry) notifyLocked(ctx context.Context) {
	if r.publisher == nil {
		return
	}
	event := ports.ChangeEvent{
		Type:         ports.EventModelsUpdated,
		MessageCount: len(r.configs),
		Timestamp:    time.Now(),
	}
	if err := r.publisher.PublishJSON(ctx, ports.SubjectModelsUpdated, event); err != nil {
		r.logger.Warn("Failed to publish models update", logutil.Fields{"error": err})
	}
}

// ValidateModelConfig checks the fields a provider call depends on
func ValidateModelConfig(cfg *entities.ModelConfig) error {
	err := configutil.NewValidator().
		RequiredString("name", cfg.Name).
		RequiredString("api_endpoint", cfg.APIEndpoint).
		ValidateURL("api_endpoint", cfg.APIEndpoint).
		FloatRange("temperature", cfg.Temperature, entities.MinTemperature, entities.MaxTemperature).
		MinInt("max_tokens", cfg.MaxTokens, entities.MinMaxTokens).
		Result()
	if err == nil {
		return nil
	}

	var verrs configutil.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &apperr.ConfigError{Field: verrs[0].Field, Reason: verrs[0].Message}
	}
	return &apperr.ConfigError{Err: err}
}
