package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/pkg/configutil"
	"github.com/findirfin/ringil/internal/pkg/constants"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
	NATS     NATSConfig     `mapstructure:"nats"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	Session  SessionConfig  `mapstructure:"session"`
	Models   ModelsConfig   `mapstructure:"models"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Host        string `mapstructure:"host"`
	CORSEnabled bool   `mapstructure:"cors_enabled"`
}

// DatabaseConfig holds the primary SQLite store configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ExportConfig selects where Markdown snapshots are mirrored
type ExportConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool            `mapstructure:"enabled"`
	URL           string          `mapstructure:"url"`
	KVBucket      string          `mapstructure:"kv_bucket"`
	PublishEvents bool            `mapstructure:"publish_events"`
	JetStream     JetStreamConfig `mapstructure:"jetstream"`
}

// JetStreamConfig holds JetStream-specific configuration
type JetStreamConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
}

// DynamoDBConfig holds the DynamoDB snapshot table configuration
type DynamoDBConfig struct {
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// SessionConfig holds chat session behaviour
type SessionConfig struct {
	PageSize int `mapstructure:"page_size"`
	// Location names the time zone export timestamps are printed in; empty means local time
	Location string `mapstructure:"location"`
}

// ModelsConfig holds the model registry seed
type ModelsConfig struct {
	Default ModelSeedConfig `mapstructure:"default"`
}

// ModelSeedConfig is the configuration written into an empty model registry
type ModelSeedConfig struct {
	ID           string  `mapstructure:"id"`
	Name         string  `mapstructure:"name"`
	Provider     string  `mapstructure:"provider"`
	APIEndpoint  string  `mapstructure:"api_endpoint"`
	APIKey       string  `mapstructure:"api_key"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	ModelID      string  `mapstructure:"model_id"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	seed := entities.DefaultModelConfig()
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			CORSEnabled: true,
		},
		Database: DatabaseConfig{
			Path: constants.DefaultDBPath,
		},
		Export: ExportConfig{
			Backend: constants.BackendSQLite,
			Timeout: constants.SecondaryStoreTimeout,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			KVBucket:      constants.DefaultKVBucket,
			PublishEvents: true,
			JetStream: JetStreamConfig{
				Enabled:       false,
				RetentionDays: 7,
			},
		},
		DynamoDB: DynamoDBConfig{
			Table:  constants.DefaultExportsTable,
			Region: "us-east-1",
		},
		Session: SessionConfig{
			PageSize: constants.DefaultPageSize,
		},
		Models: ModelsConfig{
			Default: ModelSeedConfig{
				ID:           seed.ID,
				Name:         seed.Name,
				Provider:     seed.Provider,
				APIEndpoint:  seed.APIEndpoint,
				SystemPrompt: seed.SystemPrompt,
				ModelID:      seed.ModelID,
				Temperature:  seed.Temperature,
				MaxTokens:    seed.MaxTokens,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: constants.LogFormatText,
		},
	}
}

// Load loads configuration from files and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Environment variable support, e.g. RINGIL_MODELS_DEFAULT_API_KEY
	v.SetEnvPrefix("RINGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v, cfg)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay, we'll use defaults + env vars
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// registerDefaults tells viper about every key so AutomaticEnv can override
// keys that never appear in a config file.
func registerDefaults(v *viper.Viper, cfg *Config) {
	defaults := map[string]interface{}{
		"server.port":                   cfg.Server.Port,
		"server.host":                   cfg.Server.Host,
		"server.cors_enabled":           cfg.Server.CORSEnabled,
		"database.path":                 cfg.Database.Path,
		"export.backend":                cfg.Export.Backend,
		"export.timeout":                cfg.Export.Timeout,
		"nats.enabled":                  cfg.NATS.Enabled,
		"nats.url":                      cfg.NATS.URL,
		"nats.kv_bucket":                cfg.NATS.KVBucket,
		"nats.publish_events":           cfg.NATS.PublishEvents,
		"nats.jetstream.enabled":        cfg.NATS.JetStream.Enabled,
		"nats.jetstream.retention_days": cfg.NATS.JetStream.RetentionDays,
		"dynamodb.table":                cfg.DynamoDB.Table,
		"dynamodb.region":               cfg.DynamoDB.Region,
		"dynamodb.endpoint":             cfg.DynamoDB.Endpoint,
		"session.page_size":             cfg.Session.PageSize,
		"session.location":              cfg.Session.Location,
		"models.default.id":             cfg.Models.Default.ID,
		"models.default.name":           cfg.Models.Default.Name,
		"models.default.provider":       cfg.Models.Default.Provider,
		"models.default.api_endpoint":   cfg.Models.Default.APIEndpoint,
		"models.default.api_key":        cfg.Models.Default.APIKey,
		"models.default.system_prompt":  cfg.Models.Default.SystemPrompt,
		"models.default.model_id":       cfg.Models.Default.ModelID,
		"models.default.temperature":    cfg.Models.Default.Temperature,
		"models.default.max_tokens":     cfg.Models.Default.MaxTokens,
		"logging.level":                 cfg.Logging.Level,
		"logging.format":                cfg.Logging.Format,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := configutil.NewValidator().
		IntRange("server.port", c.Server.Port, 1, 65535).
		ValidateFilePath("database.path", c.Database.Path).
		OneOf("export.backend", c.Export.Backend, []string{
			constants.BackendSQLite, constants.BackendNATS, constants.BackendDynamoDB, constants.BackendMemory,
		}).
		RequiredDuration("export.timeout", c.Export.Timeout).
		RequiredInt("session.page_size", c.Session.PageSize).
		OneOf("logging.level", strings.ToLower(c.Logging.Level), []string{"debug", "info", "warn", "warning", "error", "fatal"}).
		OneOf("logging.format", c.Logging.Format, []string{constants.LogFormatText, constants.LogFormatJSON})

	if c.Export.Backend == constants.BackendNATS || c.NATS.Enabled {
		v.RequiredString("nats.url", c.NATS.URL)
	}
	if c.Export.Backend == constants.BackendNATS {
		v.RequiredString("nats.kv_bucket", c.NATS.KVBucket)
	}
	if c.Export.Backend == constants.BackendDynamoDB {
		v.RequiredString("dynamodb.table", c.DynamoDB.Table).
			RequiredString("dynamodb.region", c.DynamoDB.Region).
			ValidateURL("dynamodb.endpoint", c.DynamoDB.Endpoint)
	}

	_, locErr := c.Session.TimeLocation()
	v.Check("session.location", locErr == nil, "must name a known time zone")

	seed := c.Models.Default
	v.RequiredString("models.default.name", seed.Name).
		RequiredString("models.default.api_endpoint", seed.APIEndpoint).
		ValidateURL("models.default.api_endpoint", seed.APIEndpoint).
		FloatRange("models.default.temperature", seed.Temperature, entities.MinTemperature, entities.MaxTemperature).
		MinInt("models.default.max_tokens", seed.MaxTokens, entities.MinMaxTokens)

	return v.Result()
}

// TimeLocation resolves the configured export time zone
func (s SessionConfig) TimeLocation() (*time.Location, error) {
	if s.Location == "" || strings.EqualFold(s.Location, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", s.Location, err)
	}
	return loc, nil
}

// ModelConfig converts the seed into a registry entry
func (m ModelSeedConfig) ModelConfig() *entities.ModelConfig {
	return &entities.ModelConfig{
		ID:           m.ID,
		Name:         m.Name,
		Provider:     m.Provider,
		APIEndpoint:  m.APIEndpoint,
		APIKey:       m.APIKey,
		SystemPrompt: m.SystemPrompt,
		ModelID:      m.ModelID,
		Temperature:  m.Temperature,
		MaxTokens:    m.MaxTokens,
		Enabled:      true,
	}
}
