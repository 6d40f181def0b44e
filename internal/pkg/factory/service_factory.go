package factory

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/findirfin/ringil/internal/adapters/api/websocket"
	"github.com/findirfin/ringil/internal/adapters/llm/openai"
	"github.com/findirfin/ringil/internal/adapters/messaging/nats"
	"github.com/findirfin/ringil/internal/adapters/storage/dynamodb"
	"github.com/findirfin/ringil/internal/adapters/storage/memory"
	"github.com/findirfin/ringil/internal/adapters/storage/sqlite"
	"github.com/findirfin/ringil/internal/domain/export"
	"github.com/findirfin/ringil/internal/domain/metrics"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/domain/services"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/httputil"
	"github.com/findirfin/ringil/internal/pkg/logutil"
	"github.com/findirfin/ringil/pkg/config"
)

// ServiceContainer holds all initialized services
type ServiceContainer struct {
	Database   *sqlite.Adapter
	Secondary  ports.SecondaryStore
	Exports    ports.ExportReader // nil when the backend cannot read snapshots back
	Messaging  *nats.Adapter      // nil when NATS is not configured
	Hub        *websocket.Hub     // nil unless requested
	Completion ports.CompletionPort
	Metrics    *metrics.Collector
	Models     *services.ModelRegistry
	Dispatcher *services.CompletionDispatcher
	Store      *services.ConversationStore
	Logger     *logutil.Logger
}

// InitializationOptions holds options for service initialization
type InitializationOptions struct {
	Config                config.Config
	ValidateConfiguration bool
	EnableHealthChecks    bool
	// EnableWebSocket creates the WebSocket hub and subscribes it to change events
	EnableWebSocket bool
	// Completion replaces the OpenAI-compatible adapter, mainly for tests
	Completion ports.CompletionPort
	HTTPClient *http.Client
	Logger     *logutil.Logger
}

// ServiceFactory provides methods for creating and initializing services
type ServiceFactory struct {
	logger *logutil.Logger
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(logger *logutil.Logger) *ServiceFactory {
	if logger == nil {
		logger = logutil.NewDefaultLogger()
	}

	return &ServiceFactory{
		logger: logger,
	}
}

// NewLogger builds the application logger from configuration
func NewLogger(cfg config.LoggingConfig) *logutil.Logger {
	return logutil.NewLogger(logutil.LogConfig{
		Level:       logutil.ParseLevel(cfg.Level),
		Format:      cfg.Format,
		ServiceName: constants.ServiceName,
	})
}

// Initialize creates and initializes all services based on configuration.
// On failure everything opened so far is closed again.
func (sf *ServiceFactory) Initialize(ctx context.Context, opts InitializationOptions) (container *ServiceContainer, err error) {
	if opts.Logger != nil {
		sf.logger = opts.Logger
	}
	cfg := &opts.Config

	sf.logger.Info("Starting service initialization", logutil.Fields{
		"validate_config":      opts.ValidateConfiguration,
		"enable_health_checks": opts.EnableHealthChecks,
		"export_backend":       cfg.Export.Backend,
		"nats_enabled":         cfg.NATS.Enabled,
	})

	// Validate configuration if requested
	if opts.ValidateConfiguration {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		sf.logger.Info("Configuration validation passed")
	}

	container = &ServiceContainer{
		Logger:  sf.logger,
		Metrics: metrics.NewCollector(),
	}
	defer func() {
		if err != nil {
			_ = container.Shutdown(context.WithoutCancel(ctx))
			container = nil
		}
	}()

	// Initialize adapters (ports implementations)
	if err := sf.initializeAdapters(ctx, cfg, opts, container); err != nil {
		return container, fmt.Errorf("failed to initialize adapters: %w", err)
	}

	// Initialize domain services
	if err := sf.initializeDomainServices(ctx, cfg, container); err != nil {
		return container, fmt.Errorf("failed to initialize domain services: %w", err)
	}

	// Perform health checks if enabled
	if opts.EnableHealthChecks {
		if err := sf.performHealthChecks(ctx, container); err != nil {
			return container, fmt.Errorf("health checks failed: %w", err)
		}
		sf.logger.Info("All health checks passed")
	}

	sf.logger.Info("Service initialization completed successfully")
	return container, nil
}

// initializeAdapters creates and configures all adapter instances
func (sf *ServiceFactory) initializeAdapters(ctx context.Context, cfg *config.Config, opts InitializationOptions, container *ServiceContainer) error {
	if err := sf.initializeStorageAdapter(ctx, cfg, container); err != nil {
		return fmt.Errorf("failed to initialize storage adapter: %w", err)
	}

	if err := sf.initializeMessagingAdapter(cfg, container); err != nil {
		return fmt.Errorf("failed to initialize messaging adapter: %w", err)
	}

	if err := sf.initializeSecondaryStore(ctx, cfg, container); err != nil {
		return fmt.Errorf("failed to initialize secondary store: %w", err)
	}

	if opts.EnableWebSocket {
		container.Hub = websocket.NewHub(sf.logger)
	}

	container.Completion = opts.Completion
	if container.Completion == nil {
		container.Completion = openai.NewAdapter(opts.HTTPClient)
	}
	return nil
}

// initializeStorageAdapter opens and migrates the primary SQLite database
func (sf *ServiceFactory) initializeStorageAdapter(ctx context.Context, cfg *config.Config, container *ServiceContainer) error {
	sf.logger.Info("Initializing storage adapter", logutil.Fields{
		"type": constants.BackendSQLite,
		"path": cfg.Database.Path,
	})

	db, err := sqlite.NewAdapter(cfg.Database.Path)
	if err != nil {
		return err
	}
	container.Database = db

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}

// initializeMessagingAdapter connects to NATS when events or the KV backend need it
func (sf *ServiceFactory) initializeMessagingAdapter(cfg *config.Config, container *ServiceContainer) error {
	useKV := cfg.Export.Backend == constants.BackendNATS
	if !cfg.NATS.Enabled && !useKV {
		return nil
	}

	sf.logger.Info("Initializing messaging adapter", logutil.Fields{
		"type":      "nats",
		"url":       cfg.NATS.URL,
		"jetstream": cfg.NATS.JetStream.Enabled,
		"kv":        useKV,
	})

	natsCfg := nats.Config{
		URL:           cfg.NATS.URL,
		EnableStream:  cfg.NATS.JetStream.Enabled,
		RetentionDays: cfg.NATS.JetStream.RetentionDays,
	}
	if useKV {
		natsCfg.KVBucket = cfg.NATS.KVBucket
	}

	adapter, err := nats.NewAdapter(natsCfg, sf.logger)
	if err != nil {
		return err
	}
	container.Messaging = adapter
	return nil
}

// initializeSecondaryStore picks the backend Markdown snapshots are mirrored to
func (sf *ServiceFactory) initializeSecondaryStore(ctx context.Context, cfg *config.Config, container *ServiceContainer) error {
	sf.logger.Info("Initializing secondary store", logutil.Fields{"backend": cfg.Export.Backend})

	switch cfg.Export.Backend {
	case constants.BackendSQLite, "":
		store := container.Database.Exports()
		container.Secondary, container.Exports = store, store

	case constants.BackendNATS:
		store, err := container.Messaging.Exports(cfg.NATS.KVBucket)
		if err != nil {
			return err
		}
		container.Secondary, container.Exports = store, store

	case constants.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		if cfg.DynamoDB.Endpoint != "" {
			awsCfg.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
		}
		store, err := dynamodb.NewFromConfig(awsCfg, cfg.DynamoDB.Table)
		if err != nil {
			return err
		}
		container.Secondary, container.Exports = store, store

	case constants.BackendMemory:
		store := memory.NewSecondaryStore()
		container.Secondary, container.Exports = store, store

	default:
		return fmt.Errorf("unknown export backend %q", cfg.Export.Backend)
	}
	return nil
}

// initializeDomainServices creates domain services with proper dependencies
func (sf *ServiceFactory) initializeDomainServices(ctx context.Context, cfg *config.Config, container *ServiceContainer) error {
	loc, err := cfg.Session.TimeLocation()
	if err != nil {
		return err
	}

	publisher := container.publisher(cfg)

	// Model registry first (dependency for other services)
	container.Models = services.NewModelRegistry(container.Database, cfg.Models.Default.ModelConfig(), sf.logger)
	if publisher != nil {
		container.Models.SetPublisher(publisher)
	}
	if err := container.Models.Load(ctx); err != nil {
		return fmt.Errorf("failed to load model registry: %w", err)
	}

	container.Dispatcher = services.NewCompletionDispatcher(container.Completion,
		services.WithDispatcherLogger(sf.logger),
		services.WithDispatcherMetrics(container.Metrics),
	)

	opts := []services.StoreOption{
		services.WithSecondaryStore(container.Secondary),
		services.WithStoreLogger(sf.logger),
		services.WithStoreMetrics(container.Metrics),
		services.WithRenderer(export.NewRenderer(loc)),
		services.WithPageSize(cfg.Session.PageSize),
		services.WithBackgroundTimeout(cfg.Export.Timeout),
	}
	if publisher != nil {
		opts = append(opts, services.WithEventPublisher(publisher))
	}
	container.Store = services.NewConversationStore(container.Database, container.Models, container.Dispatcher, opts...)

	if err := container.Store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	return nil
}

// publisher combines every configured change event sink
func (container *ServiceContainer) publisher(cfg *config.Config) ports.EventPublisher {
	var sinks ports.MultiPublisher
	if container.Messaging != nil && cfg.NATS.PublishEvents {
		sinks = append(sinks, container.Messaging)
	}
	if container.Hub != nil {
		sinks = append(sinks, container.Hub)
	}

	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return sinks
	}
}

// HealthChecks returns a readiness check per external dependency
func (container *ServiceContainer) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if container.Database != nil {
		checks["database"] = container.Database.Ping
	}
	if container.Messaging != nil {
		checks["nats"] = func(context.Context) error { return container.Messaging.Ping() }
	}
	return checks
}

// performHealthChecks verifies all services are functioning correctly
func (sf *ServiceFactory) performHealthChecks(ctx context.Context, container *ServiceContainer) error {
	sf.logger.Info("Performing health checks")

	healthCtx, cancel := httputil.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()

	for name, check := range container.HealthChecks() {
		if err := check(healthCtx); err != nil {
			return fmt.Errorf("%s health check failed: %w", name, err)
		}
		sf.logger.Debug("Health check passed", logutil.Fields{"dependency": name})
	}
	return nil
}

// Shutdown waits for background writes, then closes every connection
func (container *ServiceContainer) Shutdown(ctx context.Context) error {
	if container.Logger != nil {
		container.Logger.Info("Shutting down services")
	}

	if container.Store != nil {
		flushCtx, cancel := httputil.WithTimeout(ctx, constants.GracefulShutdownTimeout)
		if err := container.Store.Flush(flushCtx); err != nil {
			container.warn("Background writes did not finish", err)
		}
		cancel()
	}

	if container.Hub != nil {
		container.Hub.Close()
	}

	// Close messaging connection
	if container.Messaging != nil {
		if err := container.Messaging.Close(); err != nil {
			container.warn("Error closing messaging", err)
		}
	}

	// Close storage connection
	if container.Database != nil {
		if err := container.Database.Close(); err != nil {
			container.warn("Error closing storage", err)
		}
	}

	if container.Logger != nil {
		container.Logger.Info("Service shutdown completed")
	}
	return nil
}

func (container *ServiceContainer) warn(msg string, err error) {
	if container.Logger != nil {
		container.Logger.Warn(msg, logutil.Fields{"error": err.Error()})
	}
}
