package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findirfin/ringil/internal/adapters/storage/memory"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/logutil"
	"github.com/findirfin/ringil/pkg/config"
)

type echoProvider struct{}

func (echoProvider) Complete(_ context.Context, request *ports.CompletionRequest) (*ports.CompletionResponse, error) {
	last := request.Messages[len(request.Messages)-1]
	return &ports.CompletionResponse{Content: "echo: " + last.Content, FinishReason: "stop"}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "ringil.db")
	cfg.Export.Backend = constants.BackendMemory
	cfg.Models.Default.APIKey = "sk-test"
	return *cfg
}

func initialize(t *testing.T, cfg config.Config) *ServiceContainer {
	t.Helper()
	container, err := NewServiceFactory(logutil.Discard()).Initialize(context.Background(), InitializationOptions{
		Config:                cfg,
		ValidateConfiguration: true,
		EnableHealthChecks:    true,
		EnableWebSocket:       true,
		Completion:            echoProvider{},
	})
	require.NoError(t, err)
	return container
}

func TestInitialize_WiresServices(t *testing.T) {
	container := initialize(t, testConfig(t))
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	require.NotNil(t, container.Store)
	require.NotNil(t, container.Models)
	require.NotNil(t, container.Hub)
	assert.Nil(t, container.Messaging)

	_, isMemory := container.Secondary.(*memory.SecondaryStore)
	assert.True(t, isMemory)
	assert.NotNil(t, container.Exports)

	checks := container.HealthChecks()
	assert.Contains(t, checks, "database")
	assert.NotContains(t, checks, "nats")

	models := container.Models.ListEnabled()
	require.Len(t, models, 1)
	assert.Equal(t, "GPT-4", models[0].Name)
}

func TestInitialize_SQLiteSecondary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Backend = constants.BackendSQLite

	container := initialize(t, cfg)
	t.Cleanup(func() { _ = container.Shutdown(context.Background()) })

	ctx := context.Background()
	_, err := container.Store.Send(ctx, "Hi there")
	require.NoError(t, err)
	require.NoError(t, container.Store.Flush(ctx))

	records, err := container.Exports.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Content, "echo: Hi there")
}

func TestInitialize_StateSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first := initialize(t, cfg)
	reply, err := first.Store.Send(ctx, "Remember me")
	require.NoError(t, err)
	assert.Equal(t, "echo: Remember me", reply.Text)
	require.NoError(t, first.Shutdown(ctx))

	second := initialize(t, cfg)
	t.Cleanup(func() { _ = second.Shutdown(context.Background()) })

	list := second.Store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Remember me", list[0].Title)
	assert.Equal(t, 3, list[0].MessageCount())
}

func TestInitialize_InvalidConfiguration(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Backend = "s3"

	_, err := NewServiceFactory(logutil.Discard()).Initialize(context.Background(), InitializationOptions{
		Config:                cfg,
		ValidateConfiguration: true,
		Completion:            echoProvider{},
	})
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = NewServiceFactory(logutil.Discard()).Initialize(context.Background(), InitializationOptions{
		Config:     cfg,
		Completion: echoProvider{},
	})
	assert.ErrorContains(t, err, `unknown export backend "s3"`)
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(config.LoggingConfig{Level: "debug", Format: constants.LogFormatJSON})
	assert.True(t, logger.Enabled(logutil.DEBUG))

	logger = NewLogger(config.LoggingConfig{Level: "warn"})
	assert.False(t, logger.Enabled(logutil.INFO))
}
