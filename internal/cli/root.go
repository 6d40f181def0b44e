package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/factory"
	"github.com/findirfin/ringil/internal/pkg/logutil"
	"github.com/findirfin/ringil/pkg/config"
	"github.com/findirfin/ringil/pkg/tokenizer"
)

// Option customises the CLI, mainly for tests
type Option func(*app)

// WithCompletion replaces the OpenAI-compatible provider adapter
func WithCompletion(port ports.CompletionPort) Option {
	return func(a *app) { a.completion = port }
}

// WithTokenCounter replaces the tiktoken-backed counter used by chats show
func WithTokenCounter(fn func(model string) tokenizer.Counter) Option {
	return func(a *app) { a.counter = fn }
}

type app struct {
	configPath string
	verbose    bool
	completion ports.CompletionPort
	counter    func(model string) tokenizer.Counter
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (a *app) logger(cmd *cobra.Command, cfg *config.Config) *logutil.Logger {
	if !a.verbose {
		return logutil.Discard()
	}
	return logutil.NewLogger(logutil.LogConfig{
		Level:       logutil.ParseLevel(cfg.Logging.Level),
		Format:      cfg.Logging.Format,
		ServiceName: constants.ServiceName,
		Output:      cmd.ErrOrStderr(),
	})
}

// withServices opens every store for the length of fn and flushes background
// writes before returning.
func (a *app) withServices(cmd *cobra.Command, fn func(ctx context.Context, c *factory.ServiceContainer) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := a.logger(cmd, cfg)
	container, err := factory.NewServiceFactory(logger).Initialize(ctx, factory.InitializationOptions{
		Config:     *cfg,
		Completion: a.completion,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer container.Shutdown(context.WithoutCancel(ctx))

	return fn(ctx, container)
}

// NewRootCommand builds the ringil command tree
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{counter: tokenizer.ForModel}
	for _, opt := range opts {
		opt(a)
	}

	rootCmd := &cobra.Command{
		Use:   "ringil",
		Short: "Chat with OpenAI-compatible models from the terminal",
		Long: `Ringil keeps a history of chats with any OpenAI-compatible endpoint,
mirrors every conversation as Markdown and lets you search, rename and export them.`,
		Version:       constants.ServiceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to configuration file (default: ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(
		newChatsCommand(a),
		newSendCommand(a),
		newModelsCommand(a),
		newMigrateCommand(a),
		newEventsCommand(a),
	)

	return rootCmd
}

// Execute runs the CLI until completion or an interrupt
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
