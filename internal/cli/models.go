package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/pkg/factory"
)

func newModelsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "Manage model configurations",
	}

	cmd.AddCommand(
		newModelsListCommand(a),
		newModelsAddCommand(a),
		newModelsRemoveCommand(a),
		newModelsUseCommand(a),
	)
	return cmd
}

func newModelsListCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List model configurations; the first enabled one is the default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				configs := c.Models.ListEnabled()
				if all {
					configs = c.Models.List()
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tMODEL\tENDPOINT\tENABLED\tAPI KEY")
				for _, cfg := range configs {
					key := "missing"
					if cfg.HasAPIKey() {
						key = "set"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", cfg.ID, cfg.Name, cfg.ModelID, cfg.APIEndpoint, cfg.Enabled, key)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include disabled configurations")
	return cmd
}

func newModelsAddCommand(a *app) *cobra.Command {
	cfg := entities.DefaultModelConfig()
	cfg.ID = ""
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a model configuration",
		Example: `  ringil models add --name Grok --endpoint https://api.x.ai/v1/chat/completions \
    --key "$XAI_API_KEY" --model grok-2-latest --temperature 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Enabled = !disabled
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				saved, err := c.Models.Upsert(ctx, cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved model %s (%s)\n", saved.Name, saved.ID)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.ID, "id", "", "Replace the configuration with this id (default: new id)")
	flags.StringVar(&cfg.Name, "name", "", "Display name")
	flags.StringVar(&cfg.Provider, "provider", "", "Provider label")
	flags.StringVar(&cfg.APIEndpoint, "endpoint", cfg.APIEndpoint, "Chat completions URL")
	flags.StringVar(&cfg.APIKey, "key", "", "API key")
	flags.StringVar(&cfg.SystemPrompt, "system-prompt", cfg.SystemPrompt, "System prompt sent first")
	flags.StringVar(&cfg.ModelID, "model", cfg.ModelID, "Provider model name")
	flags.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature (0-2)")
	flags.IntVar(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, "Maximum reply tokens (at least 100)")
	flags.BoolVar(&disabled, "disabled", false, "Store the configuration disabled")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newModelsRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a model configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				if err := c.Models.Remove(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed model %s\n", args[0])
				return nil
			})
		},
	}
}

func newModelsUseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a model the default for new sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				cfg, err := c.Models.Promote(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Using %s by default\n", cfg.Name)
				return nil
			})
		},
	}
}
