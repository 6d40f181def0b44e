package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/findirfin/ringil/internal/adapters/messaging/nats"
	"github.com/findirfin/ringil/internal/domain/ports"
)

func newEventsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow change events published over NATS",
	}
	cmd.AddCommand(newEventsWatchCommand(a))
	return cmd
}

func newEventsWatchCommand(a *app) *cobra.Command {
	subjects := []string{"conversation.>", ports.SubjectModelsUpdated}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print change events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			adapter, err := nats.NewAdapter(nats.Config{URL: cfg.NATS.URL, Name: "ringil-watch"}, a.logger(cmd, cfg))
			if err != nil {
				return err
			}
			defer adapter.Close()

			out := cmd.OutOrStdout()
			status := adapter.ConnectionStatus()
			fmt.Fprintf(out, "Watching %v on %v\n", subjects, status["url"])

			var mu sync.Mutex
			handler := func(_ context.Context, subject string, data []byte) error {
				var event ports.ChangeEvent
				if err := json.Unmarshal(data, &event); err != nil {
					return fmt.Errorf("failed to decode event on %s: %w", subject, err)
				}

				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "%s %-22s", event.Timestamp.Format("15:04:05"), event.Type)
				if event.ConversationID != 0 {
					fmt.Fprintf(out, " %d %q", event.ConversationID, event.Title)
				}
				fmt.Fprintf(out, " (%d)\n", event.MessageCount)
				return nil
			}

			ctx := cmd.Context()
			for _, subject := range subjects {
				if err := adapter.Subscribe(ctx, subject, handler); err != nil {
					return err
				}
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&subjects, "subject", subjects, "Subjects to follow")
	return cmd
}
