package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/pkg/factory"
)

func newSendCommand(a *app) *cobra.Command {
	var (
		chatID  string
		modelID string
		raw     bool
	)

	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send a message and print the reply",
		Long: `Send appends the text to a conversation and waits for the model's reply.
Without --chat a new conversation is started.`,
		Example: `  ringil send "What is the capital of Portugal?"
  ringil send --chat 1709647629000 "And of Spain?"
  ringil send --model default-gpt4 "Hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				var target int64
				if chatID != "" {
					id, err := parseID(chatID)
					if err != nil {
						return err
					}
					target = id
				}
				if modelID != "" {
					if _, err := c.Store.SelectModel(ctx, modelID); err != nil {
						return err
					}
				}

				send := c.Store.Send
				if target != 0 {
					send = func(ctx context.Context, text string) (*entities.Message, error) {
						return c.Store.SendTo(ctx, target, text)
					}
				}
				msg, err := send(ctx, text)
				if err != nil {
					if msg != nil {
						// the note is already in the conversation
						errOut := cmd.ErrOrStderr()
						fmt.Fprintln(errOut, styled(errOut, errorStyle, msg.Text))
					}
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, strings.TrimRight(renderMarkdown(out, msg.Text, raw), "\n"))
				if conv, ok := c.Store.Active(); ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "\n(conversation %d: %s)\n", conv.ID, conv.Title)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&chatID, "chat", "", "Continue this conversation")
	cmd.Flags().StringVar(&modelID, "model", "", "Model configuration to use")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print plain Markdown without terminal styling")
	return cmd
}
