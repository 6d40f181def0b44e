package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/pkg/factory"
	"github.com/findirfin/ringil/pkg/tokenizer"
)

func newChatsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chats",
		Aliases: []string{"chat"},
		Short:   "Browse and manage conversations",
	}

	cmd.AddCommand(
		newChatsListCommand(a),
		newChatsSearchCommand(a),
		newChatsShowCommand(a),
		newChatsExportCommand(a),
		newChatsRenameCommand(a),
		newChatsDeleteCommand(a),
		newChatsNewCommand(a),
	)
	return cmd
}

type listOptions struct {
	search string
	offset int
	limit  int
	all    bool
}

func newChatsListCommand(a *app) *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently edited first",
		Example: `  # The five most recent conversations
  ringil chats list

  # Everything
  ringil chats list --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				return runList(cmd, c, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.search, "search", "", "Only conversations whose title or messages contain this text")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Skip this many conversations")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of conversations (default: session page size)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Show every conversation")
	return cmd
}

func newChatsSearchCommand(a *app) *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search conversation titles and messages (case-insensitive)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.search = strings.Join(args, " ")
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				return runList(cmd, c, opts)
			})
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of results (default: session page size)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Show every match")
	return cmd
}

func runList(cmd *cobra.Command, c *factory.ServiceContainer, opts listOptions) error {
	out := cmd.OutOrStdout()

	c.Store.SetShowAll(opts.all)
	matches := slices.Collect(c.Store.Search(opts.search))
	window := c.Store.Window(matches, opts.offset, opts.limit)

	if len(window) == 0 {
		fmt.Fprintln(out, "No conversations found.")
		return nil
	}

	for _, conv := range window {
		fmt.Fprintln(out, styled(out, titleStyle, fmt.Sprintf("[%d] %s", conv.ID, conv.Title)))
		fmt.Fprintln(out, styled(out, dimStyle, fmt.Sprintf("  %d messages | edited %s", conv.MessageCount(), conv.LastEdited.Format("2006-01-02 15:04:05"))))
	}

	if len(window) < len(matches) {
		fmt.Fprintln(out, styled(out, dimStyle, fmt.Sprintf("\nShowing %d of %d conversations (use --all to see everything)", len(window), len(matches))))
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation id %q", raw)
	}
	return id, nil
}

func newChatsShowCommand(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				conv, err := c.Store.LoadConversation(ctx, id)
				if err != nil {
					return err
				}
				markdown, _, err := c.Store.Export(id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderMarkdown(out, markdown, raw))

				if model, err := c.Store.ActiveModel(); err == nil {
					tokens := promptTokens(a.counter(model.ModelID), conv, model)
					fmt.Fprintf(out, "\n~%d prompt tokens for %s\n", tokens, model.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print plain Markdown without terminal styling")
	return cmd
}

// promptTokens estimates what sending the conversation as-is would cost
func promptTokens(counter tokenizer.Counter, conv *entities.Conversation, model *entities.ModelConfig) int {
	history := make([]entities.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if !m.IsSystem() {
			history = append(history, m)
		}
	}
	return tokenizer.CountConversationTokens(counter, history, model.SystemPrompt)
}

func newChatsExportCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a conversation to a Markdown file",
		Example: `  # Write chat-<title>-<id>.md into the current directory
  ringil chats export 1709647629000

  # Print to stdout
  ringil chats export 1709647629000 -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				markdown, filename, err := c.Store.Export(id)
				if err != nil {
					return err
				}

				if output == "-" {
					fmt.Fprint(cmd.OutOrStdout(), markdown)
					return nil
				}

				path := output
				if path == "" {
					path = filename
				} else if info, err := os.Stat(path); err == nil && info.IsDir() {
					path = filepath.Join(path, filename)
				}

				if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File or directory to write to, - for stdout")
	return cmd
}

func newChatsRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Give a conversation an explicit title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				if err := c.Store.RenameConversation(ctx, id, title); err != nil {
					return err
				}
				conv, err := c.Store.Get(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %d to %q\n", id, conv.Title)
				return nil
			})
		},
	}
}

func newChatsDeleteCommand(a *app) *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its Markdown snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				conv, err := c.Store.Get(id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !skipConfirm {
					fmt.Fprintf(out, "Delete conversation '%s' (ID: %d)? [y/N]: ", conv.Title, id)
					answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					if answer = strings.TrimSpace(answer); answer != "y" && answer != "Y" {
						fmt.Fprintln(out, "Cancelled.")
						return nil
					}
				}

				if err := c.Store.DeleteConversation(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted conversation %d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

func newChatsNewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start an empty conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd, func(ctx context.Context, c *factory.ServiceContainer) error {
				conv, err := c.Store.StartNewChat(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started conversation %d\n", conv.ID)
				return nil
			})
		},
	}
}
