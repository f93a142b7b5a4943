package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/matheus3301/crewchat/internal/config"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/session"
	"github.com/matheus3301/crewchat/internal/tui/client"
	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	var replyTo string
	var noWait bool
	cmd := &cobra.Command{
		Use:   "send <conversation> <text...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.SendMessage(ctx, &rpc.SendMessageRequest{
					ConversationID:   args[0],
					Content:          strings.Join(args[1:], " "),
					ReplyToMessageID: replyTo,
					Wait:             !noWait,
				})
				if err != nil {
					return rpc.FromStatus(err)
				}
				return printDelivery(resp)
			})
		},
	}
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "id of the message being replied to")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return as soon as the message is pending")
	return cmd
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <conversation> <idempotency-key>",
		Short: "Retry a failed message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.RetryMessage(ctx, &rpc.RetryMessageRequest{
					ConversationID: args[0],
					IdempotencyKey: args[1],
					Wait:           true,
				})
				if err != nil {
					return rpc.FromStatus(err)
				}
				return printDelivery(resp)
			})
		},
	}
}

func printDelivery(resp *rpc.SendMessageResponse) error {
	if jsonFlag {
		return outputJSON(resp)
	}
	m := resp.Message
	switch {
	case resp.Failure != nil:
		fmt.Printf("failed  %s  (attempt %d)\n", m.IdempotencyKey, m.Attempt)
		fmt.Printf("retry with: crewctl retry %s %s\n", m.ConversationID, m.IdempotencyKey)
		return resp.Failure.Err()
	case m.Status == message.StatusPending:
		fmt.Printf("pending %s\n", m.IdempotencyKey)
	default:
		fmt.Printf("sent    %s  at %s\n", m.ID, m.CreatedAt.Local().Format(time.Kitchen))
	}
	return nil
}

func historyCmd() *cobra.Command {
	var before string
	var limit int
	cmd := &cobra.Command{
		Use:   "history <conversation>",
		Short: "List confirmed messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.ListMessages(ctx, &rpc.ListMessagesRequest{
					ConversationID: args[0],
					Before:         before,
					Limit:          limit,
				})
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				for _, m := range resp.Messages {
					fmt.Printf("%s  %-12s %-16s %s\n",
						m.CreatedAt.Local().Format("2006-01-02 15:04"), m.ID, m.SenderDisplayName, message.Preview(m.Content, 80))
				}
				if resp.HasMore && len(resp.Messages) > 0 {
					fmt.Printf("(more: --before %s)\n", resp.Messages[0].ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "only messages older than this message id")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	return cmd
}

func feedCmd() *cobra.Command {
	var byDay bool
	cmd := &cobra.Command{
		Use:   "feed <conversation>",
		Short: "Show a conversation grouped by author with time separators",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := feedOptions(byDay)
			if err != nil {
				return err
			}
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.ListMessages(ctx, &rpc.ListMessagesRequest{ConversationID: args[0], Limit: 200})
				if err != nil {
					return rpc.FromStatus(err)
				}
				items := feed.Build(resp.Messages, time.Now(), opts)
				if jsonFlag {
					return outputJSON(items)
				}
				renderFeed(os.Stdout, items)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&byDay, "day", false, "separate by calendar day instead of elapsed time")
	return cmd
}

func watchCmd() *cobra.Command {
	var byDay bool
	cmd := &cobra.Command{
		Use:   "watch <conversation>",
		Short: "Stream a conversation until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := feedOptions(byDay)
			if err != nil {
				return err
			}
			c, _, err := connect(true)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stream, err := c.Messaging.WatchConversation(cmd.Context(), &rpc.WatchConversationRequest{ConversationID: args[0]})
			if err != nil {
				return rpc.FromStatus(err)
			}
			for {
				snap, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return rpc.FromStatus(err)
				}
				if snap.Failure != nil {
					return fmt.Errorf("subscription ended: %w", snap.Failure.Err())
				}
				if jsonFlag {
					if err := outputJSON(snap); err != nil {
						return err
					}
					continue
				}
				fmt.Printf("\n=== %s  %s ===\n", snap.ConversationID, snap.At.Local().Format(time.TimeOnly))
				renderFeed(os.Stdout, feed.Build(snap.Messages, snap.At, opts))
			}
		},
	}
	cmd.Flags().BoolVar(&byDay, "day", false, "separate by calendar day instead of elapsed time")
	return cmd
}

func searchCmd() *cobra.Command {
	var in string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search message content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.SearchMessages(ctx, &rpc.SearchMessagesRequest{
					Query:          strings.Join(args, " "),
					ConversationID: in,
					Limit:          limit,
				})
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				if len(resp.Results) == 0 {
					fmt.Println("No results.")
					return nil
				}
				for _, r := range resp.Results {
					fmt.Printf("%-24s %-16s %s\n", r.Message.ConversationID, r.Message.SenderDisplayName, r.Snippet)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "limit to one conversation")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}

// feedOptions reads the grouping thresholds from the config file.
func feedOptions(byDay bool) (feed.Options, error) {
	opts := feed.DefaultOptions()
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return opts, err
	}
	opts.GroupGap = cfg.Feed.GroupGap.Duration
	opts.SeparatorGap = cfg.Feed.SeparatorGap.Duration
	if byDay {
		opts.Mode = feed.SeparatorCalendarDay
	}
	return opts, nil
}

func renderFeed(w io.Writer, items []feed.Item) {
	for _, it := range items {
		if it.Kind == feed.ItemSeparator {
			fmt.Fprintf(w, "\n  ── %s ──\n", it.Label)
			continue
		}
		m := it.Message
		if it.StartsGroup {
			fmt.Fprintf(w, "%s  %s\n", m.SenderDisplayName, m.EffectiveTime().Local().Format(time.Kitchen))
		}
		var mark string
		switch m.Status {
		case message.StatusPending:
			mark = " (sending)"
		case message.StatusFailed:
			mark = fmt.Sprintf(" (failed: retry %s)", m.IdempotencyKey)
		}
		fmt.Fprintf(w, "    %s%s\n", m.Content, mark)
	}
}
