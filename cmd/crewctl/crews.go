package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/tui/client"
	"github.com/matheus3301/crewchat/internal/tui/ui"
	"github.com/spf13/cobra"
)

func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations visible to the user",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.ListConversations(ctx, &rpc.ListConversationsRequest{})
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				now := time.Now()
				for _, conv := range resp.Conversations {
					last := "-"
					if !conv.LastMessageAt.IsZero() {
						last = feed.ListLabel(conv.LastMessageAt, now, time.Local)
					}
					fmt.Printf("%-32s %-20s %-10s %s\n", conv.ID, conv.Title, last, message.Preview(conv.LastMessagePreview, 40))
				}
				return nil
			})
		},
	}
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <crew> [channel]",
		Short: "Open a crew channel, creating the crew on first use",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &rpc.OpenCrewChannelRequest{CrewID: args[0]}
			if len(args) == 2 {
				req.Channel = args[1]
			}
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.OpenCrewChannel(ctx, req)
				if err != nil {
					return rpc.FromStatus(err)
				}
				return printConversation(resp.Conversation)
			})
		},
	}
}

func dmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dm <user>",
		Short: "Open a direct conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.OpenDirect(ctx, &rpc.OpenDirectRequest{UserID: args[0]})
				if err != nil {
					return rpc.FromStatus(err)
				}
				return printConversation(resp.Conversation)
			})
		},
	}
}

func printConversation(conv message.Conversation) error {
	if jsonFlag {
		return outputJSON(conv)
	}
	fmt.Printf("%s  %s\n", conv.ID, conv.Title)
	return nil
}

func inviteCmd() *cobra.Command {
	var ttl time.Duration
	var showQR bool
	cmd := &cobra.Command{
		Use:   "invite <crew>",
		Short: "Create an invite token for a crew",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.CreateInvite(ctx, &rpc.CreateInviteRequest{
					CrewID:     args[0],
					TTLSeconds: int64(ttl / time.Second),
				})
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				fmt.Println(resp.Token)
				fmt.Printf("expires %s\n", resp.ExpiresAt.Local().Format(time.RFC1123))
				if showQR {
					qr, err := ui.RenderQR(resp.Token, "  ")
					if err != nil {
						return err
					}
					fmt.Print(qr)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "invite lifetime (default 7 days)")
	cmd.Flags().BoolVar(&showQR, "qr", false, "also print the token as a QR code")
	return cmd
}

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <invite-token>",
		Short: "Join a crew with an invite token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.JoinCrew(ctx, &rpc.JoinCrewRequest{InviteToken: args[0]})
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				fmt.Printf("joined %s as %s\n", resp.Member.CrewID, resp.Member.Role)
				fmt.Printf("%s  %s\n", resp.Conversation.ID, resp.Conversation.Title)
				return nil
			})
		},
	}
}

func membersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <crew>",
		Short: "List crew members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.ListMembers(ctx, &rpc.ListMembersRequest{CrewID: args[0]})
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				for _, m := range resp.Members {
					fmt.Printf("%-20s %-20s %-8s joined %s\n", m.UserID, m.DisplayName, m.Role, m.JoinedAt.Local().Format(time.DateOnly))
				}
				return nil
			})
		},
	}
}
