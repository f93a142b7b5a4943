package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/tui/client"
	"github.com/spf13/cobra"
)

func presenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Show or change who is online in a crew",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "set <crew> <online|offline>",
		Short:     "Record the user as online or offline",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"online", "offline"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var online bool
			switch args[1] {
			case "online":
				online = true
			case "offline":
			default:
				return fmt.Errorf("status must be online or offline, got %q", args[1])
			}
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Presence.SetOnlineStatus(ctx, &rpc.SetOnlineStatusRequest{CrewID: args[0], Online: online})
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				printPresence([]presence.Record{resp.Record})
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <crew>",
		Short: "List presence records of a crew",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, true, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Presence.ListPresence(ctx, &rpc.ListPresenceRequest{CrewID: args[0]})
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				printPresence(resp.Records)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "watch <crew>",
		Short: "Stream presence changes until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := connect(true)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stream, err := c.Presence.WatchPresence(cmd.Context(), &rpc.WatchPresenceRequest{CrewID: args[0]})
			if err != nil {
				return rpc.FromStatus(err)
			}
			for {
				resp, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return rpc.FromStatus(err)
				}
				if jsonFlag {
					if err := outputJSON(resp); err != nil {
						return err
					}
					continue
				}
				fmt.Printf("\n=== %s  %s ===\n", args[0], time.Now().Format(time.TimeOnly))
				printPresence(resp.Records)
			}
		},
	})
	return cmd
}

func printPresence(records []presence.Record) {
	now := time.Now()
	for _, r := range records {
		state := "offline"
		if r.IsOnline {
			state = "online"
		}
		if r.Stale {
			state += " (stale)"
		}
		fmt.Printf("%-20s %-16s last seen %s\n", r.UserID, state, feed.TimeAgo(r.LastSeenAt, now))
	}
}
