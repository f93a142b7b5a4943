package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/session"
	"github.com/matheus3301/crewchat/internal/tui/client"
	"github.com/spf13/cobra"
)

var (
	sessionFlag string
	jsonFlag    bool
	userFlag    string
	nameFlag    string
	timeoutFlag time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "crewctl",
		Short:         "Control a crewchat daemon",
		Long:          "crewctl talks to the crewd daemon of a session over its Unix socket.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	root.PersistentFlags().StringVarP(&userFlag, "user", "u", os.Getenv("CREWCHAT_USER"), "user id to act as (default $CREWCHAT_USER)")
	root.PersistentFlags().StringVar(&nameFlag, "name", "", "display name sent with messages")
	root.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(statusCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(conversationsCmd())
	root.AddCommand(openCmd())
	root.AddCommand(dmCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(retryCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(feedCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(inviteCmd())
	root.AddCommand(joinCmd())
	root.AddCommand(membersCmd())
	root.AddCommand(presenceCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func currentIdentity() identity.Identity {
	return identity.Identity{UID: userFlag, DisplayName: nameFlag}
}

// connect dials the session daemon. Commands that act as a user carry a
// token minted from the session secret.
func connect(asUser bool) (*client.Client, string, error) {
	sessionName, err := session.Resolve(sessionFlag)
	if err != nil {
		return nil, "", err
	}
	var token string
	if asUser {
		if userFlag == "" {
			return nil, "", fmt.Errorf("--user is required (or set CREWCHAT_USER)")
		}
		if token, err = client.Token(sessionName, currentIdentity(), 0); err != nil {
			return nil, "", err
		}
	}
	c, err := client.New(session.SocketPath(sessionName), token)
	if err != nil {
		return nil, "", fmt.Errorf("cannot connect to daemon for session %q: %w", sessionName, err)
	}
	return c, sessionName, nil
}

// withClient runs fn with a connected client and a request-scoped context.
func withClient(cmd *cobra.Command, asUser bool, fn func(ctx context.Context, c *client.Client) error) error {
	c, _, err := connect(asUser)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()
	return fn(ctx, c)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, userFlag != "", func(ctx context.Context, c *client.Client) error {
				resp, err := c.Session.GetStatus(ctx, &rpc.GetStatusRequest{})
				if err != nil {
					return err
				}
				if jsonFlag {
					return outputJSON(resp)
				}
				fmt.Printf("Session:       %s\n", resp.Session)
				if resp.Reason != "" {
					fmt.Printf("Status:        %s (%s)\n", resp.Status, resp.Reason)
				} else {
					fmt.Printf("Status:        %s\n", resp.Status)
				}
				fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
				fmt.Printf("Conversations: %d\n", resp.Conversations)
				fmt.Printf("Messages:      %d\n", resp.Messages)
				fmt.Printf("Members:       %d\n", resp.Members)
				if resp.GatewayAddr != "" {
					fmt.Printf("Gateway:       http://%s\n", resp.GatewayAddr)
				}
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			sessionName, err := session.Resolve(sessionFlag)
			if err != nil {
				return err
			}
			token, err := client.Token(sessionName, currentIdentity(), ttl)
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	return cmd
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
