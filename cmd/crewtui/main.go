package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/crewchat/internal/config"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/session"
	"github.com/matheus3301/crewchat/internal/tui"
	"github.com/matheus3301/crewchat/internal/tui/client"
	"github.com/matheus3301/crewchat/internal/tui/model"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	userFlag := flag.String("user", os.Getenv("CREWCHAT_USER"), "user id to chat as (default $CREWCHAT_USER)")
	nameFlag := flag.String("name", "", "display name shown to the crew")
	flag.Parse()

	if err := run(*sessionFlag, identity.Identity{UID: *userFlag, DisplayName: *nameFlag}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(sessionFlag string, me identity.Identity) error {
	if !me.Valid() {
		return fmt.Errorf("--user is required (or set CREWCHAT_USER)")
	}
	sessionName, err := session.Resolve(sessionFlag)
	if err != nil {
		return err
	}
	socketPath := session.SocketPath(sessionName)

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for session %q, starting...\n", sessionName)
		if err := startDaemon(sessionName); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			return fmt.Errorf("daemon did not become ready")
		}
	}

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return err
	}
	// The daemon writes the session secret on first start, so the token is
	// minted only once it is up.
	token, err := client.Token(sessionName, me, 0)
	if err != nil {
		return err
	}
	c, err := client.New(socketPath, token)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer func() { _ = c.Close() }()

	opts := feed.DefaultOptions()
	opts.GroupGap = cfg.Feed.GroupGap.Duration
	opts.SeparatorGap = cfg.Feed.SeparatorGap.Duration

	app := tui.NewApp(model.Daemon{
		Session:   c.Session,
		Messaging: c.Messaging,
		Presence:  c.Presence,
		Sender:    c,
	}, sessionName, me, opts)
	return app.Run()
}

// probeDaemon checks if a daemon is running and responsive on the socket.
func probeDaemon(socketPath string) bool {
	conn, err := rpc.Dial(socketPath, "")
	if err != nil {
		return false
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = rpc.NewSessionServiceClient(conn).GetStatus(ctx, &rpc.GetStatusRequest{})
	return err == nil
}

func startDaemon(sessionName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	crewd := filepath.Join(filepath.Dir(executable), "crewd")
	if _, err := os.Stat(crewd); err != nil {
		crewd = "crewd"
	}

	cmd := exec.Command(crewd, "--session", sessionName)
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon polls GetStatus until the daemon answers or timeout passes.
func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
