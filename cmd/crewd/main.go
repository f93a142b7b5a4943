package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/crewchat/internal/daemon"
	"github.com/matheus3301/crewchat/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	consoleFlag := flag.Bool("console", false, "also log to stderr")
	flag.Parse()

	sessionName, err := session.Resolve(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName, Console: *consoleFlag}),
	)

	app.Run()
}
