package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/shared"
)

func main() {
	logger := shared.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(NewRunner(RunnerOpts{Logger: logger, Output: os.Stdout}))
	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the command tree. Running with no command performs a sync.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:     "radiosync",
		Usage:    "Append tracks played on radio stations to Spotify playlists",
		Version:  "1.0.0",
		Flags:    syncFlags(true),
		Action:   runner.Sync,
		Commands: runner.register(),
	}
}
