package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/dagwatch/internal/commands"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env if present (non-fatal; CI environments won't have one).
	_ = godotenv.Load()

	var debug bool

	root := &cobra.Command{
		Use:   "dagwatch",
		Short: "Trigger an Airflow DAG run and watch it to completion",
		Long: `Dagwatch triggers a DAG run over the Airflow REST API, then polls the
run until it reaches a terminal state, reporting each state change.
The exit code reflects the outcome, so CI pipelines can gate on it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *commands.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil && !errors.Is(exitErr.Err, context.Canceled) {
				slog.Error("watch ended abnormally", "error", exitErr.Err)
			}
			return exitErr.Code
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
