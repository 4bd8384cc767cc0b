package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/dagwatch/internal/config"
	"github.com/dwsmith1983/dagwatch/internal/metrics"
	"github.com/dwsmith1983/dagwatch/internal/monitor"
	"github.com/dwsmith1983/dagwatch/internal/report"
	"github.com/dwsmith1983/dagwatch/pkg/types"
)

// NewRunCmd creates the run command: trigger a DAG run and watch it
// until it reaches a terminal state.
func NewRunCmd() *cobra.Command {
	var (
		flags       serverFlags
		confJSON    string
		interval    time.Duration
		maxFailures int
		maxWait     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger a DAG run and watch it to completion",
		Long: `Triggers a run of the given DAG on the Airflow server, then polls the
run until it reaches a terminal state. Exit code is 0 when the run
succeeded, 1 when it failed, and 2 when the outcome is unknown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAndWatch(cmd.Context(), &flags, confJSON, interval, maxFailures, maxWait)
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", "", "base URL of the Airflow instance")
	cmd.Flags().StringVar(&flags.dagID, "dag", "", "DAG ID to trigger")
	cmd.Flags().StringVar(&flags.username, "username", "", "Airflow username")
	cmd.Flags().StringVar(&flags.password, "password", "", "Airflow password (falls back to $AIRFLOW_PASSWORD, then a prompt)")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to dagwatch.yaml")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-request timeout (default 30s)")
	cmd.Flags().BoolVar(&flags.insecure, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().StringVar(&confJSON, "conf", "", "JSON string passed through as the run configuration")
	cmd.Flags().DurationVar(&interval, "interval", 0, "inter-poll interval (default 10s)")
	cmd.Flags().IntVar(&maxFailures, "max-failures", 0, "consecutive poll failures tolerated before giving up (default 3)")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "total watch duration cap (0 = unbounded)")

	return cmd
}

func runAndWatch(ctx context.Context, flags *serverFlags, confJSON string, interval time.Duration, maxFailures int, maxWait time.Duration) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	if err := flags.merge(cfg); err != nil {
		return err
	}

	conf, err := parseConf(confJSON)
	if err != nil {
		return err
	}

	resolver, err := flags.newResolver(cfg)
	if err != nil {
		return err
	}
	cred, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	client := flags.newClient(cred)
	reporter := report.New(os.Stdout)

	triggered, err := client.TriggerRun(ctx, flags.dagID, conf)
	if err != nil {
		metrics.TriggerErrors.Add(1)
		return fmt.Errorf("triggering dag %s: %w", flags.dagID, err)
	}
	metrics.RunsTriggered.Add(1)

	opts := []monitor.Option{
		monitor.WithEventFunc(reporter.Handle),
	}
	if interval > 0 {
		opts = append(opts, monitor.WithInterval(interval))
	} else if cfg.Watch.Interval != "" {
		opts = append(opts, monitor.WithInterval(config.Duration(cfg.Watch.Interval, 10*time.Second)))
	}
	if maxFailures > 0 {
		opts = append(opts, monitor.WithMaxConsecutiveFailures(maxFailures))
	} else if cfg.Watch.MaxConsecutiveFailures > 0 {
		opts = append(opts, monitor.WithMaxConsecutiveFailures(cfg.Watch.MaxConsecutiveFailures))
	}
	if maxWait > 0 {
		opts = append(opts, monitor.WithMaxWait(maxWait))
	} else if cfg.Watch.MaxWait != "" {
		opts = append(opts, monitor.WithMaxWait(config.Duration(cfg.Watch.MaxWait, 0)))
	}
	if cfg.States != nil {
		opts = append(opts, monitor.WithStateSets(*cfg.States))
	}

	result := monitor.New(client, opts...).Watch(ctx, triggered.Run, triggered.InitialState)

	if result.Err != nil && errors.Is(result.Err, context.Canceled) {
		reporter.Interrupted(result.Elapsed)
		return &ExitError{Code: types.OutcomeUnknown.ExitCode(), Err: result.Err}
	}

	reporter.Summary(result.Outcome, result.Elapsed, client.RunURL(triggered.Run))

	if result.Outcome == types.OutcomeSucceeded {
		return nil
	}
	return &ExitError{Code: result.Outcome.ExitCode(), Err: result.Err}
}
