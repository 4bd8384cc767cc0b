package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/dagwatch/pkg/types"
)

// NewStatusCmd creates the status command: a one-shot state fetch for an
// existing run.
func NewStatusCmd() *cobra.Command {
	var (
		flags serverFlags
		runID string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current state of a DAG run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if err := flags.merge(cfg); err != nil {
				return err
			}
			if runID == "" {
				return fmt.Errorf("run id is required (--run-id)")
			}

			resolver, err := flags.newResolver(cfg)
			if err != nil {
				return err
			}
			cred, err := resolver.Resolve(cmd.Context())
			if err != nil {
				return err
			}

			client := flags.newClient(cred)
			id := types.RunIdentity{DagID: flags.dagID, RunID: runID}

			state, err := client.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}

			stateStr := state
			sets := types.DefaultStateSets()
			if cfg.States != nil {
				sets = *cfg.States
			}
			if outcome, terminal := sets.Classify(state); terminal {
				switch outcome {
				case types.OutcomeSucceeded:
					stateStr = color.GreenString(state)
				case types.OutcomeFailed:
					stateStr = color.RedString(state)
				default:
					stateStr = color.YellowString(state)
				}
			}

			fmt.Printf("%s  %s  %s\n", flags.dagID, runID, stateStr)
			fmt.Printf("Details: %s\n", client.RunURL(id))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", "", "base URL of the Airflow instance")
	cmd.Flags().StringVar(&flags.dagID, "dag", "", "DAG ID the run belongs to")
	cmd.Flags().StringVar(&runID, "run-id", "", "run ID to inspect")
	cmd.Flags().StringVar(&flags.username, "username", "", "Airflow username")
	cmd.Flags().StringVar(&flags.password, "password", "", "Airflow password (falls back to $AIRFLOW_PASSWORD, then a prompt)")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to dagwatch.yaml")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-request timeout (default 30s)")
	cmd.Flags().BoolVar(&flags.insecure, "insecure", false, "skip TLS certificate verification")

	return cmd
}
