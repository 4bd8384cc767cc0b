// Package report renders progress events and the final outcome for the
// operator.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/dwsmith1983/dagwatch/pkg/types"
)

// Reporter writes timestamped progress lines. It consumes the monitor's
// event stream and knows nothing about how states were observed.
type Reporter struct {
	out io.Writer
}

// New creates a Reporter writing to out.
func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Handle renders one progress event.
func (r *Reporter) Handle(e types.Event) {
	ts := e.Timestamp.Format("2006-01-02 15:04:05")
	switch e.Kind {
	case types.EventRunStarted:
		fmt.Fprintf(r.out, "%s  %s run %s (initial state: %s)\n",
			ts, color.CyanString("triggered"), e.RunID, e.State)
	case types.EventStateChange:
		fmt.Fprintf(r.out, "%s  state changed: %s\n", ts, stateString(e.State))
	case types.EventPollRetry:
		fmt.Fprintf(r.out, "%s  %s %s\n", ts, color.YellowString("poll retry:"), e.Message)
	case types.EventRunTerminal:
		fmt.Fprintf(r.out, "%s  terminal state: %s\n", ts, stateString(e.State))
	}
}

// Summary renders the final outcome, elapsed time and detail URL.
func (r *Reporter) Summary(outcome types.Outcome, elapsed time.Duration, runURL string) {
	elapsed = elapsed.Round(time.Second)
	switch outcome {
	case types.OutcomeSucceeded:
		fmt.Fprintf(r.out, "%s in %s\n", color.GreenString("Run completed successfully"), elapsed)
	case types.OutcomeFailed:
		fmt.Fprintf(r.out, "%s after %s\n", color.RedString("Run failed"), elapsed)
	default:
		fmt.Fprintf(r.out, "%s after %s\n", color.YellowString("Run ended in an unknown state"), elapsed)
	}
	if runURL != "" {
		fmt.Fprintf(r.out, "Details: %s\n", runURL)
	}
}

// Interrupted notes a cancelled watch without claiming a terminal state.
func (r *Reporter) Interrupted(elapsed time.Duration) {
	fmt.Fprintf(r.out, "%s after %s; run may still be in progress\n",
		color.YellowString("Watch interrupted"), elapsed.Round(time.Second))
}

func stateString(state string) string {
	switch state {
	case "success":
		return color.GreenString(state)
	case "failed", "upstream_failed":
		return color.RedString(state)
	case "running":
		return color.CyanString(state)
	default:
		return state
	}
}
