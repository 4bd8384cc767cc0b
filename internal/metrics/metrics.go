// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	RunsTriggered = expvar.NewInt("runs_triggered")
	TriggerErrors = expvar.NewInt("trigger_errors")
	PollsTotal    = expvar.NewInt("polls_total")
	PollErrors    = expvar.NewInt("poll_errors")
	StateChanges  = expvar.NewInt("state_changes")
	RunsSucceeded = expvar.NewInt("runs_succeeded")
	RunsFailed    = expvar.NewInt("runs_failed")
	RunsUnknown   = expvar.NewInt("runs_unknown")
)
