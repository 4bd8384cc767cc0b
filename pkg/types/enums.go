// Package types defines the public domain types for dagwatch.
package types

// AuthMode selects how the credential is attached to Airflow requests.
type AuthMode string

// AuthMode values enumerate the supported authentication schemes.
const (
	AuthBasic  AuthMode = "basic"
	AuthBearer AuthMode = "bearer"
)

// Outcome is the normalized terminal result of watching a run.
type Outcome string

// Outcome values map directly to process exit codes (0, 1, 2).
const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeUnknown   Outcome = "UNKNOWN"
)

// ExitCode returns the process exit code for an outcome.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSucceeded:
		return 0
	case OutcomeFailed:
		return 1
	default:
		return 2
	}
}

// EventKind classifies the progress events emitted while watching a run.
type EventKind string

// EventKind values enumerate the categories of progress events.
const (
	EventRunStarted  EventKind = "RUN_STARTED"
	EventStateChange EventKind = "STATE_CHANGED"
	EventPollRetry   EventKind = "POLL_RETRY"
	EventRunTerminal EventKind = "RUN_TERMINAL"
)

// FailureCategory classifies why an Airflow request failed.
type FailureCategory string

const (
	FailureTransient FailureCategory = "TRANSIENT"
	FailurePermanent FailureCategory = "PERMANENT"
	FailureTimeout   FailureCategory = "TIMEOUT"
)
