package types

import "time"

// RunIdentity identifies one run of one DAG. RunID is assigned by the
// Airflow server at trigger time and is immutable afterwards.
type RunIdentity struct {
	DagID string `json:"dagId"`
	RunID string `json:"runId"`
}

// Credential carries the secret material proving identity to the server.
// Secret is a password in basic mode and a token in bearer mode; it is
// opaque to everything except the Airflow client.
type Credential struct {
	Username string
	Secret   string
	Mode     AuthMode
}

// Event is a single progress notification emitted while watching a run.
type Event struct {
	Kind      EventKind `json:"kind"`
	DagID     string    `json:"dagId"`
	RunID     string    `json:"runId,omitempty"`
	State     string    `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StateSets holds the server-state allow-lists used for terminal
// detection. The vocabulary is server-defined and may grow; states in
// none of the sets are treated as non-terminal and polling continues.
type StateSets struct {
	Success []string `yaml:"success"`
	Failure []string `yaml:"failure"`
	// Other lists states that are terminal on the server but map to
	// neither success nor failure (e.g. "skipped").
	Other []string `yaml:"other"`
}

// DefaultStateSets returns the Airflow stable-API vocabulary defaults.
func DefaultStateSets() StateSets {
	return StateSets{
		Success: []string{"success"},
		Failure: []string{"failed", "upstream_failed"},
		Other:   []string{"skipped"},
	}
}

// Classify maps a server state onto an outcome. The second return is
// false when the state is non-terminal.
func (s StateSets) Classify(state string) (Outcome, bool) {
	for _, v := range s.Success {
		if v == state {
			return OutcomeSucceeded, true
		}
	}
	for _, v := range s.Failure {
		if v == state {
			return OutcomeFailed, true
		}
	}
	for _, v := range s.Other {
		if v == state {
			return OutcomeUnknown, true
		}
	}
	return "", false
}
