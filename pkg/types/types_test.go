package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateSetsClassify(t *testing.T) {
	sets := DefaultStateSets()

	tests := []struct {
		state    string
		outcome  Outcome
		terminal bool
	}{
		{"success", OutcomeSucceeded, true},
		{"failed", OutcomeFailed, true},
		{"upstream_failed", OutcomeFailed, true},
		{"skipped", OutcomeUnknown, true},
		{"queued", "", false},
		{"running", "", false},
		{"deferred", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		outcome, terminal := sets.Classify(tt.state)
		assert.Equal(t, tt.terminal, terminal, "state %q", tt.state)
		assert.Equal(t, tt.outcome, outcome, "state %q", tt.state)
	}
}

func TestOutcomeExitCode(t *testing.T) {
	assert.Equal(t, 0, OutcomeSucceeded.ExitCode())
	assert.Equal(t, 1, OutcomeFailed.ExitCode())
	assert.Equal(t, 2, OutcomeUnknown.ExitCode())
	assert.Equal(t, 2, Outcome("").ExitCode())
}
