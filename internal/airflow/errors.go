package airflow

import (
	"fmt"

	"github.com/dwsmith1983/dagwatch/pkg/types"
)

// APIError reports a request the server rejected with a non-2xx status.
// It is permanent for 4xx statuses and never retried by the monitor.
type APIError struct {
	Op         string // "trigger" or "get run"
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airflow %s: returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Category classifies the failure for retry decisions.
func (e *APIError) Category() types.FailureCategory {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return types.FailurePermanent
	}
	return types.FailureTransient
}

// NotFoundError reports a run the server no longer knows about. It is
// distinct from APIError because it indicates a logic error rather than
// a transient fault, and is never retried.
type NotFoundError struct {
	DagID string
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("airflow: run %s of dag %s not found", e.RunID, e.DagID)
}

// TransportError reports network or timeout trouble before any server
// response arrived. The monitor retries these up to its failure bound.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("airflow %s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
