// Package monitor drives the poll loop that follows a triggered run
// until it reaches a terminal state.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dwsmith1983/dagwatch/internal/airflow"
	"github.com/dwsmith1983/dagwatch/internal/metrics"
	"github.com/dwsmith1983/dagwatch/pkg/types"
)

const (
	defaultInterval    = 10 * time.Second
	defaultMaxFailures = 3
)

// StateFetcher fetches the current state of a known run.
type StateFetcher interface {
	GetRun(ctx context.Context, id types.RunIdentity) (string, error)
}

// Result is the terminal outcome of watching one run.
type Result struct {
	Outcome    types.Outcome
	FinalState string
	Elapsed    time.Duration
	Polls      int
	// Err is set when the monitor escalated (transport failures, run
	// vanished, server rejection) or was cancelled. A cancelled watch
	// carries the context error and its outcome must not be treated
	// as a real terminal state.
	Err error
}

// Monitor polls a run's state at a fixed interval, emitting an event
// only when the observed state changes.
type Monitor struct {
	fetcher     StateFetcher
	interval    time.Duration
	maxFailures int
	maxWait     time.Duration
	states      types.StateSets
	emit        func(types.Event)
	logger      *slog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the inter-poll interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMaxConsecutiveFailures sets how many consecutive transport
// failures are tolerated before the watch escalates.
func WithMaxConsecutiveFailures(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxFailures = n
		}
	}
}

// WithMaxWait caps the total watch duration. Zero means unbounded.
func WithMaxWait(d time.Duration) Option {
	return func(m *Monitor) { m.maxWait = d }
}

// WithStateSets overrides the terminal-state allow-lists.
func WithStateSets(s types.StateSets) Option {
	return func(m *Monitor) { m.states = s }
}

// WithEventFunc sets the progress event sink.
func WithEventFunc(fn func(types.Event)) Option {
	return func(m *Monitor) { m.emit = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Monitor over the given fetcher.
func New(fetcher StateFetcher, opts ...Option) *Monitor {
	m := &Monitor{
		fetcher:     fetcher,
		interval:    defaultInterval,
		maxFailures: defaultMaxFailures,
		states:      types.DefaultStateSets(),
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Watch follows the run until it reaches a terminal state, the
// consecutive-failure bound is exceeded, the run vanishes, or ctx is
// cancelled. initialState is the state reported by the trigger response.
func (m *Monitor) Watch(ctx context.Context, id types.RunIdentity, initialState string) Result {
	start := time.Now()

	m.fire(types.Event{
		Kind:      types.EventRunStarted,
		DagID:     id.DagID,
		RunID:     id.RunID,
		State:     initialState,
		Timestamp: start,
	})

	prev := initialState
	if outcome, terminal := m.states.Classify(initialState); terminal {
		return m.finish(id, outcome, initialState, start, 0, nil)
	}

	consecutive := 0
	polls := 0

	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{
				Outcome:    types.OutcomeUnknown,
				FinalState: prev,
				Elapsed:    time.Since(start),
				Polls:      polls,
				Err:        ctx.Err(),
			}
		case <-timer.C:
		}

		state, err := m.fetcher.GetRun(ctx, id)
		polls++
		metrics.PollsTotal.Add(1)

		if err != nil {
			metrics.PollErrors.Add(1)

			var nf *airflow.NotFoundError
			if errors.As(err, &nf) {
				m.logger.Error("run vanished from server", "dag", id.DagID, "run", id.RunID)
				return m.finish(id, types.OutcomeUnknown, prev, start, polls, err)
			}

			var te *airflow.TransportError
			if errors.As(err, &te) {
				consecutive++
				if consecutive > m.maxFailures {
					m.logger.Error("consecutive poll failures exceeded bound",
						"dag", id.DagID, "run", id.RunID,
						"failures", consecutive, "bound", m.maxFailures,
					)
					return m.finish(id, types.OutcomeUnknown, prev, start, polls, err)
				}
				m.logger.Warn("poll failed, retrying",
					"dag", id.DagID, "run", id.RunID,
					"attempt", consecutive, "bound", m.maxFailures, "error", err,
				)
				m.fire(types.Event{
					Kind:      types.EventPollRetry,
					DagID:     id.DagID,
					RunID:     id.RunID,
					Message:   err.Error(),
					Timestamp: time.Now(),
				})
				timer.Reset(m.interval)
				continue
			}

			// Server rejected the request; not retryable.
			m.logger.Error("poll rejected by server", "dag", id.DagID, "run", id.RunID, "error", err)
			return m.finish(id, types.OutcomeUnknown, prev, start, polls, err)
		}

		consecutive = 0

		if state != prev {
			metrics.StateChanges.Add(1)
			m.fire(types.Event{
				Kind:      types.EventStateChange,
				DagID:     id.DagID,
				RunID:     id.RunID,
				State:     state,
				Timestamp: time.Now(),
			})
			prev = state
		}

		if outcome, terminal := m.states.Classify(state); terminal {
			return m.finish(id, outcome, state, start, polls, nil)
		}

		if m.maxWait > 0 && time.Since(start) >= m.maxWait {
			m.logger.Error("maximum wait exceeded", "dag", id.DagID, "run", id.RunID, "maxWait", m.maxWait)
			return m.finish(id, types.OutcomeUnknown, prev, start, polls, context.DeadlineExceeded)
		}

		timer.Reset(m.interval)
	}
}

func (m *Monitor) finish(id types.RunIdentity, outcome types.Outcome, state string, start time.Time, polls int, err error) Result {
	switch outcome {
	case types.OutcomeSucceeded:
		metrics.RunsSucceeded.Add(1)
	case types.OutcomeFailed:
		metrics.RunsFailed.Add(1)
	default:
		metrics.RunsUnknown.Add(1)
	}

	res := Result{
		Outcome:    outcome,
		FinalState: state,
		Elapsed:    time.Since(start),
		Polls:      polls,
		Err:        err,
	}
	msg := string(outcome)
	if err != nil {
		msg = err.Error()
	}
	m.fire(types.Event{
		Kind:      types.EventRunTerminal,
		DagID:     id.DagID,
		RunID:     id.RunID,
		State:     state,
		Message:   msg,
		Timestamp: time.Now(),
	})
	return res
}

func (m *Monitor) fire(e types.Event) {
	if m.emit != nil {
		m.emit(e)
	}
}
