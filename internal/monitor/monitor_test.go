package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/dagwatch/internal/airflow"
	"github.com/dwsmith1983/dagwatch/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type pollResult struct {
	state string
	err   error
}

// scriptedFetcher returns canned results in order; the last one repeats.
type scriptedFetcher struct {
	script []pollResult
	calls  int
}

func (f *scriptedFetcher) GetRun(ctx context.Context, id types.RunIdentity) (string, error) {
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	r := f.script[i]
	return r.state, r.err
}

var testRun = types.RunIdentity{DagID: "my_dag", RunID: "run-1"}

func watch(t *testing.T, fetcher StateFetcher, initial string, opts ...Option) (Result, []types.Event) {
	t.Helper()
	var events []types.Event
	opts = append(opts,
		WithInterval(time.Millisecond),
		WithEventFunc(func(e types.Event) { events = append(events, e) }),
	)
	m := New(fetcher, opts...)
	return m.Watch(context.Background(), testRun, initial), events
}

func kinds(events []types.Event) []types.EventKind {
	out := make([]types.EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestWatch_StateProgression(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{state: "queued"},
		{state: "running"},
		{state: "success"},
	}}

	result, events := watch(t, fetcher, "queued")

	assert.Equal(t, types.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, "success", result.FinalState)
	assert.Equal(t, 3, result.Polls)
	assert.NoError(t, result.Err)
	assert.Greater(t, result.Elapsed, time.Duration(0))

	require.Equal(t, []types.EventKind{
		types.EventRunStarted,
		types.EventStateChange,
		types.EventStateChange,
		types.EventRunTerminal,
	}, kinds(events))
	assert.Equal(t, "queued", events[0].State)
	assert.Equal(t, "running", events[1].State)
	assert.Equal(t, "success", events[2].State)
}

func TestWatch_ChangeEventsOnlyOnChange(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{state: "queued"},
		{state: "queued"},
		{state: "queued"},
		{state: "success"},
	}}

	result, events := watch(t, fetcher, "queued")

	assert.Equal(t, types.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, 4, result.Polls)

	// Repeated identical states never re-emit a change.
	require.Equal(t, []types.EventKind{
		types.EventRunStarted,
		types.EventStateChange,
		types.EventRunTerminal,
	}, kinds(events))
	assert.Equal(t, "success", events[1].State)
}

func TestWatch_Failed(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{{state: "failed"}}}

	result, _ := watch(t, fetcher, "queued")

	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.Equal(t, "failed", result.FinalState)
}

func TestWatch_UpstreamFailedMapsToFailed(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{{state: "upstream_failed"}}}

	result, _ := watch(t, fetcher, "queued")

	assert.Equal(t, types.OutcomeFailed, result.Outcome)
}

func TestWatch_SkippedIsTerminalUnknown(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{{state: "skipped"}}}

	result, _ := watch(t, fetcher, "queued")

	assert.Equal(t, types.OutcomeUnknown, result.Outcome)
	assert.Equal(t, "skipped", result.FinalState)
	assert.NoError(t, result.Err)
}

func TestWatch_UnrecognizedStateKeepsPolling(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{state: "deferred"},
		{state: "deferred"},
		{state: "success"},
	}}

	result, events := watch(t, fetcher, "queued")

	assert.Equal(t, types.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, 3, result.Polls)
	require.Equal(t, []types.EventKind{
		types.EventRunStarted,
		types.EventStateChange,
		types.EventStateChange,
		types.EventRunTerminal,
	}, kinds(events))
	assert.Equal(t, "deferred", events[1].State)
}

func TestWatch_InitialStateAlreadyTerminal(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{{state: "success"}}}

	result, events := watch(t, fetcher, "success")

	assert.Equal(t, types.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, 0, result.Polls)
	assert.Equal(t, 0, fetcher.calls)
	require.Equal(t, []types.EventKind{
		types.EventRunStarted,
		types.EventRunTerminal,
	}, kinds(events))
}

func transportErr() error {
	return &airflow.TransportError{Op: "get run", Err: context.DeadlineExceeded}
}

func TestWatch_TransportFailuresExceedBound(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{{err: transportErr()}}}

	result, events := watch(t, fetcher, "queued", WithMaxConsecutiveFailures(2))

	assert.Equal(t, types.OutcomeUnknown, result.Outcome)
	assert.Equal(t, 3, result.Polls)
	require.Error(t, result.Err)
	assert.Greater(t, result.Elapsed, time.Duration(0))

	// Two retries within the bound, then escalation.
	require.Equal(t, []types.EventKind{
		types.EventRunStarted,
		types.EventPollRetry,
		types.EventPollRetry,
		types.EventRunTerminal,
	}, kinds(events))
}

func TestWatch_TransportFailureCounterResets(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{err: transportErr()},
		{err: transportErr()},
		{state: "running"},
		{err: transportErr()},
		{err: transportErr()},
		{state: "success"},
	}}

	result, _ := watch(t, fetcher, "queued", WithMaxConsecutiveFailures(2))

	// Each success resets the consecutive counter, so the bound is never
	// exceeded even though four polls failed in total.
	assert.Equal(t, types.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, 6, result.Polls)
}

func TestWatch_NotFoundEscalatesImmediately(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{err: &airflow.NotFoundError{DagID: "my_dag", RunID: "run-1"}},
	}}

	result, events := watch(t, fetcher, "queued", WithMaxConsecutiveFailures(5))

	assert.Equal(t, types.OutcomeUnknown, result.Outcome)
	assert.Equal(t, 1, result.Polls)

	var nf *airflow.NotFoundError
	require.ErrorAs(t, result.Err, &nf)

	require.Equal(t, []types.EventKind{
		types.EventRunStarted,
		types.EventRunTerminal,
	}, kinds(events))
}

func TestWatch_ServerRejectionIsFatal(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{err: &airflow.APIError{Op: "get run", StatusCode: 403, Body: "forbidden"}},
	}}

	result, _ := watch(t, fetcher, "queued", WithMaxConsecutiveFailures(5))

	assert.Equal(t, types.OutcomeUnknown, result.Outcome)
	assert.Equal(t, 1, result.Polls)

	var apiErr *airflow.APIError
	require.ErrorAs(t, result.Err, &apiErr)
}

func TestWatch_Cancellation(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{{state: "running"}}}

	ctx, cancel := context.WithCancel(context.Background())
	var events []types.Event
	m := New(fetcher,
		WithInterval(5*time.Second),
		WithEventFunc(func(e types.Event) { events = append(events, e) }),
	)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := m.Watch(ctx, testRun, "queued")

	assert.Equal(t, types.OutcomeUnknown, result.Outcome)
	require.ErrorIs(t, result.Err, context.Canceled)

	// No terminal event: a cancelled watch must not report a false outcome.
	require.Equal(t, []types.EventKind{types.EventRunStarted}, kinds(events))
}

func TestWatch_MaxWaitExceeded(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{{state: "running"}}}

	result, _ := watch(t, fetcher, "queued", WithMaxWait(5*time.Millisecond))

	assert.Equal(t, types.OutcomeUnknown, result.Outcome)
	require.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Equal(t, "running", result.FinalState)
}

func TestWatch_CustomStateSets(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{{state: "done"}}}

	result, _ := watch(t, fetcher, "queued", WithStateSets(types.StateSets{
		Success: []string{"done"},
		Failure: []string{"error"},
	}))

	assert.Equal(t, types.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, "done", result.FinalState)
}
