// Package airflow wraps the Airflow stable REST API operations dagwatch
// needs: triggering a DAG run and fetching a run's state.
package airflow

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/dagwatch/pkg/types"
)

const defaultCallTimeout = 30 * time.Second

// TriggerResult is the server's answer to a trigger request.
type TriggerResult struct {
	Run          types.RunIdentity
	InitialState string
}

// Client is a stateless translation layer between dagwatch operations
// and Airflow HTTP calls. Every request carries the resolved credential
// and a bounded per-call timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cred       types.Credential
	timeout    time.Duration
	logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithLogger sets the logger used for request-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithInsecureTLS disables server certificate verification.
func WithInsecureTLS() Option {
	return func(cl *Client) {
		cl.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
}

// WithBreakerThreshold sets how many consecutive transient failures trip
// the circuit breaker.
func WithBreakerThreshold(n uint32) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.breaker = newBreaker(n)
		}
	}
}

// New creates a Client for the Airflow instance at baseURL.
func New(baseURL string, cred types.Credential, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		cred:       cred,
		timeout:    defaultCallTimeout,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.breaker == nil {
		c.breaker = newBreaker(5)
	}
	return c
}

// newBreaker builds a breaker that only counts transient-like failures.
// Permanent rejections (4xx, run not found) do not trip it.
func newBreaker(threshold uint32) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "airflow",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var nf *NotFoundError
			if errors.As(err, &nf) {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Category() == types.FailurePermanent
			}
			return false
		},
	})
}

// TriggerRun creates a new run of dagID, passing conf through opaquely as
// the run's configuration payload. It returns the server-assigned run id
// and initial state.
func (c *Client) TriggerRun(ctx context.Context, dagID string, conf map[string]any) (TriggerResult, error) {
	if c.baseURL == "" {
		return TriggerResult{}, fmt.Errorf("airflow trigger: url is required")
	}
	if dagID == "" {
		return TriggerResult{}, fmt.Errorf("airflow trigger: dag id is required")
	}

	payload := map[string]any{"conf": map[string]any{}}
	if conf != nil {
		payload["conf"] = conf
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("airflow trigger: marshaling payload: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/dags/" + url.PathEscape(dagID) + "/dagRuns"
	respBody, err := c.do(ctx, "trigger", http.MethodPost, endpoint, bytes.NewReader(body), nil)
	if err != nil {
		return TriggerResult{}, err
	}

	var result struct {
		DagRunID string `json:"dag_run_id"`
		State    string `json:"state"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return TriggerResult{}, fmt.Errorf("airflow trigger: parsing response: %w", err)
	}
	if result.DagRunID == "" {
		return TriggerResult{}, fmt.Errorf("airflow trigger: response missing dag_run_id")
	}
	if result.State == "" {
		result.State = "queued"
	}

	return TriggerResult{
		Run:          types.RunIdentity{DagID: dagID, RunID: result.DagRunID},
		InitialState: result.State,
	}, nil
}

// GetRun fetches the current state of a known run.
func (c *Client) GetRun(ctx context.Context, id types.RunIdentity) (string, error) {
	endpoint := c.baseURL + "/api/v1/dags/" + url.PathEscape(id.DagID) +
		"/dagRuns/" + url.PathEscape(id.RunID)
	respBody, err := c.do(ctx, "get run", http.MethodGet, endpoint, http.NoBody, &id)
	if err != nil {
		return "", err
	}

	var result struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("airflow get run: parsing response: %w", err)
	}
	if result.State == "" {
		return "", fmt.Errorf("airflow get run: response missing state field")
	}
	return result.State, nil
}

// RunURL returns the run's detail page on the Airflow web UI.
func (c *Client) RunURL(id types.RunIdentity) string {
	return c.baseURL + "/dags/" + url.PathEscape(id.DagID) +
		"/grid?dag_run_id=" + url.QueryEscape(id.RunID)
}

// do executes one authenticated request through the circuit breaker and
// returns the response body on 2xx. id is non-nil for run-scoped calls
// so a 404 can be reported as NotFoundError.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, id *types.RunIdentity) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("airflow %s: creating request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", ulid.Make().String())

	switch c.cred.Mode {
	case types.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.cred.Secret)
	default:
		req.SetBasicAuth(c.cred.Username, c.cred.Secret)
	}

	c.logger.Debug("airflow request",
		"op", op,
		"method", method,
		"url", endpoint,
		"requestID", req.Header.Get("X-Request-ID"),
	)

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &TransportError{Op: op, Err: ctx.Err()}
			}
			return nil, &TransportError{Op: op, Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}

		if resp.StatusCode == http.StatusNotFound && id != nil {
			return nil, &NotFoundError{DagID: id.DagID, RunID: id.RunID}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		}
		return respBody, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Op: op, Err: err}
		}
		return nil, err
	}
	return out.([]byte), nil
}
