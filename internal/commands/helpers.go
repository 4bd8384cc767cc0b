// Package commands implements the CLI subcommands for the dagwatch binary.
package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwsmith1983/dagwatch/internal/airflow"
	"github.com/dwsmith1983/dagwatch/internal/config"
	"github.com/dwsmith1983/dagwatch/internal/credentials"
	"github.com/dwsmith1983/dagwatch/pkg/types"
)

// ExitError carries the process exit code for a terminal outcome. main
// unwraps it instead of defaulting to exit 1.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// serverFlags is the flag surface shared by run and status.
type serverFlags struct {
	url        string
	dagID      string
	username   string
	password   string
	configPath string
	timeout    time.Duration
	insecure   bool
}

// loadConfig reads the config file. The default file is optional; an
// explicitly passed --config must exist.
func (f *serverFlags) loadConfig() (*config.Config, error) {
	path := f.configPath
	optional := false
	if path == "" {
		path = config.DefaultFile
		optional = true
	}
	return config.Load(path, optional)
}

// merge applies config-file values under the flags.
func (f *serverFlags) merge(cfg *config.Config) error {
	if f.url == "" {
		f.url = cfg.URL
	}
	if f.dagID == "" {
		f.dagID = cfg.DagID
	}
	if f.username == "" {
		f.username = cfg.Auth.Username
	}
	if !f.insecure {
		f.insecure = cfg.Insecure
	}
	if f.timeout == 0 {
		f.timeout = config.Duration(cfg.Timeout, 30*time.Second)
	}
	if f.url == "" {
		return fmt.Errorf("server url is required (--url or config file)")
	}
	if f.dagID == "" {
		return fmt.Errorf("dag id is required (--dag or config file)")
	}
	return nil
}

// newResolver builds the credential resolver from flags and config.
func (f *serverFlags) newResolver(cfg *config.Config) (*credentials.Resolver, error) {
	r := credentials.NewResolver(f.username, f.password)
	if cfg.Auth.PasswordEnv != "" {
		r.EnvVar = cfg.Auth.PasswordEnv
	}
	if cfg.Auth.OAuth != nil {
		tokens, err := credentials.NewOAuthProvider(*cfg.Auth.OAuth)
		if err != nil {
			return nil, err
		}
		r.Tokens = tokens
	}
	return r, nil
}

// newClient builds the Airflow client from flags.
func (f *serverFlags) newClient(cred types.Credential) *airflow.Client {
	opts := []airflow.Option{
		airflow.WithTimeout(f.timeout),
		airflow.WithLogger(slog.Default()),
	}
	if f.insecure {
		opts = append(opts, airflow.WithInsecureTLS())
	}
	return airflow.New(f.url, cred, opts...)
}

// parseConf decodes the --conf JSON string. The payload is passed
// through to the server opaquely, never interpreted.
func parseConf(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var conf map[string]any
	if err := json.Unmarshal([]byte(raw), &conf); err != nil {
		return nil, fmt.Errorf("invalid JSON for --conf: %w", err)
	}
	return conf, nil
}
