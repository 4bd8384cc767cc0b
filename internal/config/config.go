// Package config handles loading and validation of the optional
// dagwatch.yaml file. Flags override anything set here.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/dagwatch/internal/credentials"
	"github.com/dwsmith1983/dagwatch/pkg/types"
)

// DefaultFile is the config file consulted when --config is not given.
const DefaultFile = "dagwatch.yaml"

// WatchConfig tunes the poll loop.
type WatchConfig struct {
	Interval               string `yaml:"interval"`
	MaxConsecutiveFailures int    `yaml:"maxConsecutiveFailures"`
	MaxWait                string `yaml:"maxWait"`
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	Username    string                   `yaml:"username"`
	PasswordEnv string                   `yaml:"passwordEnv"`
	OAuth       *credentials.OAuthConfig `yaml:"oauth,omitempty"`
}

// Config is the parsed dagwatch.yaml.
type Config struct {
	URL      string           `yaml:"url"`
	DagID    string           `yaml:"dag"`
	Timeout  string           `yaml:"timeout"`
	Insecure bool             `yaml:"insecure"`
	Auth     AuthConfig       `yaml:"auth"`
	Watch    WatchConfig      `yaml:"watch"`
	States   *types.StateSets `yaml:"states,omitempty"`
}

// Load reads and parses the config file at path. A missing file is not
// an error when optional is true; an empty Config is returned.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && optional {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	for name, v := range map[string]string{
		"watch.interval": cfg.Watch.Interval,
		"watch.maxWait":  cfg.Watch.MaxWait,
		"timeout":        cfg.Timeout,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("%s: invalid duration %q", name, v)
		}
	}
	if cfg.Watch.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("watch.maxConsecutiveFailures must not be negative")
	}
	if cfg.Auth.OAuth != nil {
		if cfg.Auth.OAuth.TokenURL == "" {
			return fmt.Errorf("auth.oauth.tokenUrl is required when oauth is configured")
		}
		if cfg.Auth.OAuth.ClientID == "" {
			return fmt.Errorf("auth.oauth.clientId is required when oauth is configured")
		}
	}
	if cfg.States != nil && len(cfg.States.Success) == 0 && len(cfg.States.Failure) == 0 {
		return fmt.Errorf("states must define at least one success or failure state")
	}
	return nil
}

// Duration parses v, falling back to def when v is empty.
func Duration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
