// Package credentials resolves the secret used to authenticate against
// the Airflow server. The monitor and client stay oblivious to how a
// credential was obtained.
package credentials

import (
	"context"
	"fmt"
	"os"

	"github.com/dwsmith1983/dagwatch/pkg/types"
)

// DefaultPasswordEnv is the environment variable consulted when no
// explicit password is supplied.
const DefaultPasswordEnv = "AIRFLOW_PASSWORD"

// NoCredentialError reports that no usable credential could be found
// from any source. It is fatal and raised before any network call.
type NoCredentialError struct {
	EnvVar string
}

func (e *NoCredentialError) Error() string {
	return fmt.Sprintf("no credential available: no --password flag, %s is unset, and stdin is not a terminal", e.EnvVar)
}

// Prompter reads a secret interactively. It is a capability interface
// so tests can substitute a fake console.
type Prompter interface {
	ReadSecret(prompt string) (string, error)
	Available() bool
}

// TokenProvider exchanges configured client credentials for a bearer
// token. The OAuth flow behind it is a black box to the resolver.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Resolver produces a Credential by trying, in order: the explicit
// value, the environment variable, then an interactive prompt. When a
// TokenProvider is configured it takes precedence and yields a bearer
// credential instead.
type Resolver struct {
	Username string
	Explicit string
	EnvVar   string
	Prompter Prompter
	Tokens   TokenProvider
}

// NewResolver creates a Resolver with the default env var and a real
// terminal prompter.
func NewResolver(username, explicit string) *Resolver {
	return &Resolver{
		Username: username,
		Explicit: explicit,
		EnvVar:   DefaultPasswordEnv,
		Prompter: &terminalPrompter{},
	}
}

// Resolve returns the credential to use for all Airflow requests.
func (r *Resolver) Resolve(ctx context.Context) (types.Credential, error) {
	if r.Tokens != nil {
		token, err := r.Tokens.Token(ctx)
		if err != nil {
			return types.Credential{}, fmt.Errorf("exchanging oauth token: %w", err)
		}
		return types.Credential{Username: r.Username, Secret: token, Mode: types.AuthBearer}, nil
	}

	if r.Explicit != "" {
		return r.basic(r.Explicit), nil
	}

	envVar := r.EnvVar
	if envVar == "" {
		envVar = DefaultPasswordEnv
	}
	if v := os.Getenv(envVar); v != "" {
		return r.basic(v), nil
	}

	if r.Prompter != nil && r.Prompter.Available() {
		secret, err := r.Prompter.ReadSecret(fmt.Sprintf("Password for %s: ", r.Username))
		if err != nil {
			return types.Credential{}, fmt.Errorf("reading password: %w", err)
		}
		if secret != "" {
			return r.basic(secret), nil
		}
	}

	return types.Credential{}, &NoCredentialError{EnvVar: envVar}
}

func (r *Resolver) basic(secret string) types.Credential {
	return types.Credential{Username: r.Username, Secret: secret, Mode: types.AuthBasic}
}
