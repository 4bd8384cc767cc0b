package credentials

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/clientcredentials"
)

// OAuthConfig describes a client-credentials token exchange, typically
// against a Keycloak realm fronting the Airflow instance.
type OAuthConfig struct {
	TokenURL     string   `yaml:"tokenUrl"`
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	Scopes       []string `yaml:"scopes"`
}

// oauthProvider implements TokenProvider over clientcredentials.
type oauthProvider struct {
	cfg clientcredentials.Config
}

// NewOAuthProvider builds a TokenProvider from the config.
func NewOAuthProvider(cfg OAuthConfig) (TokenProvider, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("oauth: tokenUrl is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oauth: clientId is required")
	}
	return &oauthProvider{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
	}, nil
}

// Token performs the exchange and returns the access token.
func (p *oauthProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.cfg.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
