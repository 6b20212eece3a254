package auth

import (
	"context"
	"fmt"

	"github.com/clinforge-ai/platform/pkg/common/logger"
	"golang.org/x/oauth2"
)

type OIDCAuthenticator struct {
	config *oauth2.Config
	issuer string
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config: config,
		issuer: issuer,
	}, nil
}

// ValidateToken checks the bearer token presented by a submitting system.
// TODO: verify the JWT signature against the issuer's JWKS endpoint once
// the sponsor IdP exposes one.
func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	logger.Log.Debug("Token validation (issuer introspection pending)")

	return map[string]interface{}{
		"iss": a.issuer,
	}, nil
}
