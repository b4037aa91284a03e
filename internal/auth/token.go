package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"zoomarchive/internal/config"
	"zoomarchive/internal/domain"
)

// TokenSource yields a bearer token for the provider API. Callers request a
// fresh token once per top-level operation; nothing is cached.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AccountCredentials exchanges client credentials for an account-level
// token using the provider's account_credentials grant: Basic client auth
// with grant_type and account_id in the form body.
type AccountCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	AccountID    string
	HTTP         *http.Client
}

func (a *AccountCredentials) config() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		TokenURL:     a.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
		EndpointParams: url.Values{
			"grant_type": {"account_credentials"},
			"account_id": {a.AccountID},
		},
	}
}

// Token requests a new access token on every call. Any failed exchange is
// an auth error.
func (a *AccountCredentials) Token(ctx context.Context) (string, error) {
	if a.HTTP != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.HTTP)
	}
	tok, err := a.config().Token(ctx)
	if err != nil {
		return "", domain.NewAuthError("token request rejected", err)
	}
	return tok.AccessToken, nil
}

// LegacyJWT signs a short-lived HS256 token locally from the app key and
// secret, for tenants still on JWT app credentials.
type LegacyJWT struct {
	ClientID     string
	ClientSecret string
	TTL          time.Duration
	Now          func() time.Time
}

// Token signs a new token valid for TTL.
func (l *LegacyJWT) Token(_ context.Context) (string, error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := jwt.RegisteredClaims{
		Issuer:    l.ClientID,
		ExpiresAt: jwt.NewNumericDate(now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(l.ClientSecret))
	if err != nil {
		return "", domain.NewAuthError("sign legacy jwt", err)
	}
	return signed, nil
}

// NewTokenSource picks the token source matching the tenant's auth mode.
func NewTokenSource(t config.Tenant, httpClient *http.Client) (TokenSource, error) {
	switch t.AuthMode {
	case config.AuthModeAccountCredentials, "":
		return &AccountCredentials{
			TokenURL:     t.TokenURL,
			ClientID:     t.ClientID,
			ClientSecret: t.ClientSecret,
			AccountID:    t.AccountID,
			HTTP:         httpClient,
		}, nil
	case config.AuthModeJWT:
		return &LegacyJWT{ClientID: t.ClientID, ClientSecret: t.ClientSecret}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", t.AuthMode)
	}
}
