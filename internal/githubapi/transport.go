package githubapi

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const bearerTokenTypeConstant = "Bearer"

// NewAuthenticatedHTTPClient wraps the base transport so every request carries the bearer token.
func NewAuthenticatedHTTPClient(token string, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: strings.TrimSpace(token),
		TokenType:   bearerTokenTypeConstant,
	})
	return &http.Client{Transport: &oauth2.Transport{Source: tokenSource, Base: base}}
}
