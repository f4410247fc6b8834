// Package githubapi provides a typed client for the GitHub REST release endpoints.
//
// The Client lists, creates and uploads assets to releases of a single
// owner/name repository. Authentication is supplied by the HTTP client, which
// NewAuthenticatedHTTPClient builds on an oauth2 bearer transport. The base
// URL is configurable, so the client also serves GitHub Enterprise endpoints
// and test servers.
package githubapi
