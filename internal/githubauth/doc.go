// Package githubauth locates the GitHub credential used by the mirror.
//
// Tokens are declared through token sources such as env:GITHUB_TOKEN or
// file:~/.config/popper/token. An optional dotenv file populates the process
// environment before resolution without overriding variables that are
// already set.
package githubauth
