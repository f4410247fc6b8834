// Package versions parses dot-separated numeric package versions, orders them
// component-wise, and reconciles discovered bucket versions against the set of
// releases already published on GitHub.
package versions
