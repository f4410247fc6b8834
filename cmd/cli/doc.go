// Package cli constructs the popper command-line interface. It wires the Cobra
// root command, the layered configuration loader and the zap logger, and mounts
// the mirror command that publishes bucket packages as GitHub releases.
package cli
