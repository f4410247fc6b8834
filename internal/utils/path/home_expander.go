// Package pathutils resolves user supplied filesystem paths such as download directories and dotenv files.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const tildeSymbolConstant = "~"

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// EnvironmentExpander substitutes $NAME and ${NAME} references.
type EnvironmentExpander func(value string) string

// HomeExpander turns "~", "~/dir" and environment references into concrete paths.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	environmentExpander   EnvironmentExpander
	homeDirectory         string
	homeDirectoryError    error
	initializationGuard   sync.Once
}

// NewHomeExpander constructs a HomeExpander using the operating system lookups.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom home directory provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider, environmentExpander: os.ExpandEnv}
}

// WithEnvironmentExpander replaces the environment lookup used for $NAME references.
func (expander *HomeExpander) WithEnvironmentExpander(environmentExpander EnvironmentExpander) *HomeExpander {
	if expander != nil && environmentExpander != nil {
		expander.environmentExpander = environmentExpander
	}
	return expander
}

// Expand resolves environment references and a leading tilde. Paths of other users ("~bob/x") are returned unchanged.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || len(candidatePath) == 0 {
		return candidatePath
	}

	expandedPath := candidatePath
	if strings.Contains(expandedPath, "$") && expander.environmentExpander != nil {
		expandedPath = expander.environmentExpander(expandedPath)
	}

	if !strings.HasPrefix(expandedPath, tildeSymbolConstant) {
		return expandedPath
	}

	remainder := strings.TrimPrefix(expandedPath, tildeSymbolConstant)
	if len(remainder) > 0 && remainder[0] != '/' && remainder[0] != os.PathSeparator {
		return expandedPath
	}

	homeDirectory := expander.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return expandedPath
	}
	return filepath.Join(homeDirectory, remainder)
}

func (expander *HomeExpander) resolveHomeDirectory() string {
	expander.initializationGuard.Do(func() {
		expander.homeDirectory, expander.homeDirectoryError = expander.homeDirectoryProvider()
	})
	if expander.homeDirectoryError != nil {
		return ""
	}
	return expander.homeDirectory
}
