package githubauth_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/popper/internal/githubauth"
)

func TestParseTokenSource(testInstance *testing.T) {
	testCases := []struct {
		name           string
		input          string
		expectedSource githubauth.TokenSource
		expectError    bool
	}{
		{name: "environment_prefix", input: "env:GITHUB_TOKEN", expectedSource: githubauth.TokenSource{Type: githubauth.TokenSourceTypeEnvironment, Reference: "GITHUB_TOKEN"}},
		{name: "bare_environment", input: " POPPER_TOKEN ", expectedSource: githubauth.TokenSource{Type: githubauth.TokenSourceTypeEnvironment, Reference: "POPPER_TOKEN"}},
		{name: "file_prefix", input: "FILE:/etc/popper/token", expectedSource: githubauth.TokenSource{Type: githubauth.TokenSourceTypeFile, Reference: "/etc/popper/token"}},
		{name: "empty_selects_fallback", input: "  ", expectedSource: githubauth.TokenSource{Type: githubauth.TokenSourceTypeFallback}},
		{name: "missing_environment_name", input: "env:", expectError: true},
		{name: "missing_file_path", input: "file: ", expectError: true},
		{name: "unsupported_type", input: "vault:secret", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			source, parseError := githubauth.ParseTokenSource(testCase.input)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedSource, source)
		})
	}
}

func TestTokenResolverResolveToken(testInstance *testing.T) {
	environment := map[string]string{
		"GITHUB_TOKEN": "  primary-token ",
		"EMPTY_TOKEN":  "   ",
		"GH_TOKEN":     "cli-token",
	}
	lookup := func(key string) (string, bool) {
		value, exists := environment[key]
		return value, exists
	}
	files := map[string]string{
		"/secrets/token": "file-token\n",
		"/secrets/empty": "\n",
	}
	reader := func(path string) ([]byte, error) {
		contents, exists := files[path]
		if !exists {
			return nil, os.ErrNotExist
		}
		return []byte(contents), nil
	}

	resolver := githubauth.NewTokenResolver(lookup, reader)

	testCases := []struct {
		name          string
		source        githubauth.TokenSource
		expectedToken string
		expectMissing bool
	}{
		{name: "environment", source: githubauth.TokenSource{Type: githubauth.TokenSourceTypeEnvironment, Reference: "GITHUB_TOKEN"}, expectedToken: "primary-token"},
		{name: "environment_unset", source: githubauth.TokenSource{Type: githubauth.TokenSourceTypeEnvironment, Reference: "UNSET_TOKEN"}, expectMissing: true},
		{name: "environment_blank", source: githubauth.TokenSource{Type: githubauth.TokenSourceTypeEnvironment, Reference: "EMPTY_TOKEN"}, expectMissing: true},
		{name: "file", source: githubauth.TokenSource{Type: githubauth.TokenSourceTypeFile, Reference: "/secrets/token"}, expectedToken: "file-token"},
		{name: "file_empty", source: githubauth.TokenSource{Type: githubauth.TokenSourceTypeFile, Reference: "/secrets/empty"}, expectMissing: true},
		{name: "file_absent", source: githubauth.TokenSource{Type: githubauth.TokenSourceTypeFile, Reference: "/secrets/absent"}, expectMissing: true},
		{name: "fallback", source: githubauth.TokenSource{Type: githubauth.TokenSourceTypeFallback}, expectedToken: "primary-token"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			token, resolveError := resolver.ResolveToken(context.Background(), testCase.source)
			if testCase.expectMissing {
				require.ErrorIs(testInstance, resolveError, githubauth.ErrTokenMissing)
				require.Empty(testInstance, token)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedToken, token)
		})
	}
}

func TestTokenResolverFallbackOrder(testInstance *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == githubauth.EnvGitHubCLIToken {
			return "cli-token", true
		}
		return "", false
	}
	resolver := githubauth.NewTokenResolver(lookup, nil)

	token, resolveError := resolver.ResolveToken(context.Background(), githubauth.TokenSource{})
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, "cli-token", token)
}

func TestTokenResolverHonorsCancelledContext(testInstance *testing.T) {
	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := githubauth.NewTokenResolver(func(string) (string, bool) { return "token", true }, nil)
	_, resolveError := resolver.ResolveToken(cancelledContext, githubauth.TokenSource{Type: githubauth.TokenSourceTypeEnvironment, Reference: "GITHUB_TOKEN"})
	require.True(testInstance, errors.Is(resolveError, context.Canceled))
}

func TestLoadEnvironmentFile(testInstance *testing.T) {
	directory := testInstance.TempDir()
	environmentFile := filepath.Join(directory, ".env")
	require.NoError(testInstance, os.WriteFile(environmentFile, []byte("POPPER_TEST_DOTENV_TOKEN=from-file\nPOPPER_TEST_DOTENV_PRESET=from-file\n"), 0o600))

	testInstance.Setenv("POPPER_TEST_DOTENV_PRESET", "from-shell")
	testInstance.Setenv("POPPER_TEST_DOTENV_TOKEN", "")
	require.NoError(testInstance, os.Unsetenv("POPPER_TEST_DOTENV_TOKEN"))

	loaded, loadError := githubauth.LoadEnvironmentFile(environmentFile)
	require.NoError(testInstance, loadError)
	require.True(testInstance, loaded)
	require.Equal(testInstance, "from-file", os.Getenv("POPPER_TEST_DOTENV_TOKEN"))
	require.Equal(testInstance, "from-shell", os.Getenv("POPPER_TEST_DOTENV_PRESET"))

	missingLoaded, missingError := githubauth.LoadEnvironmentFile(filepath.Join(directory, "absent.env"))
	require.NoError(testInstance, missingError)
	require.False(testInstance, missingLoaded)

	emptyLoaded, emptyError := githubauth.LoadEnvironmentFile("  ")
	require.NoError(testInstance, emptyError)
	require.False(testInstance, emptyLoaded)
}
