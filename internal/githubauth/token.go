package githubauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	pathutils "github.com/temirov/popper/internal/utils/path"
)

// Environment variable names consulted when no token source is configured.
const (
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

const (
	tokenSourceSeparatorConstant               = ":"
	environmentTokenSourceTypeValueConstant    = "env"
	fileTokenSourceTypeValueConstant           = "file"
	environmentNameMissingErrorMessageConstant = "environment variable name must be provided"
	filePathMissingErrorMessageConstant        = "token file path must be provided"
	environmentTokenMissingTemplateConstant    = "environment variable %s is not set"
	fileReadErrorTemplateConstant              = "unable to read token file %s: %w"
	fileTokenEmptyErrorTemplateConstant        = "token file %s is empty"
	unsupportedTokenSourceTemplateConstant     = "unsupported token source type %q"
	fallbackTokenMissingTemplateConstant       = "none of %s is set"
)

// ErrTokenMissing marks every failure to obtain a non-empty token.
var ErrTokenMissing = errors.New("github token not available")

var fallbackTokenPreference = []string{
	EnvGitHubToken,
	EnvGitHubCLIToken,
	EnvGitHubAPIToken,
}

// TokenSourceType enumerates the supported token retrieval mechanisms.
type TokenSourceType string

// Token source type enumerations.
const (
	TokenSourceTypeEnvironment TokenSourceType = TokenSourceType(environmentTokenSourceTypeValueConstant)
	TokenSourceTypeFile        TokenSourceType = TokenSourceType(fileTokenSourceTypeValueConstant)
	TokenSourceTypeFallback    TokenSourceType = ""
)

// TokenSource specifies how to locate the token.
type TokenSource struct {
	Type      TokenSourceType
	Reference string
}

// String renders the source in its textual declaration form.
func (source TokenSource) String() string {
	if source.Type == TokenSourceTypeFallback {
		return strings.Join(fallbackTokenPreference, ",")
	}
	return string(source.Type) + tokenSourceSeparatorConstant + source.Reference
}

// ParseTokenSource interprets textual token source declarations. A bare name is
// treated as an environment variable and an empty value selects the fallback chain.
func ParseTokenSource(sourceValue string) (TokenSource, error) {
	trimmedValue := strings.TrimSpace(sourceValue)
	if len(trimmedValue) == 0 {
		return TokenSource{Type: TokenSourceTypeFallback}, nil
	}

	components := strings.SplitN(trimmedValue, tokenSourceSeparatorConstant, 2)
	if len(components) == 1 {
		return TokenSource{Type: TokenSourceTypeEnvironment, Reference: trimmedValue}, nil
	}

	sourceType := strings.ToLower(strings.TrimSpace(components[0]))
	reference := strings.TrimSpace(components[1])

	switch sourceType {
	case environmentTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSource{}, errors.New(environmentNameMissingErrorMessageConstant)
		}
		return TokenSource{Type: TokenSourceTypeEnvironment, Reference: reference}, nil
	case fileTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSource{}, errors.New(filePathMissingErrorMessageConstant)
		}
		return TokenSource{Type: TokenSourceTypeFile, Reference: reference}, nil
	default:
		return TokenSource{}, fmt.Errorf(unsupportedTokenSourceTemplateConstant, sourceType)
	}
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// TokenResolver retrieves tokens from configured sources.
type TokenResolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
	homeExpander      *pathutils.HomeExpander
}

// NewTokenResolver creates a token resolver with optional dependency overrides.
func NewTokenResolver(environmentLookup EnvironmentLookup, fileReader FileReader) *TokenResolver {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	if fileReader == nil {
		fileReader = os.ReadFile
	}
	return &TokenResolver{
		environmentLookup: environmentLookup,
		fileReader:        fileReader,
		homeExpander:      pathutils.NewHomeExpander(),
	}
}

// ResolveToken returns the trimmed token declared by the source. Missing or empty tokens wrap ErrTokenMissing.
func (resolver *TokenResolver) ResolveToken(resolutionContext context.Context, source TokenSource) (string, error) {
	if resolutionContext != nil {
		if contextError := resolutionContext.Err(); contextError != nil {
			return "", contextError
		}
	}

	switch source.Type {
	case TokenSourceTypeEnvironment:
		if value, found := resolver.lookupNonEmpty(source.Reference); found {
			return value, nil
		}
		return "", fmt.Errorf("%w: "+environmentTokenMissingTemplateConstant, ErrTokenMissing, source.Reference)
	case TokenSourceTypeFile:
		filePath := resolver.homeExpander.Expand(source.Reference)
		contents, readError := resolver.fileReader(filePath)
		if readError != nil {
			return "", fmt.Errorf("%w: "+fileReadErrorTemplateConstant, ErrTokenMissing, filePath, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf("%w: "+fileTokenEmptyErrorTemplateConstant, ErrTokenMissing, filePath)
		}
		return trimmedValue, nil
	case TokenSourceTypeFallback:
		for _, key := range fallbackTokenPreference {
			if value, found := resolver.lookupNonEmpty(key); found {
				return value, nil
			}
		}
		return "", fmt.Errorf("%w: "+fallbackTokenMissingTemplateConstant, ErrTokenMissing, strings.Join(fallbackTokenPreference, ", "))
	default:
		return "", fmt.Errorf(unsupportedTokenSourceTemplateConstant, source.Type)
	}
}

func (resolver *TokenResolver) lookupNonEmpty(key string) (string, bool) {
	value, found := resolver.environmentLookup(key)
	if !found {
		return "", false
	}
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return "", false
	}
	return value, true
}
