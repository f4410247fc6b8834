package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/popper/internal/githubauth"
	"github.com/temirov/popper/internal/utils"
)

const (
	mirrorCommandUseConstant                 = "mirror"
	mirrorCommandShortDescriptionConstant    = "Publish bucket package versions as GitHub releases"
	mirrorCommandLongDescriptionConstant     = "mirror lists the package bucket, skips versions already released in the repository, and publishes every remaining version as a release with the package attached."
	unexpectedArgumentsErrorMessageConstant  = "mirror does not accept positional arguments"
	commandExecutionErrorTemplateConstant    = "mirror failed: %w"
	versionFailuresErrorTemplateConstant     = "mirror completed with failed versions: %w"
	configurationInvalidTemplateConstant     = "invalid mirror configuration: %w"
	tokenSourceParseErrorTemplateConstant    = "invalid token source: %w"
	environmentFileErrorTemplateConstant     = "unable to load environment file %s: %w"
	summaryWriteErrorTemplateConstant        = "unable to write summary: %w"
	repositoryFlagNameConstant               = "repository"
	repositoryFlagDescriptionConstant        = "Target GitHub repository (owner/name)"
	bucketURLFlagNameConstant                = "bucket-url"
	bucketURLFlagDescriptionConstant         = "Public base URL of the package bucket"
	listingSourceFlagNameConstant            = "listing-source"
	listingSourceFlagDescriptionConstant     = "Bucket listing client: http or s3"
	orderingFlagNameConstant                 = "ordering"
	orderingFlagDescriptionConstant          = "Processing order: ascending, listing, or reverse_listing"
	skipIfExistsFlagNameConstant             = "skip-if-exists"
	skipIfExistsFlagDescriptionConstant      = "Reuse files already present in the download directory"
	downloadDirectoryFlagNameConstant        = "download-dir"
	downloadDirectoryFlagDescriptionConstant = "Directory receiving downloaded packages"
	tokenSourceFlagNameConstant              = "token-source"
	tokenSourceFlagDescriptionConstant       = "Token source (env:NAME or file:/path)"
	dryRunFlagNameConstant                   = "dry-run"
	dryRunFlagDescriptionConstant            = "List and reconcile without downloading or publishing"
	timeoutFlagNameConstant                  = "timeout"
	timeoutFlagDescriptionConstant           = "Abort the run after this duration (0 disables)"
	reportFormatFlagNameConstant             = "report-format"
	reportFormatFlagDescriptionConstant      = "Summary format: text or yaml"
	environmentFileLoadedMessageConstant     = "Environment file loaded"
	environmentFileLogFieldConstant          = "env_file"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current mirror configuration.
type ConfigurationProvider func() Configuration

// TokenResolver retrieves the GitHub token from a configured source.
type TokenResolver interface {
	ResolveToken(resolutionContext context.Context, source githubauth.TokenSource) (string, error)
}

// EnvironmentFileLoader populates the process environment from a dotenv file.
type EnvironmentFileLoader func(filePath string) (bool, error)

// CommandBuilder assembles the mirror command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	ServiceResolver       ServiceResolver
	TokenResolver         TokenResolver
	EnvironmentFileLoader EnvironmentFileLoader
	ContextAccessor       utils.CommandContextAccessor
	HTTPClient            *http.Client
	APITransport          http.RoundTripper
	OutputWriter          io.Writer
}

// Build constructs the mirror command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	mirrorCommand := &cobra.Command{
		Use:   mirrorCommandUseConstant,
		Short: mirrorCommandShortDescriptionConstant,
		Long:  mirrorCommandLongDescriptionConstant,
		RunE:  builder.runMirror,
	}

	mirrorCommand.Flags().String(repositoryFlagNameConstant, "", repositoryFlagDescriptionConstant)
	mirrorCommand.Flags().String(bucketURLFlagNameConstant, "", bucketURLFlagDescriptionConstant)
	mirrorCommand.Flags().String(listingSourceFlagNameConstant, "", listingSourceFlagDescriptionConstant)
	mirrorCommand.Flags().String(orderingFlagNameConstant, "", orderingFlagDescriptionConstant)
	mirrorCommand.Flags().Bool(skipIfExistsFlagNameConstant, true, skipIfExistsFlagDescriptionConstant)
	mirrorCommand.Flags().String(downloadDirectoryFlagNameConstant, "", downloadDirectoryFlagDescriptionConstant)
	mirrorCommand.Flags().String(tokenSourceFlagNameConstant, "", tokenSourceFlagDescriptionConstant)
	mirrorCommand.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagDescriptionConstant)
	mirrorCommand.Flags().Duration(timeoutFlagNameConstant, 0, timeoutFlagDescriptionConstant)
	mirrorCommand.Flags().String(reportFormatFlagNameConstant, "", reportFormatFlagDescriptionConstant)

	return mirrorCommand, nil
}

func (builder *CommandBuilder) runMirror(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}

	configuration, configurationError := builder.parseConfiguration(command)
	if configurationError != nil {
		return configurationError
	}
	reportFormat, _ := ParseReportFormat(configuration.ReportFormat)

	logger := builder.resolveLogger()

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	if _, runIdentifierAvailable := builder.ContextAccessor.RunIdentifier(executionContext); !runIdentifierAvailable {
		executionContext = builder.ContextAccessor.WithRunIdentifier(executionContext, "")
	}
	if configuration.Timeout > 0 {
		var cancel context.CancelFunc
		executionContext, cancel = context.WithTimeout(executionContext, configuration.Timeout)
		defer cancel()
	}

	token, tokenError := builder.resolveToken(executionContext, logger, configuration)
	if tokenError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, tokenError)
	}

	executor, resolveError := builder.resolveService(logger, configuration, token)
	if resolveError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, resolveError)
	}

	summary, runError := executor.Run(executionContext, RunOptions{
		Repository: configuration.Repository,
		TagPrefix:  configuration.TagPrefix,
		Token:      token,
		DryRun:     configuration.DryRun,
	})

	if writeError := WriteSummary(builder.resolveOutput(command), summary, reportFormat); writeError != nil && runError == nil {
		runError = fmt.Errorf(summaryWriteErrorTemplateConstant, writeError)
	}

	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, runError)
	}
	if failuresError := summary.Err(); failuresError != nil {
		return fmt.Errorf(versionFailuresErrorTemplateConstant, failuresError)
	}
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) (Configuration, error) {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if overrideError := applyFlagOverrides(command.Flags(), &configuration); overrideError != nil {
		return Configuration{}, overrideError
	}

	configuration = configuration.Sanitize()
	if validationError := configuration.Validate(); validationError != nil {
		return Configuration{}, fmt.Errorf(configurationInvalidTemplateConstant, validationError)
	}
	return configuration, nil
}

// applyFlagOverrides copies explicitly provided flag values over the configuration.
func applyFlagOverrides(flagSet *pflag.FlagSet, configuration *Configuration) error {
	stringOverrides := []struct {
		flagName string
		target   *string
	}{
		{flagName: repositoryFlagNameConstant, target: &configuration.Repository},
		{flagName: bucketURLFlagNameConstant, target: &configuration.BucketURL},
		{flagName: listingSourceFlagNameConstant, target: &configuration.ListingSource},
		{flagName: orderingFlagNameConstant, target: &configuration.Ordering},
		{flagName: downloadDirectoryFlagNameConstant, target: &configuration.DownloadDirectory},
		{flagName: tokenSourceFlagNameConstant, target: &configuration.TokenSource},
		{flagName: reportFormatFlagNameConstant, target: &configuration.ReportFormat},
	}
	for _, override := range stringOverrides {
		flagValue, flagError := flagSet.GetString(override.flagName)
		if flagError != nil {
			return flagError
		}
		*override.target = selectStringValue(flagValue, *override.target)
	}

	boolOverrides := []struct {
		flagName string
		target   *bool
	}{
		{flagName: skipIfExistsFlagNameConstant, target: &configuration.SkipIfExists},
		{flagName: dryRunFlagNameConstant, target: &configuration.DryRun},
	}
	for _, override := range boolOverrides {
		if !flagSet.Changed(override.flagName) {
			continue
		}
		flagValue, flagError := flagSet.GetBool(override.flagName)
		if flagError != nil {
			return flagError
		}
		*override.target = flagValue
	}

	if flagSet.Changed(timeoutFlagNameConstant) {
		timeoutValue, timeoutError := flagSet.GetDuration(timeoutFlagNameConstant)
		if timeoutError != nil {
			return timeoutError
		}
		configuration.Timeout = timeoutValue
	}

	return nil
}

func (builder *CommandBuilder) resolveToken(executionContext context.Context, logger *zap.Logger, configuration Configuration) (string, error) {
	environmentFileLoader := builder.EnvironmentFileLoader
	if environmentFileLoader == nil {
		environmentFileLoader = githubauth.LoadEnvironmentFile
	}
	loaded, loadError := environmentFileLoader(configuration.EnvironmentFile)
	if loadError != nil {
		return "", fmt.Errorf(environmentFileErrorTemplateConstant, configuration.EnvironmentFile, loadError)
	}
	if loaded {
		logger.Debug(environmentFileLoadedMessageConstant, zap.String(environmentFileLogFieldConstant, configuration.EnvironmentFile))
	}

	tokenSource, parseError := githubauth.ParseTokenSource(configuration.TokenSource)
	if parseError != nil {
		return "", fmt.Errorf(tokenSourceParseErrorTemplateConstant, parseError)
	}

	tokenResolver := builder.TokenResolver
	if tokenResolver == nil {
		tokenResolver = githubauth.NewTokenResolver(nil, nil)
	}
	token, resolveError := tokenResolver.ResolveToken(executionContext, tokenSource)
	if resolveError != nil {
		if errors.Is(resolveError, githubauth.ErrTokenMissing) {
			return "", AuthError{Cause: resolveError}
		}
		return "", resolveError
	}
	return token, nil
}

func (builder *CommandBuilder) resolveService(logger *zap.Logger, configuration Configuration, token string) (RunExecutor, error) {
	if builder.ServiceResolver != nil {
		return builder.ServiceResolver.Resolve(logger, configuration, token)
	}

	defaultResolver := &DefaultServiceResolver{
		HTTPClient:      builder.HTTPClient,
		APITransport:    builder.APITransport,
		ContextAccessor: builder.ContextAccessor,
	}
	return defaultResolver.Resolve(logger, configuration, token)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveOutput(command *cobra.Command) io.Writer {
	if builder.OutputWriter != nil {
		return builder.OutputWriter
	}
	return command.OutOrStdout()
}

func selectStringValue(flagValue string, configurationValue string) string {
	trimmedFlagValue := strings.TrimSpace(flagValue)
	if len(trimmedFlagValue) > 0 {
		return trimmedFlagValue
	}

	return strings.TrimSpace(configurationValue)
}
