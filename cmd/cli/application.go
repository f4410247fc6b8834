package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/popper/internal/mirror"
	"github.com/temirov/popper/internal/utils"
)

const (
	applicationNameConstant             = "popper"
	applicationShortDescriptionConstant = "Mirror bucket packages to GitHub releases"
	applicationLongDescriptionConstant  = "popper publishes every package version found in an object storage bucket as a GitHub release with the package attached."
	configFileFlagNameConstant          = "config"
	configFileFlagUsageConstant         = "Configuration file overriding the embedded defaults (YAML or JSON)."
	logLevelFlagNameConstant            = "log-level"
	logLevelFlagUsageConstant           = "Log level: debug, info, warn, or error."
	logFormatFlagNameConstant           = "log-format"
	logFormatFlagUsageConstant          = "Log encoding: structured or console."
	logLevelSettingKeyConstant          = "common.log_level"
	logFormatSettingKeyConstant         = "common.log_format"
	mirrorSettingsSectionConstant       = "mirror"
	environmentPrefixConstant           = "POPPER"
	configurationNameConstant           = "config"
	configurationTypeConstant           = "yaml"
	workingDirectorySearchPathConstant  = "."
	settingsLoadedMessageConstant       = "settings loaded"
	logLevelFieldConstant               = "log_level"
	logFormatFieldConstant              = "log_format"
	configFileFieldConstant             = "config_file"
	settingsLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerSetupErrorTemplateConstant    = "unable to create logger: %w"
	loggerFlushErrorTemplateConstant    = "unable to flush logger: %w"
)

// applicationVersion is replaced at build time with -ldflags "-X github.com/temirov/popper/cmd/cli.applicationVersion=v1.2.3".
var applicationVersion = "dev"

// ApplicationConfiguration is the full settings tree: shared logging settings and the mirror section.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Mirror mirror.Configuration           `mapstructure:"mirror"`
}

// ApplicationCommonConfiguration holds the logging settings.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type rootFlagValues struct {
	configurationFilePath string
	logLevel              string
	logFormat             string
}

// Application owns the popper root command and the state shared with its subcommands.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	flags                  rootFlagValues
	commandContextAccessor utils.CommandContextAccessor
}

// NewApplication builds the root command with the mirror subcommand attached.
func NewApplication() *Application {
	loader := utils.NewConfigurationLoader(configurationNameConstant, configurationTypeConstant, environmentPrefixConstant, configurationSearchPaths())
	loader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    loader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}
	application.rootCommand = application.buildRootCommand()

	mirrorCommand, mirrorBuildError := application.mirrorCommandBuilder().Build()
	if mirrorBuildError == nil {
		application.rootCommand.AddCommand(mirrorCommand)
	}

	return application
}

// Execute runs the command tree and flushes the logger. A command error takes precedence over a flush error.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	flushError := syncLogger(application.logger)
	if executionError != nil {
		return executionError
	}
	if flushError != nil {
		return fmt.Errorf(loggerFlushErrorTemplateConstant, flushError)
	}
	return nil
}

// Execute builds a fresh application and runs it against os.Args.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) buildRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       applicationVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, _ []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
	}
	rootCommand.SetContext(context.Background())

	persistentFlags := rootCommand.PersistentFlags()
	persistentFlags.StringVar(&application.flags.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.flags.logLevel, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlags.StringVar(&application.flags.logFormat, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	return rootCommand
}

func (application *Application) mirrorCommandBuilder() *mirror.CommandBuilder {
	return &mirror.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() mirror.Configuration {
			return application.configuration.Mirror
		},
		ContextAccessor: application.commandContextAccessor,
	}
}

func configurationSearchPaths() []string {
	searchPaths := []string{workingDirectorySearchPathConstant}
	if userConfigurationDirectory, userConfigurationError := os.UserConfigDir(); userConfigurationError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, applicationNameConstant))
	}
	return searchPaths
}

func defaultSettings() map[string]any {
	settings := mirror.DefaultConfigurationValues(mirrorSettingsSectionConstant)
	settings[logLevelSettingKeyConstant] = string(utils.LogLevelInfo)
	settings[logFormatSettingKeyConstant] = string(utils.LogFormatStructured)
	return settings
}

// initializeConfiguration loads settings, applies root flag overrides, builds the logger and
// records the configuration file in the command context.
func (application *Application) initializeConfiguration(command *cobra.Command) error {
	metadata, loadError := application.configurationLoader.LoadConfiguration(application.flags.configurationFilePath, defaultSettings(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(settingsLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = metadata

	if flagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.flags.logLevel
	}
	if flagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.flags.logFormat
	}

	logger, loggerError := application.buildLogger()
	if loggerError != nil {
		return fmt.Errorf(loggerSetupErrorTemplateConstant, loggerError)
	}
	application.logger = logger
	application.logger.Debug(settingsLoadedMessageConstant,
		zap.String(logLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(logFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configFileFieldConstant, metadata.ConfigFileUsed),
	)

	application.attachConfigurationPath(command, metadata.ConfigFileUsed)
	return nil
}

func (application *Application) buildLogger() (*zap.Logger, error) {
	logLevel, logLevelError := utils.ParseLogLevel(application.configuration.Common.LogLevel)
	if logLevelError != nil {
		return nil, logLevelError
	}
	logFormat, logFormatError := utils.ParseLogFormat(application.configuration.Common.LogFormat)
	if logFormatError != nil {
		return nil, logFormatError
	}
	return application.loggerFactory.CreateLogger(logLevel, logFormat)
}

func (application *Application) attachConfigurationPath(command *cobra.Command, configurationFilePath string) {
	if command == nil {
		return
	}
	updatedContext := application.commandContextAccessor.WithConfigurationFilePath(command.Context(), configurationFilePath)
	command.SetContext(updatedContext)
	if rootCommand := command.Root(); rootCommand != nil && rootCommand != command {
		rootCommand.SetContext(updatedContext)
	}
}

// flagChanged reports whether a local or inherited flag was set on the command line.
func flagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}
	if flag := command.Flag(flagName); flag != nil && flag.Changed {
		return true
	}
	rootFlag := command.Root().PersistentFlags().Lookup(flagName)
	return rootFlag != nil && rootFlag.Changed
}

// syncLogger flushes buffered entries. Terminals and pipes reject fsync, which is not a failure.
func syncLogger(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	syncError := logger.Sync()
	if syncError == nil || errors.Is(syncError, syscall.ENOTSUP) || errors.Is(syncError, syscall.EINVAL) || errors.Is(syncError, syscall.ENOTTY) {
		return nil
	}
	return syncError
}
