package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorOldConstant              = "."
	environmentKeySeparatorNewConstant              = "_"
	listValueSeparatorConstant                      = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
)

// ConfigurationLoader layers embedded defaults, a configuration file and prefixed environment variables through Viper.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	environmentKeyReplacer    *strings.Replacer
	embeddedConfiguration     []byte
	embeddedConfigurationType string
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// NewConfigurationLoader creates a loader that searches the given paths and reads PREFIX_SECTION_KEY environment overrides.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	duplicatedSearchPaths := make([]string, len(searchPaths))
	copy(duplicatedSearchPaths, searchPaths)

	return &ConfigurationLoader{
		configurationName:      configurationName,
		configurationType:      configurationType,
		environmentPrefix:      environmentPrefix,
		searchPaths:            duplicatedSearchPaths,
		environmentKeyReplacer: strings.NewReplacer(environmentKeySeparatorOldConstant, environmentKeySeparatorNewConstant),
	}
}

// SetEmbeddedConfiguration stores configuration data merged beneath user-provided configuration files.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}

	loader.embeddedConfiguration = nil
	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)

	if len(configurationData) == 0 {
		return
	}

	duplicatedData := make([]byte, len(configurationData))
	copy(duplicatedData, configurationData)
	loader.embeddedConfiguration = duplicatedData
}

// LoadConfiguration populates targetConfiguration. Precedence, lowest first: defaultValues, embedded
// configuration, the configuration file, environment variables. Duration strings such as "90s" and
// comma separated lists decode into time.Duration and []string fields.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	settings, layeringError := loader.layeredSettings(configurationFilePath, defaultValues)
	if layeringError != nil {
		return LoadedConfiguration{}, layeringError
	}

	if unmarshalError := settings.Unmarshal(targetConfiguration, decodeHookOption()); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{ConfigFileUsed: settings.ConfigFileUsed()}, nil
}

func (loader *ConfigurationLoader) layeredSettings(configurationFilePath string, defaultValues map[string]any) (*viper.Viper, error) {
	settings := viper.New()
	settings.SetConfigName(loader.configurationName)

	if embeddedError := loader.mergeEmbedded(settings); embeddedError != nil {
		return nil, embeddedError
	}
	settings.SetConfigType(loader.configurationType)

	for defaultKey, defaultValue := range defaultValues {
		settings.SetDefault(defaultKey, defaultValue)
	}

	settings.SetEnvPrefix(loader.environmentPrefix)
	if loader.environmentKeyReplacer != nil {
		settings.SetEnvKeyReplacer(loader.environmentKeyReplacer)
	}
	settings.AutomaticEnv()

	if len(configurationFilePath) > 0 {
		settings.SetConfigFile(configurationFilePath)
	} else {
		for _, searchPath := range loader.searchPaths {
			settings.AddConfigPath(searchPath)
		}
	}

	if readError := settings.MergeInConfig(); readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(readError, &notFoundError) {
			return nil, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	}
	return settings, nil
}

func (loader *ConfigurationLoader) mergeEmbedded(settings *viper.Viper) error {
	if len(loader.embeddedConfiguration) == 0 {
		return nil
	}

	embeddedType := loader.embeddedConfigurationType
	if len(embeddedType) == 0 {
		embeddedType = loader.configurationType
	}
	settings.SetConfigType(embeddedType)
	if mergeError := settings.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
		return fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
	}
	return nil
}

func decodeHookOption() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
	))
}
