package cli

import _ "embed"

//go:embed default_config.yaml
var defaultConfigurationDocument []byte

// EmbeddedDefaultConfiguration returns a copy of the built-in settings document and its format.
// The loader merges it beneath any user configuration file.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), defaultConfigurationDocument...), configurationTypeConstant
}
