// Package utils holds the CLI plumbing shared by commands: the Viper backed
// ConfigurationLoader, the zap LoggerFactory and the CommandContextAccessor
// that carries the configuration path and run identifier through a context.
package utils
