package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// ErrUnknownRepository indicates a repository name absent from the configuration.
var ErrUnknownRepository = errors.New("unknown repository")

// EnvPrefix prefixes environment overrides, e.g. RDHIST_LOG_LEVEL.
const EnvPrefix = "RDHIST"

// Config represents the top-level YAML configuration file.
type Config struct {
	Include      []string           `mapstructure:"include"      yaml:"include,omitempty"`
	Log          LogConfig          `mapstructure:"log"          yaml:"log"`
	Display      DisplayConfig      `mapstructure:"display"      yaml:"display"`
	Scan         ScanConfig         `mapstructure:"scan"         yaml:"scan"`
	Repositories []RepositoryConfig `mapstructure:"repositories" yaml:"repositories"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level       string `mapstructure:"level"       yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// DisplayConfig controls how paths are shown.
type DisplayConfig struct {
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
}

// ScanConfig bounds history computations.
type ScanConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Workers int           `mapstructure:"workers" yaml:"workers"`
}

// RepositoryConfig names a repository on disk.
type RepositoryConfig struct {
	Name         string `mapstructure:"name"           yaml:"name"`
	Path         string `mapstructure:"path"           yaml:"path"`
	Encoding     string `mapstructure:"encoding"       yaml:"encoding,omitempty"`
	CharsToQuote string `mapstructure:"chars_to_quote" yaml:"chars_to_quote,omitempty"` // overrides the repository's own file
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("display.encoding", "utf-8")
	v.SetDefault("scan.timeout", "0s")
	v.SetDefault("scan.workers", 4)
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, and decodes it into the Config struct.
// An empty path yields the defaults, still subject to environment overrides.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Read base configuration
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
		}
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           c,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return fmt.Errorf("%w: decode config: %v", ErrLoadConfig, err)
	}

	return c.Validate()
}

// Validate checks values that decoding alone cannot.
func (c *Config) Validate() error {
	var level zapcore.Level
	if err := level.Set(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrValidateConfig, c.Log.Level)
	}
	if c.Scan.Timeout < 0 {
		return fmt.Errorf("%w: scan.timeout must not be negative", ErrValidateConfig)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("%w: scan.workers must be at least 1", ErrValidateConfig)
	}

	seen := make(map[string]bool, len(c.Repositories))
	for i, repo := range c.Repositories {
		if repo.Name == "" || repo.Path == "" {
			return fmt.Errorf("%w: repositories[%d] needs a name and a path", ErrValidateConfig, i)
		}
		if seen[repo.Name] {
			return fmt.Errorf("%w: duplicate repository %q", ErrValidateConfig, repo.Name)
		}
		seen[repo.Name] = true
	}
	return nil
}

// Repository returns the repository configured under name. Its encoding
// falls back to display.encoding.
func (c *Config) Repository(name string) (RepositoryConfig, error) {
	for _, repo := range c.Repositories {
		if repo.Name == name {
			if repo.Encoding == "" {
				repo.Encoding = c.Display.Encoding
			}
			return repo, nil
		}
	}
	return RepositoryConfig{}, fmt.Errorf("%w: %q", ErrUnknownRepository, name)
}
