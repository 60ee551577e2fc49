package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files
	AppName = "psdtool"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "PSDTOOL"
)

// AppConfig holds the command line tool configuration
type AppConfig struct {
	Log struct {
		Debug  bool   `mapstructure:"debug"`
		Format string `mapstructure:"format"` // json or human
		File   string `mapstructure:"file"`
	} `mapstructure:"log"`

	Export struct {
		Format      string  `mapstructure:"format"`      // png or tiff
		Compression string  `mapstructure:"compression"` // none, zstd, lz4, xz or bzip2 for raw dumps
		Scale       float64 `mapstructure:"scale"`
	} `mapstructure:"export"`

	Metadata struct {
		Format string `mapstructure:"format"` // json, yaml or plist
	} `mapstructure:"metadata"`
}

var (
	exportFormats      = []string{"png", "tiff"}
	exportCompressions = []string{"none", "zstd", "lz4", "xz", "bzip2"}
	metadataFormats    = []string{"json", "yaml", "plist"}
	logFormats         = []string{"json", "human"}
)

// New returns a viper instance with defaults and environment binding set
// up. Command line flags are bound on top of it by the caller.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.debug", false)
	v.SetDefault("log.format", "human")
	v.SetDefault("log.file", "")

	v.SetDefault("export.format", "png")
	v.SetDefault("export.compression", "none")
	v.SetDefault("export.scale", 1.0)

	v.SetDefault("metadata.format", "json")
}

// Load reads the config file, if any, and decodes the settings. Without an
// explicit file the current directory is searched for psdtool.yaml and a
// missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*AppConfig, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c *AppConfig) Validate() error {
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"log.format", c.Log.Format, logFormats},
		{"export.format", c.Export.Format, exportFormats},
		{"export.compression", c.Export.Compression, exportCompressions},
		{"metadata.format", c.Metadata.Format, metadataFormats},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return fmt.Errorf("invalid %s %q, expected one of %s", check.key, check.value, strings.Join(check.allowed, ", "))
		}
	}
	if c.Export.Scale <= 0 {
		return fmt.Errorf("invalid export.scale %g, must be positive", c.Export.Scale)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
