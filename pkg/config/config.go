package config

// Package config provides a reusable loader for kmesh configuration files
// and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.2.0

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nodemesh/kmesh/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the unified bootstrap configuration for a kmesh handle. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Crypto struct {
		Model      string `mapstructure:"model" json:"model"`
		CipherType string `mapstructure:"cipher_type" json:"cipher_type"`
		HashType   string `mapstructure:"hash_type" json:"hash_type"`
		// PrivateKey is hex-encoded; it is handed to core.CryptoConfig.PrivateKey
		// after decoding. Operators should override this per deployment rather
		// than ship the repository default to production.
		PrivateKey string `mapstructure:"private_key" json:"private_key"`
	} `mapstructure:"crypto" json:"crypto"`

	Link struct {
		TimeoutInterval time.Duration `mapstructure:"timeout_interval" json:"timeout_interval"`
		PingInterval    time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
		PrecisionWindow int           `mapstructure:"precision_window" json:"precision_window"`
	} `mapstructure:"link" json:"link"`

	PMTUD struct {
		Freq time.Duration `mapstructure:"freq" json:"freq"`
	} `mapstructure:"pmtud" json:"pmtud"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is
// loaded.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // optional local .env overrides, absence is not an error

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the KMESH_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("KMESH_ENV", ""))
}
