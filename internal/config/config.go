// Package config loads musicmaid's runtime configuration: the database
// connection string, the directory tree to ingest, and the ingest
// throttle. Values come from an optional musicmaid.yaml (searched in the
// working directory and $HOME), overridden by MUSICMAID_*-prefixed
// environment variables, per spec §5/§6.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultMaxConcurrentTasks bounds simultaneously open files during ingest
// when no override is configured (spec §5).
const DefaultMaxConcurrentTasks = 8

// ThrottleConfig bounds concurrent ingest work (spec §5).
type ThrottleConfig struct {
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
}

// Config is the top-level configuration surface consumed by cmd/musicmaid.
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	RootDir     string `mapstructure:"root_dir"`
	Throttle    ThrottleConfig
}

// Load reads configuration from musicmaid.yaml (if present) and the
// environment, applying defaults for anything left unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("musicmaid")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix("musicmaid")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database_url", "DATABASE_URL")

	v.SetDefault("throttle.max_concurrent_tasks", DefaultMaxConcurrentTasks)
	v.SetDefault("root_dir", ".")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, errors.Wrap(err, "reading musicmaid.yaml")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	if cfg.Throttle.MaxConcurrentTasks <= 0 {
		cfg.Throttle.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	return &cfg, nil
}
