// Package config loads the command line tool's settings from the environment.
package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds the decoding and logging settings. Command line flags
// override these values.
type Config struct {
	LogLevel    slog.Level `env:"AQUARANA_LOG_LEVEL, default=info"`
	ApplyGain   bool       `env:"AQUARANA_APPLY_GAIN, default=true"`
	TrimPreSkip bool       `env:"AQUARANA_TRIM_PRESKIP, default=true"`
}

// LoadEnv loads variables from a .env file in the working directory without
// overriding ones already set. A missing file is not an error.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// NewConfigFromEnv reads the Config from the process environment.
func NewConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
