package logging

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  zapcore.Level
	Format string // json or console

	Stdout bool
	OTEL   bool

	Sampling SamplingConfig
	Caller   bool

	// Fields are attached to every entry.
	Fields map[string]string
	// Redact lists key fragments whose field values are replaced.
	Redact []string
}

// SamplingConfig keeps the first Initial entries with the same level and
// message per Tick, then every Thereafter-th one.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// NewDefaultConfig returns info level json logging to stdout.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Stdout: true,
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Caller: true,
		Redact: []string{"password", "secret", "token", "authorization", "credential", "api_key"},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Stdout && !c.OTEL {
		return errors.New("at least one output must be enabled")
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			return errors.New("sampling tick must be positive")
		}
		if c.Sampling.Initial < 1 || c.Sampling.Thereafter < 0 {
			return fmt.Errorf("invalid sampling rates %d/%d", c.Sampling.Initial, c.Sampling.Thereafter)
		}
	}
	for k := range c.Fields {
		if strings.TrimSpace(k) == "" {
			return errors.New("field key cannot be empty")
		}
	}
	return nil
}
