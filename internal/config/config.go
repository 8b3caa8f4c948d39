// Package config loads the code generator settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings read once per cold start.
type Config struct {
	Environment string

	// Bucket receives the generated artifacts.
	Bucket       string
	KeyPrefix    string
	KeyExtension string
	// UniqueKeys appends a request-unique suffix to every object key so
	// two invocations in the same second do not overwrite each other.
	UniqueKeys bool

	Region       string
	ModelID      string
	ReadTimeout  time.Duration
	MaxAttempts  int
	StrictStatus bool

	LogLevel slog.Level
}

// Load reads the configuration from environment variables, applying defaults
// for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:  getenv("ENVIRONMENT", "dev"),
		Bucket:       getenv("OUTPUT_BUCKET", "bedrock-course-bucket"),
		KeyPrefix:    getenv("OUTPUT_KEY_PREFIX", "code-output/"),
		KeyExtension: getenv("OUTPUT_KEY_EXTENSION", ".py"),
		Region:       getenv("BEDROCK_REGION", "us-west-2"),
		ModelID:      getenv("BEDROCK_MODEL_ID", "anthropic.claude-v2"),
	}

	var err error
	if cfg.UniqueKeys, err = parseBool("UNIQUE_OUTPUT_KEYS", false); err != nil {
		return nil, err
	}
	if cfg.StrictStatus, err = parseBool("STRICT_STATUS", false); err != nil {
		return nil, err
	}

	timeout := getenv("BEDROCK_READ_TIMEOUT", "300s")
	cfg.ReadTimeout, err = time.ParseDuration(timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid BEDROCK_READ_TIMEOUT %q: %w", timeout, err)
	}
	if cfg.ReadTimeout <= 0 {
		return nil, fmt.Errorf("BEDROCK_READ_TIMEOUT must be positive")
	}

	attempts := getenv("BEDROCK_MAX_ATTEMPTS", "3")
	cfg.MaxAttempts, err = strconv.Atoi(attempts)
	if err != nil {
		return nil, fmt.Errorf("invalid BEDROCK_MAX_ATTEMPTS %q: %w", attempts, err)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("BEDROCK_MAX_ATTEMPTS must be at least 1")
	}

	level := getenv("LOG_LEVEL", "info")
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("OUTPUT_BUCKET is required")
	}

	return cfg, nil
}

// NewLogger returns a JSON logger on stdout at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: c.LogLevel,
	})).With("environment", c.Environment)
}

func getenv(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func parseBool(name string, fallback bool) (bool, error) {
	v := getenv(name, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return b, nil
}
