// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrDatabaseURLRequired is returned when DATABASE_URL is not set.
	ErrDatabaseURLRequired = errors.New("config: DATABASE_URL is required")
	// ErrOutputBucketRequired is returned when OUTPUT_BUCKET is not set.
	ErrOutputBucketRequired = errors.New("config: OUTPUT_BUCKET is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Job table settings
	DatabaseURL string `env:"DATABASE_URL, required" json:"-"` // Masked in JSON
	MaxDBConns  int    `env:"MAX_DB_CONNS, default=4" json:"max_db_conns"`

	// Blob store settings
	OutputBucket       string `env:"OUTPUT_BUCKET, default=outputs" json:"output_bucket"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// PublicURLs selects permanent public object URLs instead of
	// time-limited presigned URLs for completed outputs.
	PublicURLs   bool          `env:"PUBLIC_URLS, default=false" json:"public_urls"`
	SignedURLTTL time.Duration `env:"SIGNED_URL_TTL, default=24h" json:"signed_url_ttl"`

	// Pipeline settings
	TempDir                string        `env:"TEMP_DIR, default=/tmp/vidstitch" json:"temp_dir"`
	PollInterval           time.Duration `env:"POLL_INTERVAL, default=30s" json:"poll_interval"`
	MaxConcurrentDownloads int           `env:"MAX_CONCURRENT_DOWNLOADS, default=3" json:"max_concurrent_downloads"`
	DownloadTimeout        time.Duration `env:"DOWNLOAD_TIMEOUT, default=5m" json:"download_timeout"`
	TranscodeTimeout       time.Duration `env:"TRANSCODE_TIMEOUT, default=15m" json:"transcode_timeout"`

	// FFmpeg settings
	FFmpegPath string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	// FFmpegStreamCopy tries a stream copy (no re-encode) first and
	// falls back to re-encoding when the clips are incompatible.
	FFmpegStreamCopy bool `env:"FFMPEG_STREAM_COPY, default=false" json:"ffmpeg_stream_copy"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if blob store configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" || c.S3Endpoint != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "DATABASE_URL") {
			return nil, ErrDatabaseURLRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrDatabaseURLRequired
	}
	if c.OutputBucket == "" {
		return ErrOutputBucketRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, OutputBucket: %s, S3Region: %s, S3Endpoint: %s, PublicURLs: %t, TempDir: %s, PollInterval: %s, MaxConcurrentDownloads: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.OutputBucket,
		c.S3Region,
		c.S3Endpoint,
		c.PublicURLs,
		c.TempDir,
		c.PollInterval,
		c.MaxConcurrentDownloads,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
