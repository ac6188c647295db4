package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ligustah/chunkfetch/internal/progress"
)

// Config defines configuration for the chunkfetch CLI.
type Config struct {
	URL           string     `yaml:"url"`
	Bucket        string     `yaml:"bucket"`
	Object        string     `yaml:"object"`
	Workers       int        `yaml:"workers"`
	PartSize      int64      `yaml:"part_size"`
	ChunkSize     int64      `yaml:"chunk_size"`
	Length        int64      `yaml:"length"`
	DisableStream bool       `yaml:"disable_stream"`
	DisableRange  bool       `yaml:"disable_range"`
	Progress      bool       `yaml:"progress"`
	Force         bool       `yaml:"force"`
	LogLevel      string     `yaml:"log_level"`
	HTTP          HTTPConfig `yaml:"http"`
}

// HTTPConfig defines transport behavior.
type HTTPConfig struct {
	HeaderTimeout  time.Duration `yaml:"header_timeout"`
	BytesPerSecond int64         `yaml:"bytes_per_second"`
	UserAgent      string        `yaml:"user_agent"`
	Buffered       bool          `yaml:"buffered"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:   8,
		PartSize:  8 * 1024 * 1024, // 8MiB
		ChunkSize: 64 * 1024,       // 64KiB
		LogLevel:  "info",
		HTTP: HTTPConfig{
			HeaderTimeout: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	URL           string         `yaml:"url"`
	Bucket        string         `yaml:"bucket"`
	Object        string         `yaml:"object"`
	Workers       int            `yaml:"workers"`
	PartSize      string         `yaml:"part_size"`
	ChunkSize     string         `yaml:"chunk_size"`
	Length        int64          `yaml:"length"`
	DisableStream bool           `yaml:"disable_stream"`
	DisableRange  bool           `yaml:"disable_range"`
	Progress      bool           `yaml:"progress"`
	Force         bool           `yaml:"force"`
	LogLevel      string         `yaml:"log_level"`
	HTTP          yamlHTTPConfig `yaml:"http"`
}

type yamlHTTPConfig struct {
	HeaderTimeout  string `yaml:"header_timeout"`
	BytesPerSecond string `yaml:"bytes_per_second"`
	UserAgent      string `yaml:"user_agent"`
	Buffered       bool   `yaml:"buffered"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.URL != "" {
		cfg.URL = yc.URL
	}
	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.Object != "" {
		cfg.Object = yc.Object
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.PartSize != "" {
		size, err := progress.ParseBytes(yc.PartSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse part_size: %w", err)
		}
		cfg.PartSize = size
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	if yc.Length != 0 {
		cfg.Length = yc.Length
	}
	cfg.DisableStream = yc.DisableStream
	cfg.DisableRange = yc.DisableRange
	cfg.Progress = yc.Progress
	cfg.Force = yc.Force
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.HTTP.HeaderTimeout != "" {
		d, err := time.ParseDuration(yc.HTTP.HeaderTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.header_timeout: %w", err)
		}
		cfg.HTTP.HeaderTimeout = d
	}
	if yc.HTTP.BytesPerSecond != "" {
		n, err := progress.ParseBytes(yc.HTTP.BytesPerSecond)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.bytes_per_second: %w", err)
		}
		cfg.HTTP.BytesPerSecond = n
	}
	if yc.HTTP.UserAgent != "" {
		cfg.HTTP.UserAgent = yc.HTTP.UserAgent
	}
	cfg.HTTP.Buffered = yc.HTTP.Buffered

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CHUNKFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("CHUNKFETCH_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("CHUNKFETCH_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("CHUNKFETCH_OBJECT"); v != "" {
		c.Object = v
	}
	if v := os.Getenv("CHUNKFETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CHUNKFETCH_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("CHUNKFETCH_PART_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse CHUNKFETCH_PART_SIZE: %w", err)
		}
		c.PartSize = size
	}
	if v := os.Getenv("CHUNKFETCH_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse CHUNKFETCH_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("CHUNKFETCH_LENGTH"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse CHUNKFETCH_LENGTH: %w", err)
		}
		c.Length = n
	}
	if v := os.Getenv("CHUNKFETCH_DISABLE_STREAM"); v != "" {
		c.DisableStream = isTrue(v)
	}
	if v := os.Getenv("CHUNKFETCH_DISABLE_RANGE"); v != "" {
		c.DisableRange = isTrue(v)
	}
	if v := os.Getenv("CHUNKFETCH_PROGRESS"); v != "" {
		c.Progress = isTrue(v)
	}
	if v := os.Getenv("CHUNKFETCH_FORCE"); v != "" {
		c.Force = isTrue(v)
	}
	if v := os.Getenv("CHUNKFETCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CHUNKFETCH_HEADER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CHUNKFETCH_HEADER_TIMEOUT: %w", err)
		}
		c.HTTP.HeaderTimeout = d
	}
	if v := os.Getenv("CHUNKFETCH_BYTES_PER_SECOND"); v != "" {
		n, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse CHUNKFETCH_BYTES_PER_SECOND: %w", err)
		}
		c.HTTP.BytesPerSecond = n
	}
	if v := os.Getenv("CHUNKFETCH_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}

	return nil
}

func isTrue(v string) bool {
	return v == "true" || v == "1"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.PartSize <= 0 {
		return errors.New("config: part_size must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.PartSize < c.ChunkSize {
		return errors.New("config: part_size must not be smaller than chunk_size")
	}
	if c.Length < 0 {
		return errors.New("config: length must not be negative")
	}
	if c.HTTP.BytesPerSecond < 0 {
		return errors.New("config: http.bytes_per_second must not be negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.URL != "" {
		c.URL = override.URL
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Object != "" {
		c.Object = override.Object
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.PartSize != 0 {
		c.PartSize = override.PartSize
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Length != 0 {
		c.Length = override.Length
	}
	if override.DisableStream {
		c.DisableStream = true
	}
	if override.DisableRange {
		c.DisableRange = true
	}
	if override.Progress {
		c.Progress = true
	}
	if override.Force {
		c.Force = true
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.HTTP.HeaderTimeout != 0 {
		c.HTTP.HeaderTimeout = override.HTTP.HeaderTimeout
	}
	if override.HTTP.BytesPerSecond != 0 {
		c.HTTP.BytesPerSecond = override.HTTP.BytesPerSecond
	}
	if override.HTTP.UserAgent != "" {
		c.HTTP.UserAgent = override.HTTP.UserAgent
	}
	if override.HTTP.Buffered {
		c.HTTP.Buffered = true
	}
	return c
}
