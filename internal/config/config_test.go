package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Workers != 8 {
		t.Errorf("expected default workers 8, got %d", cfg.Workers)
	}
	if cfg.PartSize != 8*1024*1024 {
		t.Errorf("expected default part size 8MiB, got %d", cfg.PartSize)
	}
	if cfg.ChunkSize != 64*1024 {
		t.Errorf("expected default chunk size 64KiB, got %d", cfg.ChunkSize)
	}
	if cfg.HTTP.HeaderTimeout != 30*time.Second {
		t.Errorf("expected default header timeout 30s, got %v", cfg.HTTP.HeaderTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return configPath
}

func TestLoadFromYAML(t *testing.T) {
	configPath := writeConfig(t, `
url: https://example.com/report.pdf
bucket: mem://
workers: 32
part_size: 16MiB
chunk_size: 128KiB
length: 4096
disable_stream: true
progress: true
log_level: debug
http:
  header_timeout: 5s
  bytes_per_second: 10MB
  user_agent: chunkfetch/1.0
  buffered: true
`)

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.URL != "https://example.com/report.pdf" {
		t.Errorf("unexpected url %q", cfg.URL)
	}
	if cfg.Workers != 32 {
		t.Errorf("expected workers 32, got %d", cfg.Workers)
	}
	if cfg.PartSize != 16*1024*1024 {
		t.Errorf("expected part size 16MiB, got %d", cfg.PartSize)
	}
	if cfg.ChunkSize != 128*1024 {
		t.Errorf("expected chunk size 128KiB, got %d", cfg.ChunkSize)
	}
	if cfg.Length != 4096 {
		t.Errorf("expected length 4096, got %d", cfg.Length)
	}
	if !cfg.DisableStream || cfg.DisableRange {
		t.Errorf("unexpected disable flags stream=%v range=%v", cfg.DisableStream, cfg.DisableRange)
	}
	if !cfg.Progress {
		t.Error("expected progress true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}
	if cfg.HTTP.HeaderTimeout != 5*time.Second {
		t.Errorf("expected header timeout 5s, got %v", cfg.HTTP.HeaderTimeout)
	}
	if cfg.HTTP.BytesPerSecond != 10*1000*1000 {
		t.Errorf("expected 10MB/s, got %d", cfg.HTTP.BytesPerSecond)
	}
	if cfg.HTTP.UserAgent != "chunkfetch/1.0" || !cfg.HTTP.Buffered {
		t.Errorf("unexpected http config %+v", cfg.HTTP)
	}
}

func TestLoadFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "bucket: mem://\n"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Workers != 8 || cfg.ChunkSize != 64*1024 || cfg.HTTP.HeaderTimeout != 30*time.Second {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadFromYAMLInvalidValues(t *testing.T) {
	for _, content := range []string{
		"part_size: lots\n",
		"chunk_size: 12XB\n",
		"http:\n  header_timeout: soon\n",
		"http:\n  bytes_per_second: fast\n",
	} {
		if _, err := LoadFromFile(writeConfig(t, content)); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHUNKFETCH_URL", "https://example.com/a.pdf")
	t.Setenv("CHUNKFETCH_WORKERS", "64")
	t.Setenv("CHUNKFETCH_PART_SIZE", "1GiB")
	t.Setenv("CHUNKFETCH_CHUNK_SIZE", "1MiB")
	t.Setenv("CHUNKFETCH_LENGTH", "12345")
	t.Setenv("CHUNKFETCH_DISABLE_RANGE", "1")
	t.Setenv("CHUNKFETCH_PROGRESS", "true")
	t.Setenv("CHUNKFETCH_HEADER_TIMEOUT", "500ms")
	t.Setenv("CHUNKFETCH_BYTES_PER_SECOND", "1MiB")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.URL != "https://example.com/a.pdf" {
		t.Errorf("unexpected url %q", cfg.URL)
	}
	if cfg.Workers != 64 {
		t.Errorf("expected workers 64, got %d", cfg.Workers)
	}
	if cfg.PartSize != 1024*1024*1024 {
		t.Errorf("expected part size 1GiB, got %d", cfg.PartSize)
	}
	if cfg.ChunkSize != 1024*1024 {
		t.Errorf("expected chunk size 1MiB, got %d", cfg.ChunkSize)
	}
	if cfg.Length != 12345 {
		t.Errorf("expected length 12345, got %d", cfg.Length)
	}
	if !cfg.DisableRange {
		t.Error("expected disable range")
	}
	if !cfg.Progress {
		t.Error("expected progress true")
	}
	if cfg.HTTP.HeaderTimeout != 500*time.Millisecond {
		t.Errorf("expected header timeout 500ms, got %v", cfg.HTTP.HeaderTimeout)
	}
	if cfg.HTTP.BytesPerSecond != 1024*1024 {
		t.Errorf("expected 1MiB/s, got %d", cfg.HTTP.BytesPerSecond)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("CHUNKFETCH_WORKERS", "many")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid CHUNKFETCH_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.URL = "https://example.com/report.pdf"
		cfg.Bucket = "gs://my-bucket"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}},
		{name: "object is optional", modify: func(c *Config) { c.Object = "" }},
		{name: "missing URL", modify: func(c *Config) { c.URL = "" }, wantErr: true},
		{name: "missing bucket", modify: func(c *Config) { c.Bucket = "" }, wantErr: true},
		{name: "invalid workers", modify: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "invalid part size", modify: func(c *Config) { c.PartSize = 0 }, wantErr: true},
		{name: "invalid chunk size", modify: func(c *Config) { c.ChunkSize = -1 }, wantErr: true},
		{name: "part smaller than chunk", modify: func(c *Config) { c.PartSize = 1024 }, wantErr: true},
		{name: "negative length", modify: func(c *Config) { c.Length = -1 }, wantErr: true},
		{name: "negative rate", modify: func(c *Config) { c.HTTP.BytesPerSecond = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.URL = "https://example.com/report.pdf"
	base.Bucket = "gs://bucket"
	base.Object = "report.pdf"

	override := Config{
		Workers: 32,
		Force:   true,
		HTTP:    HTTPConfig{UserAgent: "test"},
	}

	merged := base.Merge(override)

	if merged.URL != "https://example.com/report.pdf" {
		t.Errorf("expected URL preserved, got %s", merged.URL)
	}
	if merged.Bucket != "gs://bucket" {
		t.Errorf("expected Bucket preserved, got %s", merged.Bucket)
	}
	if merged.PartSize != 8*1024*1024 {
		t.Errorf("expected PartSize preserved, got %d", merged.PartSize)
	}
	if merged.HTTP.HeaderTimeout != 30*time.Second {
		t.Errorf("expected HeaderTimeout preserved, got %v", merged.HTTP.HeaderTimeout)
	}

	if merged.Workers != 32 {
		t.Errorf("expected Workers overridden to 32, got %d", merged.Workers)
	}
	if !merged.Force {
		t.Error("expected Force overridden")
	}
	if merged.HTTP.UserAgent != "test" {
		t.Errorf("expected UserAgent overridden, got %q", merged.HTTP.UserAgent)
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
