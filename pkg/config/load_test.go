package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testConfig = `
admin:
  listen_address: "0.0.0.0:9191"
  read_timeout: 5s

providers:
  openai:
    api_key: "${CONDUIT_TEST_OPENAI_KEY}"
    timeout: 30s
  local:
    type: echo
    options:
      chunk_delay: 10ms

dispatch:
  cache:
    max_size: 50
    default_ttl: 10m
  breaker:
    failure_threshold: 3
    timeout: 15s
  queue:
    max_size: 20
  rate_limits:
    openai:
      max_requests: 2
      window: 1s
      burst_limit: 5
  default_provider: local

telemetry:
  logging:
    level: debug
    format: text
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "conduit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	t.Setenv("CONDUIT_TEST_OPENAI_KEY", "sk-from-env")
	path := writeConfig(t, testConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Admin.ListenAddress != "0.0.0.0:9191" || cfg.Admin.ReadTimeout != 5*time.Second {
		t.Errorf("unexpected admin config %+v", cfg.Admin)
	}
	if !cfg.Admin.Enabled {
		t.Error("omitted admin.enabled should keep its default")
	}
	if got := cfg.Providers["openai"].APIKey; got != "sk-from-env" {
		t.Errorf("expected expanded api key, got %q", got)
	}
	if got := cfg.Providers["local"].Options["chunk_delay"]; got != "10ms" {
		t.Errorf("expected echo options, got %q", got)
	}

	d := cfg.Dispatch
	if d.Cache.MaxSize != 50 || d.Cache.DefaultTTL != 10*time.Minute {
		t.Errorf("unexpected cache config %+v", d.Cache)
	}
	if d.Breaker.FailureThreshold != 3 || d.Breaker.Timeout != 15*time.Second || d.Breaker.HalfOpenMaxCalls != 3 {
		t.Errorf("unexpected breaker config %+v", d.Breaker)
	}
	if d.Queue.MaxSize != 20 {
		t.Errorf("unexpected queue size %d", d.Queue.MaxSize)
	}

	limit, ok := d.RateLimits["openai"]
	if !ok || limit.MaxRequests != 2 || limit.Window != time.Second || limit.BurstLimit != 5 {
		t.Errorf("unexpected rate limit %+v", limit)
	}

	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("unexpected logging config %+v", cfg.Telemetry.Logging)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			wantErr: "failed to read",
		},
		{
			name:    "invalid yaml",
			path:    func(t *testing.T) string { return writeConfig(t, "providers: [") },
			wantErr: "failed to parse",
		},
		{
			name:    "invalid values",
			path:    func(t *testing.T) string { return writeConfig(t, "providers:\n  x:\n    type: nope\n") },
			wantErr: "validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path(t))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfig_ValidationErrorIsMatchable(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "providers:\n  x:\n    type: nope\n"))

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected wrapped ValidationError, got %T", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("CONDUIT_TEST_OPENAI_KEY", "sk-file")
	t.Setenv("CONDUIT_ADMIN_LISTEN_ADDRESS", "127.0.0.1:7000")
	t.Setenv("CONDUIT_PROVIDERS_OPENAI_API_KEY", "sk-override")
	t.Setenv("CONDUIT_PROVIDERS_OPENAI_TIMEOUT", "2s")
	t.Setenv("CONDUIT_DISPATCH_CACHE_MAX_SIZE", "9")
	t.Setenv("CONDUIT_DISPATCH_BREAKER_TIMEOUT", "1m")
	t.Setenv("CONDUIT_DISPATCH_QUEUE_MAX_SIZE", "not-a-number")
	t.Setenv("CONDUIT_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Admin.ListenAddress != "127.0.0.1:7000" {
		t.Errorf("listen address not overridden: %q", cfg.Admin.ListenAddress)
	}
	if p := cfg.Providers["openai"]; p.APIKey != "sk-override" || p.Timeout != 2*time.Second {
		t.Errorf("provider not overridden: %+v", p)
	}
	if cfg.Dispatch.Cache.MaxSize != 9 || cfg.Dispatch.Breaker.Timeout != time.Minute {
		t.Errorf("dispatch not overridden: %+v", cfg.Dispatch)
	}
	if cfg.Dispatch.Queue.MaxSize != 20 {
		t.Errorf("unparsable override should be ignored, got %d", cfg.Dispatch.Queue.MaxSize)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("logging level not overridden: %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Setenv("CONDUIT_TELEMETRY_LOGGING_LEVEL", "loud")

	_, err := LoadConfigWithEnvOverrides(writeConfig(t, testConfig))
	if err == nil || !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("expected validation error after overrides, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "CONDUIT_TEST_DOTENV_A=from-file\nCONDUIT_TEST_DOTENV_B=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONDUIT_TEST_DOTENV_B", "from-env")
	t.Setenv("CONDUIT_TEST_DOTENV_A", "")
	os.Unsetenv("CONDUIT_TEST_DOTENV_A")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	if got := os.Getenv("CONDUIT_TEST_DOTENV_A"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
	if got := os.Getenv("CONDUIT_TEST_DOTENV_B"); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
}

func TestParse_KeepsBooleanDefaults(t *testing.T) {
	cfg, err := Parse([]byte("admin:\n  enabled: false\nproviders:\n  echo: {}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Admin.Enabled {
		t.Error("explicit false should win")
	}
	if !cfg.Telemetry.Logging.RedactPII || !cfg.Telemetry.Tracing.Insecure {
		t.Error("omitted booleans should keep their defaults")
	}
}
