package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/conduit/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		config     config.LoggingConfig
		wantFormat LogFormat
		wantLevel  slog.Level
		wantErr    bool
	}{
		{
			name:       "defaults",
			config:     config.LoggingConfig{},
			wantFormat: FormatJSON,
			wantLevel:  slog.LevelInfo,
		},
		{
			name:       "text debug",
			config:     config.LoggingConfig{Level: "debug", Format: "text"},
			wantFormat: FormatText,
			wantLevel:  slog.LevelDebug,
		},
		{
			name:       "console warn",
			config:     config.LoggingConfig{Level: "WARNING", Format: "console", RedactPII: true},
			wantFormat: FormatConsole,
			wantLevel:  slog.LevelWarn,
		},
		{
			name:    "invalid level",
			config:  config.LoggingConfig{Level: "verbose"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  config.LoggingConfig{Format: "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if logger.Format() != tt.wantFormat {
				t.Errorf("format = %q, want %q", logger.Format(), tt.wantFormat)
			}
			if logger.Level() != tt.wantLevel {
				t.Errorf("level = %v, want %v", logger.Level(), tt.wantLevel)
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	if err := logger.SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	logger.With("component", "dispatch").Debug("shown")
	entry := decodeLine(t, &buf)
	if entry["msg"] != "shown" || entry["component"] != "dispatch" {
		t.Errorf("unexpected entry %v", entry)
	}

	if err := logger.SetLevel("loud"); err == nil {
		t.Error("expected error for invalid level")
	}
	if logger.Level() != slog.LevelDebug {
		t.Errorf("failed SetLevel must keep the previous level, got %v", logger.Level())
	}
}

func TestLogger_Redaction(t *testing.T) {
	tests := []struct {
		name   string
		redact bool
		args   []any
		key    string
		want   string
	}{
		{
			name:   "sensitive key",
			redact: true,
			args:   []any{"api_key", "sk-abc123xyz"},
			key:    "api_key",
			want:   "sk-***3xyz",
		},
		{
			name:   "key embedded in value",
			redact: true,
			args:   []any{"detail", "called with sk-secretvalue"},
			key:    "detail",
			want:   "called with sk-***",
		},
		{
			name:   "bearer header",
			redact: true,
			args:   []any{"header", "Bearer abc.def.ghi"},
			key:    "header",
			want:   "Bearer ***",
		},
		{
			name:   "error value",
			redact: true,
			args:   []any{"error", errors.New("auth failed for user@example.com")},
			key:    "error",
			want:   "auth failed for ***@example.com",
		},
		{
			name:   "token counts untouched",
			redact: true,
			args:   []any{"tokens", 42},
			key:    "tokens",
			want:   "42",
		},
		{
			name:   "disabled",
			redact: false,
			args:   []any{"api_key", "sk-abc123xyz"},
			key:    "api_key",
			want:   "sk-abc123xyz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(config.LoggingConfig{RedactPII: tt.redact}, &buf)
			if err != nil {
				t.Fatal(err)
			}

			logger.Info("event", tt.args...)
			entry := decodeLine(t, &buf)

			if got := fmt.Sprint(entry[tt.key]); got != tt.want {
				t.Errorf("%s = %v, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestLogger_RedactsWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{RedactPII: true}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.With("password", "hunter2").Info("login", slog.Group("auth", "token", "abc123456789"))
	entry := decodeLine(t, &buf)

	if entry["password"] != "***" {
		t.Errorf("password = %v, want ***", entry["password"])
	}
	auth, ok := entry["auth"].(map[string]any)
	if !ok {
		t.Fatalf("expected auth group, got %v", entry["auth"])
	}
	if auth["token"] != "***6789" {
		t.Errorf("auth.token = %v, want ***6789", auth["token"])
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = WithProvider(WithRequestID(ctx, "req-1"), "openai")

	logger.InfoContext(ctx, "dispatch")
	entry := decodeLine(t, &buf)

	want := map[string]string{
		"request_id": "req-1",
		"provider":   "openai",
		"trace_id":   "4bf92f3577b34da6a3ce929d0e0e4736",
		"span_id":    "00f067aa0ba902b7",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Format: "console"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("ready", "providers", 2)
	line := buf.String()
	if !strings.Contains(line, "msg=ready") || !strings.Contains(line, "providers=2") {
		t.Errorf("unexpected console line %q", line)
	}
	if !regexp.MustCompile(`^time=\d{2}:\d{2}:\d{2}\.\d{3} `).MatchString(line) {
		t.Errorf("console time should be shortened, got %q", line)
	}
}

func TestLogger_SetDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{RedactPII: true}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.SetDefault()

	slog.Default().With("component", "cache").Info("swept", "api_key", "sk-0000000000")
	entry := decodeLine(t, &buf)
	if entry["component"] != "cache" || entry["api_key"] != "sk-***0000" {
		t.Errorf("unexpected entry %v", entry)
	}
}
