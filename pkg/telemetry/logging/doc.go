// Package logging configures structured logging for Conduit.
//
// # Overview
//
// The package builds a log/slog handler chain from config.LoggingConfig:
//   - JSON, text, or console output
//   - Redaction of API keys, bearer tokens, passwords and email addresses
//   - request_id, provider, trace_id and span_id taken from the context
//   - A minimum level that can change at runtime
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "dispatch complete",
//	    "api_key", "sk-abc123xyz", // logged as sk-***3xyz
//	)
//
// Components log through slog.Default().With("component", name); SetDefault
// makes them share the configured handler.
//
// # Redaction
//
// When RedactPII is enabled, values under keys that name secrets (api_key,
// token, password, authorization, ...) are masked outright, and every other
// string value and the message are scanned for credential patterns.
package logging
