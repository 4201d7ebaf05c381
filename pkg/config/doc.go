// Package config provides configuration management for Conduit.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("conduit.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("conduit.yaml")
//
// "${VAR}" references anywhere in the file are expanded from the environment
// before parsing. LoadDotEnv reads a .env file into the environment first.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CONDUIT_SECTION_FIELD.
// For example:
//
//   - CONDUIT_ADMIN_LISTEN_ADDRESS overrides admin.listen_address
//   - CONDUIT_PROVIDERS_OPENAI_API_KEY overrides providers.openai.api_key
//   - CONDUIT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher reloads the file when it changes and passes every valid result to
// a callback, typically Dispatcher.Reconfigure. An invalid edit is logged and
// ignored.
//
// # Example Configuration
//
//	admin:
//	  listen_address: "127.0.0.1:9090"
//
//	providers:
//	  openai:
//	    api_key: "${OPENAI_API_KEY}"
//	  local:
//	    type: echo
//
//	dispatch:
//	  cache:
//	    max_size: 500
//	    default_ttl: 30m
//	  breaker:
//	    failure_threshold: 5
//	    timeout: 30s
//	  queue:
//	    max_size: 100
//	  rate_limits:
//	    openai:
//	      max_requests: 60
//	      window: 1m
//	      burst_limit: 10
package config
