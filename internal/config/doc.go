// Package config provides 12-factor configuration for the preview service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables, and the previewctl tool can
// layer a TOML file on top with LoadFile.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Preview: debounce, evaluation timeout, source limit, sanitising
//   - Remote: address of a running server for previewctl remote
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	engine := preview.NewEngine(cfg.Preview.Engine(), preview.DefaultTable(), logger, metrics)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - PREVIEW_DEBOUNCE, PREVIEW_TIMEOUT, PREVIEW_MAX_SOURCE_BYTES,
//     PREVIEW_MAX_CONSOLE, PREVIEW_SANITIZE, PREVIEW_FALLBACK, PREVIEW_HEIGHT
//   - PREVIEW_SERVER_URL, PREVIEW_SERVER_TIMEOUT
//
// File format:
//
//	[preview]
//	debounce = "150ms"
//	sanitize = true
//
//	[remote]
//	url = "http://preview.internal:8000"
package config
