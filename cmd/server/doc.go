// Package main is the entry point for the component preview server.
//
// The server compiles and renders TypeScript/JSX components on request:
//
//	Editor → POST /api/preview      one-shot render
//	       → GET  /api/live (ws)    debounced live preview per connection
//
// Configuration:
//   - Environment variables (12-factor, see internal/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -sanitize
//
//	# Development mode (colored logs, debug level)
//	./server -dev -debounce 150ms
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown; live sessions are disconnected
package main
