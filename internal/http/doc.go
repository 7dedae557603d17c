// Package http provides the REST surface of the preview service.
//
// Endpoints:
//   - Health: / and /health
//   - Modules: GET /api/modules lists the importable modules
//   - Preview: POST /api/preview runs the pipeline once and returns a view
//   - Transpile: POST /api/transpile returns the compile stages only
//   - Stats: GET /api/stats returns a JSON metrics snapshot
//
// Request bodies are {"code": "..."}; sources over the configured limit are
// rejected with 413 before reaching the pipeline. Compile, runtime and render
// failures are reported inside a 200 response with state "failed".
//
// Example Usage:
//
//	handlers := http.NewHandlers(engine, sanitizer, metrics, logger, http.Options{MaxSourceBytes: 1 << 18})
//	router.POST("/api/preview", handlers.Preview)
package http
