// Package middleware provides the HTTP middleware stack for the preview service.
//
// Middleware stack includes:
//   - RequestID: assigns or accepts an X-Request-ID per request
//   - Logger: one structured zap line per request
//   - CORS: cross-origin access for editor front-ends
//   - RateLimit: per-IP token bucket rate limiting with idle eviction
//
// Rate Limiting:
//   - Per-IP tracking; idle clients are dropped after IdleTTL
//   - Token bucket algorithm (golang.org/x/time/rate)
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
