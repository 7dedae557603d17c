// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for humans
//
// Subsystems take a *zap.Logger; the service hands out named children so
// pipeline, HTTP and live-session lines can be told apart:
//
//	logger := logging.NewDefault()
//	engine := preview.NewEngine(cfg, table, logger.Component("engine"), metrics)
//	logger.Session(sessionID).Info("Session opened")
package logging
