/*
Package monitoring provides Prometheus metrics for the preview service.

# Overview

Metrics covers the HTTP surface, every preview pipeline stage, pipeline
outcomes by error kind, end-to-end runs per entry point and live preview
sessions. *Metrics implements preview.Recorder, so it can be handed directly
to preview.NewEngine.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))
	engine := preview.NewEngine(cfg, table, logger, metrics)

	timer := monitoring.NewTimer(metrics, "http")
	// ... run the pipeline ...
	timer.Stop("mounted")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
