/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the viewer
host, tracking HTTP requests, viewer session lifecycle, sandbox bridge traffic
and asset provisioning.

# Features

- HTTP request metrics (latency, throughput, size)
- Session lifecycle metrics (phase transitions, stale results)
- Bridge metrics (outbound events by kind, WebSocket traffic)
- Provisioning metrics (resize/serve/fetch duration and failures, listeners)

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "resize")
	_, err := resize()
	timer.Stop(err)

Every Metrics method tolerates a nil receiver.
*/
package monitoring
