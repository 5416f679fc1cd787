// Package server wires the viewer host together.
//
// Components:
//   - Configuration, zap logging, Prometheus metrics, request tracing
//   - Provisioning pipeline (asset cache, resizer, fetcher, listeners)
//   - Viewer surface chosen by VIEWER_SURFACE: "web" serves documents to
//     browsers over HTTP and WebSocket, "headless" runs them in goja
//   - Screen manager and the gin router (CORS, rate limiting, recovery)
//
// Lifecycle:
//  1. NewServer builds every component from *config.Config
//  2. Run listens and serves until its context is done
//  3. Shutdown drains HTTP, unmounts every screen, then closes the surface
//
// Example Usage:
//
//	cfg, err := config.LoadFile(*configPath)
//	srv, err := server.NewServer(cfg, nil)
//	err = srv.Run(ctx)
package server
