// Package main runs the Photosphere viewer host.
//
// The host mounts panorama viewer screens, provisions local assets through
// short-lived listeners and serves the instantiated viewer documents.
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML or TOML file via -config (overrides environment)
//   - CLI flags (override both)
//
// Usage:
//
//	# Browser surface on :8000
//	./server -port 8000
//
//	# Headless surface with a config file, console logs
//	./server -config photosphere.yaml -surface headless -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
