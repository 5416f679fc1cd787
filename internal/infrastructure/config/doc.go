// Package config provides 12-factor configuration management for the viewer host.
//
// Configuration is loaded from environment variables with sensible defaults.
// LoadFile overlays a YAML or TOML file on top; keys present in the file win.
// CLI flags can override both for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Viewer: Sandbox document, load mode and surface selection
//   - Provisioning: Resize/serve pipeline for panorama assets
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
//	cfg, err := config.LoadFile("photosphere.toml")
//
// File keys are the snake_case field names grouped by section:
//
//	[viewer]
//	surface = "headless"
//	script_timeout = "2s"
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - VIEWER_GEOMETRY_WIDTH, VIEWER_MAX_RESOLUTION, VIEWER_MAX_FOV_DEGREES,
//     VIEWER_LOAD_MODE, VIEWER_SURFACE, ...
//   - PROVISION_ENABLED, PROVISION_MAX_WIDTH, PROVISION_PORT_BASE, ...
package config
