package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Logging      LogConfig          `yaml:"logging" toml:"logging"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit" toml:"rate_limit"`
	Viewer       ViewerConfig       `yaml:"viewer" toml:"viewer"`
	Provisioning ProvisioningConfig `yaml:"provisioning" toml:"provisioning"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// ViewerConfig holds sandbox document and surface configuration.
type ViewerConfig struct {
	LibraryURL    string   `envconfig:"VIEWER_LIBRARY_URL" default:"https://cdnjs.cloudflare.com/ajax/libs/marzipano/0.10.2/marzipano.js" yaml:"library_url" toml:"library_url"`
	GeometryWidth int      `envconfig:"VIEWER_GEOMETRY_WIDTH" default:"11008" yaml:"geometry_width" toml:"geometry_width"`
	MaxResolution int      `envconfig:"VIEWER_MAX_RESOLUTION" default:"4096" yaml:"max_resolution" toml:"max_resolution"`
	MaxFOVDegrees float64  `envconfig:"VIEWER_MAX_FOV_DEGREES" default:"90" yaml:"max_fov_degrees" toml:"max_fov_degrees"`
	PinFirstLevel bool     `envconfig:"VIEWER_PIN_FIRST_LEVEL" default:"true" yaml:"pin_first_level" toml:"pin_first_level"`
	LoadMode      string   `envconfig:"VIEWER_LOAD_MODE" default:"manual" yaml:"load_mode" toml:"load_mode"`
	Surface       string   `envconfig:"VIEWER_SURFACE" default:"web" yaml:"surface" toml:"surface"`
	Capability    bool     `envconfig:"VIEWER_HEADLESS_CAPABILITY" default:"true" yaml:"capability" toml:"capability"`
	ScriptTimeout Duration `envconfig:"VIEWER_SCRIPT_TIMEOUT" default:"5s" yaml:"script_timeout" toml:"script_timeout"`
	PoolSize      int      `envconfig:"VIEWER_POOL_SIZE" default:"4" yaml:"pool_size" toml:"pool_size"`
}

// ProvisioningConfig holds asset provisioning configuration.
type ProvisioningConfig struct {
	Enabled          bool   `envconfig:"PROVISION_ENABLED" default:"false" yaml:"enabled" toml:"enabled"`
	FetchRemote      bool   `envconfig:"PROVISION_FETCH_REMOTE" default:"false" yaml:"fetch_remote" toml:"fetch_remote"`
	ResizeAboveBytes int64  `envconfig:"PROVISION_RESIZE_ABOVE_BYTES" default:"0" yaml:"resize_above_bytes" toml:"resize_above_bytes"`
	MaxWidth         int    `envconfig:"PROVISION_MAX_WIDTH" default:"11008" yaml:"max_width" toml:"max_width"`
	MaxHeight        int    `envconfig:"PROVISION_MAX_HEIGHT" default:"5504" yaml:"max_height" toml:"max_height"`
	Format           string `envconfig:"PROVISION_FORMAT" default:"JPEG" yaml:"format" toml:"format"`
	Quality          int    `envconfig:"PROVISION_QUALITY" default:"100" yaml:"quality" toml:"quality"`
	Serve            bool   `envconfig:"PROVISION_SERVE" default:"true" yaml:"serve" toml:"serve"`
	BindHost         string `envconfig:"PROVISION_BIND_HOST" default:"127.0.0.1" yaml:"bind_host" toml:"bind_host"`
	PortBase         int    `envconfig:"PROVISION_PORT_BASE" default:"8080" yaml:"port_base" toml:"port_base"`
	PortSpan         int    `envconfig:"PROVISION_PORT_SPAN" default:"1000" yaml:"port_span" toml:"port_span"`
	CacheDir         string `envconfig:"PROVISION_CACHE_DIR" default:"/tmp/photosphere-cache" yaml:"cache_dir" toml:"cache_dir"`
	AllowFileScheme  bool   `envconfig:"PROVISION_ALLOW_FILE_SCHEME" default:"false" yaml:"allow_file_scheme" toml:"allow_file_scheme"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot express as types.
func (c *Config) Validate() error {
	switch c.Viewer.Surface {
	case "web", "headless":
	default:
		return fmt.Errorf("invalid VIEWER_SURFACE %q: want web or headless", c.Viewer.Surface)
	}
	switch c.Viewer.LoadMode {
	case "manual", "auto":
	default:
		return fmt.Errorf("invalid VIEWER_LOAD_MODE %q: want manual or auto", c.Viewer.LoadMode)
	}
	if c.Provisioning.PortSpan <= 0 {
		return fmt.Errorf("PROVISION_PORT_SPAN must be positive, got %d", c.Provisioning.PortSpan)
	}
	if c.Provisioning.PortBase <= 0 || c.Provisioning.PortBase+c.Provisioning.PortSpan > 65536 {
		return fmt.Errorf("provisioning port range %d+%d is outside 1-65535", c.Provisioning.PortBase, c.Provisioning.PortSpan)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Viewer: ViewerConfig{
			LibraryURL:    "https://cdnjs.cloudflare.com/ajax/libs/marzipano/0.10.2/marzipano.js",
			GeometryWidth: 11008,
			MaxResolution: 4096,
			MaxFOVDegrees: 90,
			PinFirstLevel: true,
			LoadMode:      "manual",
			Surface:       "web",
			Capability:    true,
			ScriptTimeout: Duration(5 * time.Second),
			PoolSize:      4,
		},
		Provisioning: ProvisioningConfig{
			Enabled:   false,
			MaxWidth:  11008,
			MaxHeight: 5504,
			Format:    "JPEG",
			Quality:   100,
			Serve:     true,
			BindHost:  "127.0.0.1",
			PortBase:  8080,
			PortSpan:  1000,
			CacheDir:  "/tmp/photosphere-cache",
		},
	}
}
