// Package config provides configuration management for the archive services.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig  `envPrefix:"SERVER_"`
	Storage StorageConfig `envPrefix:"STORAGE_"`
	Ingest  IngestConfig  `envPrefix:"INGEST_"`
	SARA    SARAConfig    `envPrefix:"SARA_"`
	THREDDS THREDDSConfig `envPrefix:"THREDDS_"`
	STAC    STACConfig    `envPrefix:"STAC_"`
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// StorageConfig contains archive storage configuration.
type StorageConfig struct {
	// Root is the top of the archive directory structure (required).
	Root string `env:"ROOT"`
	// TransferMode selects how zipfiles are materialized: "move", "copy"
	// or "symlink".
	TransferMode string `env:"TRANSFER_MODE" envDefault:"move"`
}

// IngestConfig contains ingest pipeline configuration.
type IngestConfig struct {
	Workers      int           `env:"WORKERS" envDefault:"4"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1m"`
	Dummy        bool          `env:"DUMMY" envDefault:"false"`
}

// SARAConfig contains SARA catalog client configuration.
type SARAConfig struct {
	BaseURL  string        `env:"BASE_URL" envDefault:"https://copernicus.nci.org.au/sara.server/1.0"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ProxyURL string        `env:"PROXY_URL"` // optional
}

// THREDDSConfig contains THREDDS catalog client configuration.
type THREDDSConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://dapds00.nci.org.au/thredds"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// STACConfig contains the STAC metadata published by the holdings API.
type STACConfig struct {
	Version     string `env:"VERSION" envDefault:"1.0.0"`
	BaseURL     string `env:"BASE_URL"` // Public-facing URL (required by the server)
	Title       string `env:"TITLE" envDefault:"Copernicus Australasia Archive"`
	Description string `env:"DESCRIPTION" envDefault:"STAC API over the regional Sentinel zipfile archive"`
	// DownloadBaseURL is prefixed to the relative archive path to form
	// data asset links. Optional.
	DownloadBaseURL string `env:"DOWNLOAD_BASE_URL"`
	DefaultLimit    int    `env:"DEFAULT_LIMIT" envDefault:"10"`
	MaxLimit        int    `env:"MAX_LIMIT" envDefault:"250"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	switch c.Storage.TransferMode {
	case "move", "copy", "symlink":
	default:
		return fmt.Errorf("transfer mode must be 'move', 'copy' or 'symlink', got %q", c.Storage.TransferMode)
	}

	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.PollInterval <= 0 {
		return fmt.Errorf("ingest poll interval must be positive, got %s", c.Ingest.PollInterval)
	}

	if c.SARA.BaseURL == "" {
		return fmt.Errorf("SARA base URL is required")
	}
	if c.SARA.Timeout <= 0 {
		return fmt.Errorf("SARA timeout must be positive, got %s", c.SARA.Timeout)
	}
	if c.THREDDS.BaseURL == "" {
		return fmt.Errorf("THREDDS base URL is required")
	}
	if c.THREDDS.Timeout <= 0 {
		return fmt.Errorf("THREDDS timeout must be positive, got %s", c.THREDDS.Timeout)
	}

	if c.STAC.Version == "" {
		return fmt.Errorf("STAC version is required")
	}
	if c.STAC.DefaultLimit < 1 {
		return fmt.Errorf("default limit must be at least 1, got %d", c.STAC.DefaultLimit)
	}
	if c.STAC.MaxLimit < c.STAC.DefaultLimit {
		return fmt.Errorf("max limit (%d) must be >= default limit (%d)", c.STAC.MaxLimit, c.STAC.DefaultLimit)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
