package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Root:         "/data/archive",
			TransferMode: "move",
		},
		Ingest: IngestConfig{
			Workers:      4,
			PollInterval: time.Minute,
		},
		SARA: SARAConfig{
			BaseURL: "https://copernicus.nci.org.au/sara.server/1.0",
			Timeout: 30 * time.Second,
		},
		THREDDS: THREDDSConfig{
			BaseURL: "https://dapds00.nci.org.au/thredds",
			Timeout: 30 * time.Second,
		},
		STAC: STACConfig{
			Version:      "1.0.0",
			DefaultLimit: 10,
			MaxLimit:     250,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"bad transfer mode", func(c *Config) { c.Storage.TransferMode = "teleport" }, "transfer mode"},
		{"no workers", func(c *Config) { c.Ingest.Workers = 0 }, "workers"},
		{"missing SARA URL", func(c *Config) { c.SARA.BaseURL = "" }, "SARA"},
		{"max below default", func(c *Config) { c.STAC.MaxLimit = 5 }, "max limit"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), c.wantMsg) {
				t.Errorf("error %q does not mention %q", err, c.wantMsg)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_ROOT", "/data/archive")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("STORAGE_TRANSFER_MODE", "copy")
	t.Setenv("INGEST_WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Storage.Root != "/data/archive" || cfg.Storage.TransferMode != "copy" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Ingest.Workers != 8 {
		t.Errorf("Workers = %d", cfg.Ingest.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if got := cfg.Server.Address(); got != "0.0.0.0:9999" {
		t.Errorf("Address = %q", got)
	}
}
