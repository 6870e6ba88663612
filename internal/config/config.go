package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

// Config is the full daemon configuration, loaded from an optional TOML file
// with environment variable overrides on top.
type Config struct {
	Feed    FeedConfig    `toml:"feed"`
	Display DisplayConfig `toml:"display"`
	Render  RenderConfig  `toml:"render"`
	Artwork ArtworkConfig `toml:"artwork"`
	Log     LogConfig     `toml:"log"`
}

// FeedConfig controls the message source and its reconnection behavior.
// All durations are in milliseconds.
type FeedConfig struct {
	// Source selects the message source: "feed" (remote websocket) or
	// "mpris" (local D-Bus player, Linux only)
	Source string `toml:"source"`
	// Endpoint is the ws:// or wss:// URL of the now-playing feed
	Endpoint string `toml:"endpoint"`
	// User identifies the upstream account, sent as the "user" query param
	User              string `toml:"user"`
	IdleTimeoutMs     int    `toml:"idle_timeout_ms"`
	BackoffBaseMs     int    `toml:"backoff_base_ms"`
	BackoffMaxMs      int    `toml:"backoff_max_ms"`
	StabilityWindowMs int    `toml:"stability_window_ms"`
}

// DisplayConfig selects and wires the panel driver
type DisplayConfig struct {
	// Driver is "epd2in13" for the real panel or "memory" for a headless run
	Driver string `toml:"driver"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	// SPIPort is the periph.io SPI port name, empty for the platform default
	SPIPort string `toml:"spi_port"`
	DCPin   string `toml:"dc_pin"`
	RSTPin  string `toml:"rst_pin"`
	BusyPin string `toml:"busy_pin"`
}

// RenderConfig tunes redraw pacing and panel-wear mitigation
type RenderConfig struct {
	// PartialLimit is how many partial refreshes may run between full ones
	PartialLimit int `toml:"partial_limit"`
	// MinIntervalMs is the minimum spacing between any two redraws
	MinIntervalMs int `toml:"min_interval_ms"`
	// OfflineGraceMs is how long the connection may be down before the
	// offline indicator is drawn
	OfflineGraceMs int `toml:"offline_grace_ms"`
}

// ArtworkConfig controls cover art fetching
type ArtworkConfig struct {
	Enabled   bool `toml:"enabled"`
	TimeoutMs int  `toml:"timeout_ms"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level string `toml:"level"`
}

// Load starts from Default(), decodes the config file over it
// (TRACKPAPER_CONFIG, falling back to ~/.config/trackpaper/config.toml),
// applies environment overrides and validates. Seeding from the defaults
// first means absent keys keep their default while an explicit value,
// including false or zero, always sticks. A missing file is fine; an
// invalid one is fatal.
func Load(logger *zap.Logger) (*Config, error) {
	cfg := Default()

	path := os.Getenv("TRACKPAPER_CONFIG")
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".config", "trackpaper", "config.toml")
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			logger.Info("No config file found, using defaults", zap.String("path", path))
		} else {
			logger.Info("Configuration file loaded", zap.String("path", path))
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("Configuration ready",
		zap.String("source", cfg.Feed.Source),
		zap.String("endpoint", cfg.Feed.Endpoint),
		zap.String("user", cfg.Feed.User),
		zap.String("driver", cfg.Display.Driver))

	return cfg, nil
}

// applyEnv layers TRACKPAPER_* environment variables over the file values
func (c *Config) applyEnv() {
	if v := os.Getenv("TRACKPAPER_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv("TRACKPAPER_ENDPOINT"); v != "" {
		c.Feed.Endpoint = v
	}
	if v := os.Getenv("TRACKPAPER_USER"); v != "" {
		c.Feed.User = v
	}
	if v := os.Getenv("TRACKPAPER_DRIVER"); v != "" {
		c.Display.Driver = v
	}
	if v := os.Getenv("TRACKPAPER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}
