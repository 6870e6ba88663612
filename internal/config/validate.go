package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors. Any error here is fatal at
// startup; the daemon must not run half-configured.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Feed.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("feed: %w", err))
	}
	if err := c.Display.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("display: %w", err))
	}
	if err := c.Render.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("render: %w", err))
	}
	if err := c.Artwork.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("artwork: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks FeedConfig for errors.
func (c *FeedConfig) Validate() error {
	switch c.Source {
	case "feed":
		if c.Endpoint == "" {
			return errors.New("endpoint is required")
		}
		u, err := url.Parse(c.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("invalid endpoint scheme: %s (must be ws or wss)", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("endpoint has no host")
		}
		if c.User == "" {
			return errors.New("user is required")
		}
	case "mpris":
		// no endpoint needed, the session bus is the endpoint
	default:
		return fmt.Errorf("invalid source: %s (must be feed or mpris)", c.Source)
	}

	if c.IdleTimeoutMs < 0 || c.BackoffBaseMs < 0 || c.BackoffMaxMs < 0 || c.StabilityWindowMs < 0 {
		return errors.New("timing values must be non-negative")
	}
	if c.BackoffMaxMs < c.BackoffBaseMs {
		return errors.New("backoff_max_ms must be >= backoff_base_ms")
	}
	return nil
}

// Validate checks DisplayConfig for errors.
func (c *DisplayConfig) Validate() error {
	switch c.Driver {
	case "epd2in13", "memory":
		// valid
	default:
		return fmt.Errorf("invalid driver: %s (must be epd2in13 or memory)", c.Driver)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid panel geometry: %dx%d", c.Width, c.Height)
	}
	return nil
}

// Validate checks RenderConfig for errors.
func (c *RenderConfig) Validate() error {
	if c.PartialLimit < 1 {
		return errors.New("partial_limit must be at least 1")
	}
	if c.MinIntervalMs < 0 {
		return errors.New("min_interval_ms must be non-negative")
	}
	if c.OfflineGraceMs < 0 {
		return errors.New("offline_grace_ms must be non-negative")
	}
	return nil
}

// Validate checks ArtworkConfig for errors.
func (c *ArtworkConfig) Validate() error {
	if c.TimeoutMs < 0 {
		return errors.New("timeout_ms must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
