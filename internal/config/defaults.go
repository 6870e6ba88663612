package config

// Default returns a Config populated with sensible defaults for a
// Waveshare 2.13" V2 panel on a stock HAT. Load decodes the config file
// directly over this value, so every field here is a real default, bools
// included.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			Source:            "feed",
			IdleTimeoutMs:     30000,
			BackoffBaseMs:     1000,
			BackoffMaxMs:      60000,
			StabilityWindowMs: 10000,
		},
		Display: DisplayConfig{
			Driver:  "epd2in13",
			Width:   250,
			Height:  122,
			DCPin:   "GPIO25",
			RSTPin:  "GPIO17",
			BusyPin: "GPIO24",
		},
		Render: RenderConfig{
			PartialLimit:   20,
			MinIntervalMs:  1000,
			OfflineGraceMs: 15000,
		},
		Artwork: ArtworkConfig{
			Enabled:   true,
			TimeoutMs: 10000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
