package config

import "time"

// DefaultConfig returns the complete default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Gemini:    DefaultGeminiConfig(),
		Browser:   DefaultBrowserConfig(),
		Tasks:     DefaultTasksConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns default server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport:       "stdio",
		WSURL:           "",
		MetricsPort:     9090,
		ToolTimeout:     10 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// DefaultGeminiConfig returns default vision model settings.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:          "gemini-2.5-computer-use-preview-10-2025",
		BaseURL:        "https://generativelanguage.googleapis.com",
		Timeout:        2 * time.Minute,
		RateLimitRPS:   1,
		RateLimitBurst: 2,
	}
}

// DefaultBrowserConfig returns default browser settings.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:        false,
		ScreenWidth:     1440,
		ScreenHeight:    900,
		ScreenshotDir:   "output_screenshots",
		SearchURL:       "https://www.google.com",
		NavigateTimeout: 10 * time.Second,
		SettleTimeout:   3 * time.Second,
		SettleDelay:     300 * time.Millisecond,
	}
}

// DefaultTasksConfig returns default task manager settings.
func DefaultTasksConfig() TasksConfig {
	return TasksConfig{
		MaxTurns:         30,
		MaxConcurrent:    0,
		Retention:        24 * time.Hour,
		SweepInterval:    time.Hour,
		CompactEvents:    3,
		PollDelay:        5 * time.Second,
		SyncPollInterval: 500 * time.Millisecond,
		SyncTimeout:      5 * time.Minute,
	}
}

// DefaultLogConfig returns default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "webpilot",
		SampleRate:   0.1,
	}
}
