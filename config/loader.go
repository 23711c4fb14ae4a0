// =============================================================================
// webpilot configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("WEBPILOT").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete webpilot configuration.
type Config struct {
	// Server controls the tool transport and operational endpoints.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Gemini configures the computer-use vision model client.
	Gemini GeminiConfig `yaml:"gemini" env:"GEMINI"`

	// Browser configures the Playwright-driven browser capability.
	Browser BrowserConfig `yaml:"browser" env:"BROWSER"`

	// Tasks configures the background task manager and agent loop.
	Tasks TasksConfig `yaml:"tasks" env:"TASKS"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds transport and endpoint settings.
type ServerConfig struct {
	// Transport selects how tools are served: "stdio" or "websocket".
	Transport string `yaml:"transport" env:"TRANSPORT"`
	// WSURL is the endpoint dialed in websocket mode.
	WSURL string `yaml:"ws_url" env:"WS_URL"`
	// MetricsPort serves /metrics and /health.
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// ToolTimeout bounds a single tool call. Browsing tools block for the
	// whole task in synchronous mode, so this is generous.
	ToolTimeout time.Duration `yaml:"tool_timeout" env:"TOOL_TIMEOUT"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// GeminiConfig holds vision model client settings.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API. Falls back to the
	// GEMINI_API_KEY environment variable when unset.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Model is the computer-use model identifier.
	Model string `yaml:"model" env:"MODEL"`
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Timeout bounds one generate call.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// RateLimitRPS paces generate calls per client.
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// RateLimitBurst is the limiter burst size.
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// BrowserConfig holds browser capability settings.
type BrowserConfig struct {
	// Headless controls whether Chromium runs without a visible window.
	Headless bool `yaml:"headless" env:"HEADLESS"`
	// ScreenWidth and ScreenHeight fix the viewport. Model coordinates are
	// normalized to a 0-999 grid and denormalized against these.
	ScreenWidth  int `yaml:"screen_width" env:"SCREEN_WIDTH"`
	ScreenHeight int `yaml:"screen_height" env:"SCREEN_HEIGHT"`
	// ScreenshotDir is the root directory for per-session screenshots.
	ScreenshotDir string `yaml:"screenshot_dir" env:"SCREENSHOT_DIR"`
	// SearchURL is the page the "search" action and default navigation use.
	SearchURL string `yaml:"search_url" env:"SEARCH_URL"`
	// NavigateTimeout bounds explicit navigations.
	NavigateTimeout time.Duration `yaml:"navigate_timeout" env:"NAVIGATE_TIMEOUT"`
	// SettleTimeout bounds the content-loaded wait after navigation actions.
	SettleTimeout time.Duration `yaml:"settle_timeout" env:"SETTLE_TIMEOUT"`
	// SettleDelay is the fixed pause after non-navigation actions.
	SettleDelay time.Duration `yaml:"settle_delay" env:"SETTLE_DELAY"`
}

// TasksConfig holds task manager and agent loop settings.
type TasksConfig struct {
	// MaxTurns caps agent turns per task.
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// MaxConcurrent caps simultaneously running tasks. Zero means unlimited,
	// matching the original unbounded behavior.
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// Retention is how long terminal task records are kept before eviction.
	Retention time.Duration `yaml:"retention" env:"RETENTION"`
	// SweepInterval is the cadence of the background eviction sweep.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	// CompactEvents is how many recent progress events a compact snapshot keeps.
	CompactEvents int `yaml:"compact_events" env:"COMPACT_EVENTS"`
	// PollDelay feeds the recommended_poll_after hint for running tasks.
	PollDelay time.Duration `yaml:"poll_delay" env:"POLL_DELAY"`
	// SyncPollInterval is the synchronous facade's polling cadence.
	SyncPollInterval time.Duration `yaml:"sync_poll_interval" env:"SYNC_POLL_INTERVAL"`
	// SyncTimeout is the synchronous facade's default deadline.
	SyncTimeout time.Duration `yaml:"sync_timeout" env:"SYNC_TIMEOUT"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths are zap output targets. Stdio transport forces stderr so
	// stdout stays clean for protocol frames.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// EnableCaller annotates entries with file:line.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// EnableStacktrace attaches stacktraces at error level.
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	// Enabled turns OTLP export on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLPEndpoint is the gRPC collector endpoint.
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// SampleRate is the trace sampling ratio.
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "WEBPILOT",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validation hook run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads configuration with precedence defaults → YAML → environment.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Bare GEMINI_API_KEY is honored for compatibility with existing
	// deployments that export it unprefixed.
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile merges the YAML file into cfg. A missing file is not an error.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overrides cfg fields from environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv recursively applies env overrides following env tags.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue parses value into the field according to its kind.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices only.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the configuration, collecting every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch c.Server.Transport {
	case "stdio", "websocket":
	default:
		errs = append(errs, fmt.Sprintf("unknown transport %q (want stdio or websocket)", c.Server.Transport))
	}
	if c.Server.Transport == "websocket" && c.Server.WSURL == "" {
		errs = append(errs, "ws_url required for websocket transport")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	if c.Browser.ScreenWidth <= 0 || c.Browser.ScreenHeight <= 0 {
		errs = append(errs, "screen dimensions must be positive")
	}
	if c.Browser.ScreenshotDir == "" {
		errs = append(errs, "screenshot_dir must not be empty")
	}

	if c.Tasks.MaxTurns <= 0 {
		errs = append(errs, "max_turns must be positive")
	}
	if c.Tasks.MaxConcurrent < 0 {
		errs = append(errs, "max_concurrent must not be negative")
	}
	if c.Tasks.Retention <= 0 {
		errs = append(errs, "retention must be positive")
	}
	if c.Tasks.CompactEvents <= 0 {
		errs = append(errs, "compact_events must be positive")
	}

	if c.Gemini.Model == "" {
		errs = append(errs, "gemini model must not be empty")
	}
	if c.Gemini.RateLimitRPS <= 0 {
		errs = append(errs, "rate_limit_rps must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
