package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Portal  PortalConfig  `yaml:"portal" mapstructure:"portal"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Timing  TimingConfig  `yaml:"timing" mapstructure:"timing"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Debug   DebugConfig   `yaml:"debug" mapstructure:"debug"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// PortalConfig locates the search page and its markup.
type PortalConfig struct {
	SearchURL string          `yaml:"search_url" mapstructure:"search_url"`
	Selectors SelectorsConfig `yaml:"selectors" mapstructure:"selectors"`
}

// SelectorsConfig holds the CSS selectors for the form and result cards.
type SelectorsConfig struct {
	Form        string `yaml:"form" mapstructure:"form"`
	VehicleType string `yaml:"vehicle_type" mapstructure:"vehicle_type"`
	PlateNumber string `yaml:"plate_number" mapstructure:"plate_number"`
	Submit      string `yaml:"submit" mapstructure:"submit"`
	Card        string `yaml:"card" mapstructure:"card"`
	Title       string `yaml:"title" mapstructure:"title"`
	Badge       string `yaml:"badge" mapstructure:"badge"`
	InfoItem    string `yaml:"info_item" mapstructure:"info_item"`
	Label       string `yaml:"label" mapstructure:"label"`
	Value       string `yaml:"value" mapstructure:"value"`
}

// BrowserConfig configures the chromium process and its shared context.
type BrowserConfig struct {
	Headless          bool     `yaml:"headless" mapstructure:"headless"`
	ExecutablePath    string   `yaml:"executable_path" mapstructure:"executable_path"`
	UserAgent         string   `yaml:"user_agent" mapstructure:"user_agent"`
	ViewportWidth     int      `yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height" mapstructure:"viewport_height"`
	LaunchArgs        []string `yaml:"launch_args" mapstructure:"launch_args"`
	IgnoreHTTPSErrors bool     `yaml:"ignore_https_errors" mapstructure:"ignore_https_errors"`
	LaunchAttempts    int      `yaml:"launch_attempts" mapstructure:"launch_attempts"`
	LaunchTimeoutSecs int      `yaml:"launch_timeout_secs" mapstructure:"launch_timeout_secs"`
	ActionTimeoutSecs int      `yaml:"action_timeout_secs" mapstructure:"action_timeout_secs"`
}

// TimingConfig holds per-step timeouts and the fixed settle delays. The
// settle delays are pure waits and add to every lookup.
type TimingConfig struct {
	NavigationTimeoutSecs int `yaml:"navigation_timeout_secs" mapstructure:"navigation_timeout_secs"`
	FormTimeoutSecs       int `yaml:"form_timeout_secs" mapstructure:"form_timeout_secs"`
	SubmitTimeoutSecs     int `yaml:"submit_timeout_secs" mapstructure:"submit_timeout_secs"`
	InputSettleMs         int `yaml:"input_settle_ms" mapstructure:"input_settle_ms"`
	ResultSettleMs        int `yaml:"result_settle_ms" mapstructure:"result_settle_ms"`
}

// BatchConfig configures batch lookups.
type BatchConfig struct {
	MaxTargets          int `yaml:"max_targets" mapstructure:"max_targets"`
	PacingMs            int `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	MaxLookupsPerMinute int `yaml:"max_lookups_per_minute" mapstructure:"max_lookups_per_minute"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	TTLMinutes             int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes" mapstructure:"cleanup_interval_minutes"`
}

// DebugConfig holds troubleshooting switches.
type DebugConfig struct {
	ScreenshotDir string `yaml:"screenshot_dir" mapstructure:"screenshot_dir"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultLaunchArgs keep chromium working inside containers.
var DefaultLaunchArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
	"--no-first-run",
	"--no-zygote",
	"--single-process",
	"--disable-extensions",
}

// Load reads configuration from config.yaml (optional), environment
// variables prefixed with VIOLATIONS_, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VIOLATIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("portal.search_url", "https://www.csgt.vn/tra-cuu-phat-nguoi")
	v.SetDefault("portal.selectors.form", "form#violationsForm")
	v.SetDefault("portal.selectors.vehicle_type", `select[name="vehicle_type"]`)
	v.SetDefault("portal.selectors.plate_number", `input[name="plate_number"]`)
	v.SetDefault("portal.selectors.submit", "#submitBtn")
	v.SetDefault("portal.selectors.card", ".violation-card")
	v.SetDefault("portal.selectors.title", ".violation-title")
	v.SetDefault("portal.selectors.badge", ".status-badge")
	v.SetDefault("portal.selectors.info_item", ".info-item")
	v.SetDefault("portal.selectors.label", ".label")
	v.SetDefault("portal.selectors.value", ".value")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.executable_path", "")
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 768)
	v.SetDefault("browser.launch_args", DefaultLaunchArgs)
	v.SetDefault("browser.ignore_https_errors", true)
	v.SetDefault("browser.launch_attempts", 2)
	v.SetDefault("browser.launch_timeout_secs", 60)
	v.SetDefault("browser.action_timeout_secs", 30)
	v.SetDefault("timing.navigation_timeout_secs", 30)
	v.SetDefault("timing.form_timeout_secs", 20)
	v.SetDefault("timing.submit_timeout_secs", 15)
	v.SetDefault("timing.input_settle_ms", 500)
	v.SetDefault("timing.result_settle_ms", 3000)
	v.SetDefault("batch.max_targets", 20)
	v.SetDefault("batch.pacing_ms", 1000)
	v.SetDefault("batch.max_lookups_per_minute", 0)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.cleanup_interval_minutes", 10)
	v.SetDefault("debug.screenshot_dir", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects settings the given command cannot run with. Mode is
// "serve", "lookup" or "parse". Every problem is reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "lookup", "parse":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "parse" {
		if c.Portal.SearchURL == "" {
			errs = append(errs, "portal.search_url is required")
		}
		if c.Timing.NavigationTimeoutSecs <= 0 || c.Timing.FormTimeoutSecs <= 0 || c.Timing.SubmitTimeoutSecs <= 0 {
			errs = append(errs, "timing timeouts must be > 0")
		}
		if c.Timing.InputSettleMs < 0 || c.Timing.ResultSettleMs < 0 || c.Batch.PacingMs < 0 {
			errs = append(errs, "timing and pacing delays must be >= 0")
		}
		if c.Batch.MaxTargets < 1 || c.Batch.MaxTargets > 20 {
			errs = append(errs, "batch.max_targets must be between 1 and 20")
		}
		if c.Batch.MaxLookupsPerMinute < 0 {
			errs = append(errs, "batch.max_lookups_per_minute must be >= 0")
		}
		if c.Browser.LaunchAttempts < 1 {
			errs = append(errs, "browser.launch_attempts must be >= 1")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }
func ms(n int) time.Duration   { return time.Duration(n) * time.Millisecond }

// NavigationTimeout bounds loading the search page.
func (t TimingConfig) NavigationTimeout() time.Duration { return secs(t.NavigationTimeoutSecs) }

// FormTimeout bounds waiting for the search form.
func (t TimingConfig) FormTimeout() time.Duration { return secs(t.FormTimeoutSecs) }

// SubmitTimeout bounds waiting for results after submit.
func (t TimingConfig) SubmitTimeout() time.Duration { return secs(t.SubmitTimeoutSecs) }

// InputSettle is the pause after selecting and after typing.
func (t TimingConfig) InputSettle() time.Duration { return ms(t.InputSettleMs) }

// ResultSettle is the pause after results load.
func (t TimingConfig) ResultSettle() time.Duration { return ms(t.ResultSettleMs) }

// Pacing is the delay between consecutive browser lookups in a batch.
func (b BatchConfig) Pacing() time.Duration { return ms(b.PacingMs) }

// TTL is how long a successful lookup is cached.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLMinutes) * time.Minute }

// CleanupInterval is the period of the expired-entry sweep.
func (c CacheConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// LaunchTimeout bounds starting chromium.
func (b BrowserConfig) LaunchTimeout() time.Duration { return secs(b.LaunchTimeoutSecs) }

// ActionTimeout bounds page actions without an explicit timeout.
func (b BrowserConfig) ActionTimeout() time.Duration { return secs(b.ActionTimeoutSecs) }

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
