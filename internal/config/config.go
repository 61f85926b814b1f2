// Package config defines the application configuration, its defaults and
// validation. Values come from defaults, an optional YAML file and
// WEBPILOT_* environment variables, merged through viper.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root configuration tree.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Guard   GuardConfig   `mapstructure:"guard" yaml:"guard"`
	Gate    GateConfig    `mapstructure:"gate" yaml:"gate"`
	Ledger  LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Sites   SitesConfig   `mapstructure:"sites" yaml:"sites"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the browser session.
type BrowserConfig struct {
	// PureGo selects the HTTP-level session instead of a Chrome instance.
	PureGo            bool          `mapstructure:"pure_go" yaml:"pure_go"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	Lang              string        `mapstructure:"lang" yaml:"lang"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// EngineConfig bounds the orchestration loop and the per-action
// resilience profile.
type EngineConfig struct {
	MaxSteps      int           `mapstructure:"max_steps" yaml:"max_steps"`
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Retries       int           `mapstructure:"retries" yaml:"retries"`
	SettleDelay   time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// GuardConfig configures the stop guards: the spending ceiling and the
// URL markers that identify the irreversible checkout stage.
type GuardConfig struct {
	MaxPrice           float64 `mapstructure:"max_price" yaml:"max_price"`
	LoginURLMarker     string  `mapstructure:"login_url_marker" yaml:"login_url_marker"`
	CheckoutPathMarker string  `mapstructure:"checkout_path_marker" yaml:"checkout_path_marker"`
	CheckoutSPCMarker  string  `mapstructure:"checkout_spc_marker" yaml:"checkout_spc_marker"`
	PipelineParam      string  `mapstructure:"pipeline_param" yaml:"pipeline_param"`
	PipelineValue      string  `mapstructure:"pipeline_value" yaml:"pipeline_value"`
}

// GateConfig configures the human handoff gate.
type GateConfig struct {
	// PollAttempts and PollInterval bound the fallback wait used when the
	// resume channel has been severed.
	PollAttempts int           `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// LedgerConfig points at the payment ledger service.
type LedgerConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRPS  float64       `mapstructure:"max_rps" yaml:"max_rps"`
}

// LLMConfig defines the planner model connection.
type LLMConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// SitesConfig holds the base URLs of the sites the catalogs drive plus
// the vault identity used for payment authorization.
type SitesConfig struct {
	BankBaseURL  string `mapstructure:"bank_base_url" yaml:"bank_base_url"`
	ShopBaseURL  string `mapstructure:"shop_base_url" yaml:"shop_base_url"`
	HotelBaseURL string `mapstructure:"hotel_base_url" yaml:"hotel_base_url"`
	UserID       string `mapstructure:"user_id" yaml:"user_id"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", "webpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.pure_go", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 1200)
	v.SetDefault("browser.lang", "en-US")
	v.SetDefault("browser.navigation_timeout", "90s")

	// -- Engine --
	v.SetDefault("engine.max_steps", 40)
	v.SetDefault("engine.action_timeout", "12s")
	v.SetDefault("engine.poll_interval", "250ms")
	v.SetDefault("engine.retries", 2)
	v.SetDefault("engine.settle_delay", "600ms")

	// -- Guard --
	v.SetDefault("guard.max_price", 200.0)
	v.SetDefault("guard.login_url_marker", "login")
	v.SetDefault("guard.checkout_path_marker", "/checkout/p/")
	v.SetDefault("guard.checkout_spc_marker", "/spc")
	v.SetDefault("guard.pipeline_param", "pipelineType")
	v.SetDefault("guard.pipeline_value", "chewbacca")

	// -- Gate --
	v.SetDefault("gate.poll_attempts", 6)
	v.SetDefault("gate.poll_interval", "10s")

	// -- Ledger --
	v.SetDefault("ledger.base_url", "http://127.0.0.1:5000")
	v.SetDefault("ledger.timeout", "10s")
	v.SetDefault("ledger.max_rps", 4.0)

	// -- LLM --
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "90s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)

	// -- Sites --
	v.SetDefault("sites.bank_base_url", "")
	v.SetDefault("sites.shop_base_url", "https://www.amazon.com")
	v.SetDefault("sites.hotel_base_url", "https://www.booking.com")
	v.SetDefault("sites.user_id", "default_user")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values only ever come from the environment.
	v.BindEnv("llm.api_key", "WEBPILOT_LLM_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
	}

	expanded, err := homedir.Expand(cfg.Logger.LogFile)
	if err != nil {
		return nil, fmt.Errorf("invalid logger.log_file path: %w", err)
	}
	cfg.Logger.LogFile = expanded

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be a positive integer")
	}
	if c.Engine.Retries < 0 {
		return fmt.Errorf("engine.retries must not be negative")
	}
	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("engine.poll_interval must be a positive duration")
	}
	if c.Guard.MaxPrice < 0 {
		return fmt.Errorf("guard.max_price must not be negative")
	}
	if c.Guard.CheckoutPathMarker == "" || c.Guard.CheckoutSPCMarker == "" {
		return fmt.Errorf("guard checkout markers must not be empty")
	}
	if c.Gate.PollAttempts <= 0 {
		return fmt.Errorf("gate.poll_attempts must be a positive integer")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window dimensions must be positive")
	}
	return nil
}
