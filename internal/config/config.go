// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Each section maps to a
// top-level key in the config file and can be overridden via OPERATOR_*
// environment variables or CLI flags bound through viper.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// File rotation (lumberjack). Empty LogFile disables file output.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the chromedp-backed driver.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// ScreenshotDir, when set, persists every captured screenshot to disk.
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// LLMConfig controls the decision-model client.
type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	// Endpoint overrides the default generateContent URL derived from Model.
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout      time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
	Temperature     float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
}

// SessionConfig controls the perceive-decide-act loop.
type SessionConfig struct {
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// StepDelay is a small pause between steps, mirroring a polite request rate
	// toward the decision model endpoint.
	StepDelay time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	// MaxWait clamps the duration of a model-requested "wait" action.
	MaxWait time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	// MaxConsecutiveErrors is the number of consecutive failed action
	// executions that forces the session into a failed state.
	MaxConsecutiveErrors int `mapstructure:"max_consecutive_errors" yaml:"max_consecutive_errors"`
}

// HistoryConfig controls the context accumulator digest.
type HistoryConfig struct {
	// Window is the number of most recent entries rendered in full in the
	// digest sent to the decision model; older entries are compacted.
	Window int `mapstructure:"window" yaml:"window"`
}

// SetDefaults registers the default value for every knob on the given viper
// instance. Call before unmarshalling so a missing config file still yields a
// usable configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "operator-cli")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 720)
	v.SetDefault("browser.navigation_timeout", 90*time.Second)
	v.SetDefault("browser.action_timeout", 30*time.Second)
	v.SetDefault("browser.screenshot_dir", "")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.api_timeout", 60*time.Second)
	v.SetDefault("llm.max_retry_elapsed", 2*time.Minute)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_output_tokens", 2048)

	v.SetDefault("session.max_steps", 20)
	v.SetDefault("session.step_delay", 1*time.Second)
	v.SetDefault("session.max_wait", 30*time.Second)
	v.SetDefault("session.max_consecutive_errors", 3)

	v.SetDefault("history.window", 5)
}

// Load unmarshals the global viper state into a Config and validates the
// structural invariants that the rest of the program assumes.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field invariants. Credential presence is checked
// separately at session start so that commands not needing the model (e.g.
// version) still run.
func (c *Config) Validate() error {
	if c.Session.MaxSteps < 1 {
		return fmt.Errorf("session.max_steps must be >= 1, got %d", c.Session.MaxSteps)
	}
	if c.Session.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("session.max_consecutive_errors must be >= 1, got %d", c.Session.MaxConsecutiveErrors)
	}
	if c.History.Window < 1 {
		return fmt.Errorf("history.window must be >= 1, got %d", c.History.Window)
	}
	if c.LLM.Endpoint != "" {
		if _, err := url.ParseRequestURI(c.LLM.Endpoint); err != nil {
			return fmt.Errorf("llm.endpoint is not a valid URL: %w", err)
		}
	}
	if strings.ToLower(c.LLM.Provider) != "gemini" {
		return fmt.Errorf("unknown llm.provider %q (supported: gemini)", c.LLM.Provider)
	}
	return nil
}
