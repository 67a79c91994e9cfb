// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Busy policies for a START_AUTOFILL that arrives while a run is still active.
const (
	OnBusyIgnore  = "ignore"
	OnBusyRestart = "restart"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Autofill() AutofillConfig
	Relay() RelayConfig

	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	AutofillCfg AutofillConfig `mapstructure:"autofill" yaml:"autofill"`
	RelayCfg    RelayConfig    `mapstructure:"relay" yaml:"relay"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Autofill() AutofillConfig { return c.AutofillCfg }
func (c *Config) Relay() RelayConfig       { return c.RelayCfg }

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error dpanic panic fatal"`
	Format      string      `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size" validate:"gte=0"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig configures the Chrome instance used by the live command.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout" validate:"gt=0"`
	// FormWaitTimeout bounds how long the live command polls for a form before giving up.
	FormWaitTimeout  time.Duration `mapstructure:"form_wait_timeout" yaml:"form_wait_timeout" validate:"gt=0"`
	FormPollInterval time.Duration `mapstructure:"form_poll_interval" yaml:"form_poll_interval" validate:"gt=0,ltefield=FormWaitTimeout"`
	// ActionTimeout bounds a single CDP round trip (snapshot or mutation).
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout" validate:"gt=0"`
}

// AutofillConfig tunes the orchestrator pacing and re-entrancy.
type AutofillConfig struct {
	ScanDelay  time.Duration `mapstructure:"scan_delay" yaml:"scan_delay" validate:"gte=0"`
	FieldDelay time.Duration `mapstructure:"field_delay" yaml:"field_delay" validate:"gte=0"`
	OnBusy     string        `mapstructure:"on_busy" yaml:"on_busy" validate:"oneof=ignore restart"`
}

// RelayConfig sizes the cross-frame message channels.
type RelayConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size" validate:"gt=0"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.form_wait_timeout", "10s")
	v.SetDefault("browser.form_poll_interval", "500ms")
	v.SetDefault("browser.action_timeout", "15s")

	// -- Autofill --
	v.SetDefault("autofill.scan_delay", "500ms")
	v.SetDefault("autofill.field_delay", "80ms")
	v.SetDefault("autofill.on_busy", OnBusyIgnore)

	// -- Relay --
	v.SetDefault("relay.buffer_size", 64)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// EnvPrefix namespaces every environment override, e.g. FORMPILOT_AUTOFILL_ON_BUSY.
const EnvPrefix = "FORMPILOT"

// NewKeyReplacer maps nested viper keys onto environment variable names.
func NewKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

// LoadDotEnv exports the variables of the given .env files into the process environment.
// Missing files are not an error; existing variables are never overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
