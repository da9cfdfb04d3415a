// Package config loads console settings from ~/.rbr/config.yaml and RBR_*
// environment variables using Viper.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/rbr-console/internal/errors"
	"github.com/felixgeelhaar/rbr-console/internal/log"
)

// EnvPrefix prefixes every environment override, e.g. RBR_BASE_URL.
const EnvPrefix = "RBR"

// Config holds console settings.
type Config struct {
	// BaseURL is the backend API root.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Timeout bounds each backend request (e.g. "30s").
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
	// StrictRoles redirects typed paths outside the role's sidebar to the
	// role's home.
	StrictRoles bool `mapstructure:"strict_roles" yaml:"strict_roles"`
	// PageSize is the initial user table page size: 6, 12 or 24.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
	// NotificationTimeout is how long a notification stays up (e.g. "6s").
	NotificationTimeout string `mapstructure:"notification_timeout" yaml:"notification_timeout"`
	// Email pre-fills the login form and is used by non-interactive commands.
	Email string `mapstructure:"email" yaml:"email,omitempty"`
	// Password is only ever read from RBR_PASSWORD and never rendered.
	Password string `mapstructure:"password" yaml:"-"`

	Log LogConfig `mapstructure:"log" yaml:"log"`

	path string
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// File receives log output. The interactive console never logs to the
	// terminal; empty means ~/.rbr/rbr.log.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Defaults.
const (
	DefaultBaseURL             = "http://127.0.0.1:8000/api"
	DefaultTimeout             = 30 * time.Second
	DefaultNotificationTimeout = 6 * time.Second
	DefaultPageSize            = 6
)

// Dir returns ~/.rbr.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rbr"
	}
	return filepath.Join(home, ".rbr")
}

// DefaultPath returns ~/.rbr/config.yaml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file at path (DefaultPath when empty), applies
// RBR_* environment overrides and validates the result. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, errors.Wrap(errors.ErrCodeConfigRead, fmt.Sprintf("failed to read %s", path), err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("strict_roles", false)
	v.SetDefault("page_size", DefaultPageSize)
	v.SetDefault("notification_timeout", DefaultNotificationTimeout.String())
	v.SetDefault("email", "")
	v.SetDefault("password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to decode configuration", err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return stderrors.As(err, &nf) || stderrors.Is(err, fs.ErrNotExist)
}

// Validate checks every field.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewConfigInvalidError(fmt.Sprintf("base_url %q must be an http(s) URL", c.BaseURL))
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return errors.NewConfigInvalidError(fmt.Sprintf("timeout %q must be a positive duration", c.Timeout))
	}
	if d, err := time.ParseDuration(c.NotificationTimeout); err != nil || d <= 0 {
		return errors.NewConfigInvalidError(fmt.Sprintf("notification_timeout %q must be a positive duration", c.NotificationTimeout))
	}
	if !slices.Contains([]int{6, 12, 24}, c.PageSize) {
		return errors.NewConfigInvalidError(fmt.Sprintf("page_size %d must be 6, 12 or 24", c.PageSize))
	}
	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		return errors.NewConfigInvalidError(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// RequestTimeout parses Timeout. Returns DefaultTimeout if invalid.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// NotificationTTL parses NotificationTimeout. Returns
// DefaultNotificationTimeout if invalid.
func (c *Config) NotificationTTL() time.Duration {
	d, err := time.ParseDuration(c.NotificationTimeout)
	if err != nil || d <= 0 {
		return DefaultNotificationTimeout
	}
	return d
}

// LogFile returns the log destination.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(Dir(), "rbr.log")
}

// LoggerConfig builds the logger configuration for output w.
func (c *Config) LoggerConfig(w io.Writer, version string) log.Config {
	level, _ := log.ParseLevel(c.Log.Level)
	return log.Config{
		Level:          level,
		Format:         log.ParseFormat(c.Log.Format),
		Output:         w,
		ServiceName:    "rbr",
		ServiceVersion: version,
	}
}

// YAML renders the effective configuration. The password never appears.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
