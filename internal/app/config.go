package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/zoravur/sqlbind/pkg/session"
	"github.com/zoravur/sqlbind/pkg/todb"
)

// Config is the server configuration. It is read from YAML, then
// overridden by SQLBIND_* environment variables and finally by flags.
type Config struct {
	Addr     string `yaml:"addr"`
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Style    string `yaml:"style"`     // empty means the driver's own
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	Dev      bool   `yaml:"dev"`
	// Check parses every statement with the Postgres parser before it is
	// sent. Only meaningful for Postgres drivers.
	Check           bool   `yaml:"check"`
	ShutdownTimeout string `yaml:"shutdown_timeout"` // e.g. "5s"
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		Driver:          "sqlite3",
		DSN:             "file::memory:?cache=shared",
		LogLevel:        "info",
		ShutdownTimeout: "5s",
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("SQLBIND_ADDR", &c.Addr)
	str("SQLBIND_DRIVER", &c.Driver)
	str("SQLBIND_DSN", &c.DSN)
	str("SQLBIND_STYLE", &c.Style)
	str("SQLBIND_LOG_LEVEL", &c.LogLevel)
	str("SQLBIND_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	if v, err := strconv.ParseBool(os.Getenv("SQLBIND_CHECK")); err == nil {
		c.Check = v
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if _, err := session.DialectFor(c.Driver); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ParsedStyle(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParsedStyle returns the configured style, or nil when the driver
// default applies.
func (c Config) ParsedStyle() (*todb.Style, error) {
	if c.Style == "" {
		return nil, nil
	}
	s, err := todb.ParseStyle(c.Style)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.LogLevel)
}

func (c Config) Timeout() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("shutdown_timeout: %w", err)
	}
	return d, nil
}
