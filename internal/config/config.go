// Package config holds the daemon settings shared by the CLI, the engine and
// the config file writer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Keys as they appear in flags, env vars (CLIPTEXT_ prefix, dashes as
// underscores) and the config file.
const (
	KeyCapacity     = "capacity"
	KeyPollInterval = "poll-interval"
	KeySettleDelay  = "settle-delay"
	KeyHeadless     = "headless"
	KeySocket       = "socket"
	KeyToken        = "token"
	KeyLogFormat    = "log-format"
	KeyLogLevel     = "log-level"
	KeyNoBackground = "no-background"
)

// FileName is the config file base name searched for by viper.
const FileName = "cliptext.toml"

// Bounds accepted by Validate.
const (
	MinPollInterval = 10 * time.Millisecond
	MaxCapacity     = 1000
)

// Config is the resolved daemon configuration.
type Config struct {
	Capacity     int
	PollInterval time.Duration
	SettleDelay  time.Duration
	Headless     bool
	Socket       string
	Token        string
	LogFormat    string
	LogLevel     string
	NoBackground bool
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Capacity:     10,
		PollInterval: 500 * time.Millisecond,
		SettleDelay:  100 * time.Millisecond,
		LogFormat:    "auto",
	}
}

// SetDefaults registers Default() on v so unset keys resolve to it.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyCapacity, d.Capacity)
	v.SetDefault(KeyPollInterval, d.PollInterval)
	v.SetDefault(KeySettleDelay, d.SettleDelay)
	v.SetDefault(KeyLogFormat, d.LogFormat)
}

// FromViper extracts a Config from v. It does not validate.
func FromViper(v *viper.Viper) Config {
	return Config{
		Capacity:     v.GetInt(KeyCapacity),
		PollInterval: v.GetDuration(KeyPollInterval),
		SettleDelay:  v.GetDuration(KeySettleDelay),
		Headless:     v.GetBool(KeyHeadless),
		Socket:       v.GetString(KeySocket),
		Token:        v.GetString(KeyToken),
		LogFormat:    v.GetString(KeyLogFormat),
		LogLevel:     v.GetString(KeyLogLevel),
		NoBackground: v.GetBool(KeyNoBackground),
	}
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Capacity < 1 || c.Capacity > MaxCapacity {
		errs = append(errs, fmt.Errorf("%s must be between 1 and %d, got %d", KeyCapacity, MaxCapacity, c.Capacity))
	}
	if c.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("%s must be at least %s, got %s", KeyPollInterval, MinPollInterval, c.PollInterval))
	}
	if c.SettleDelay <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeySettleDelay, c.SettleDelay))
	}
	switch c.LogFormat {
	case "", "auto", "text", "tint", "human", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be auto, text or json, got %q", KeyLogFormat, c.LogFormat))
	}
	return errors.Join(errs...)
}

// file is the on-disk shape. Durations are written as strings so the file
// reads "500ms" rather than nanoseconds.
type file struct {
	Capacity     int    `toml:"capacity"`
	PollInterval string `toml:"poll-interval"`
	SettleDelay  string `toml:"settle-delay"`
	Headless     bool   `toml:"headless"`
	Socket       string `toml:"socket,omitempty"`
	Token        string `toml:"token,omitempty"`
	LogFormat    string `toml:"log-format"`
	LogLevel     string `toml:"log-level,omitempty"`
}

// ErrExists is returned by WriteFile when path exists and force is false.
var ErrExists = errors.New("config file already exists")

// WriteFile writes c as TOML to path, creating parent directories. The file is
// created 0600 since it may hold the token.
func WriteFile(path string, c Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(file{
		Capacity:     c.Capacity,
		PollInterval: c.PollInterval.String(),
		SettleDelay:  c.SettleDelay.String(),
		Headless:     c.Headless,
		Socket:       c.Socket,
		Token:        c.Token,
		LogFormat:    c.LogFormat,
		LogLevel:     c.LogLevel,
	}); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// UserPath returns $HOME/.config/cliptext/cliptext.toml.
func UserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cliptext", FileName), nil
}
