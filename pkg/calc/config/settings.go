package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Settings is the typed configuration of the calculator service.
type Settings struct {
	Addr         string
	Prefix       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	StoreDriver string
	StorePath   string

	SessionTTL    time.Duration
	SweepInterval time.Duration

	MinValue int
	MaxValue int

	LogLevel  string
	LogFormat string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Addr:          "localhost:8080",
		Prefix:        "/calc",
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		StoreDriver:   DriverMemory,
		StorePath:     "calc.db",
		SessionTTL:    30 * time.Minute,
		SweepInterval: time.Minute,
		MinValue:      -10000,
		MaxValue:      10000,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// FromConfig reads Settings from c, falling back to Defaults for missing keys.
func FromConfig(c Config) Settings {
	d := Defaults()
	return Settings{
		Addr:          c.String("server.addr", d.Addr),
		Prefix:        c.String("server.prefix", d.Prefix),
		ReadTimeout:   c.Duration("server.read_timeout", d.ReadTimeout),
		WriteTimeout:  c.Duration("server.write_timeout", d.WriteTimeout),
		StoreDriver:   strings.ToLower(c.String("store.driver", d.StoreDriver)),
		StorePath:     c.String("store.path", d.StorePath),
		SessionTTL:    c.Duration("session.ttl", d.SessionTTL),
		SweepInterval: c.Duration("session.sweep_interval", d.SweepInterval),
		MinValue:      c.Int("limits.min", d.MinValue),
		MaxValue:      c.Int("limits.max", d.MaxValue),
		LogLevel:      strings.ToLower(c.String("log.level", d.LogLevel)),
		LogFormat:     strings.ToLower(c.String("log.format", d.LogFormat)),
	}
}

// Load reads Settings from a YAML or JSON file. An empty path yields Defaults.
func Load(path string) (Settings, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv reads Settings from the file at path (optional) and then from
// the CALC_* variables in environ, which take precedence.
func LoadWithEnv(path string, environ []string) (Settings, error) {
	c := New(nil)
	if path != "" {
		var err error
		if c, err = FromFile(path); err != nil {
			return Settings{}, err
		}
	}
	c = c.Overlay(FromEnv(EnvPrefix, environ))

	s := FromConfig(c)
	if err := s.Validate(); err != nil {
		if path == "" {
			return Settings{}, fmt.Errorf("config: %w", err)
		}
		return Settings{}, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

// Validate reports every inconsistent setting.
func (s Settings) Validate() error {
	var errs []error
	if s.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if !strings.HasPrefix(s.Prefix, "/") {
		errs = append(errs, fmt.Errorf("server.prefix %q must start with /", s.Prefix))
	}
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	switch s.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if s.StorePath == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", s.StoreDriver))
	}
	if s.SessionTTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if s.SweepInterval <= 0 {
		errs = append(errs, errors.New("session.sweep_interval must be positive"))
	}
	if s.MinValue > s.MaxValue {
		errs = append(errs, fmt.Errorf("limits.min (%d) exceeds limits.max (%d)", s.MinValue, s.MaxValue))
	}
	if _, err := s.Level(); err != nil {
		errs = append(errs, err)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log.format %q", s.LogFormat))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (s Settings) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log.level %q", s.LogLevel)
	}
	return l, nil
}
