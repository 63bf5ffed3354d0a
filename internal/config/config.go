// Package config loads solstice settings. Values are layered: built-in
// defaults, then an optional TOML file, then SOLSTICE_* environment
// variables, then command-line flags that were explicitly set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"solstice/internal/observability/jsonlog"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Addr            string        `toml:"addr"`
	LogLevel        string        `toml:"log_level"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	Database Database `toml:"database"`
	Events   Events   `toml:"events"`
	CORS     CORS     `toml:"cors"`
}

type Database struct {
	Driver          string `toml:"driver"`
	DSN             string `toml:"dsn"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	ConnectAttempts int    `toml:"connect_attempts"`
}

type Events struct {
	// NATSURL enables publishing change events when set.
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
	BufferSize    int    `toml:"buffer_size"`
}

type CORS struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

func Default() Config {
	return Config{
		Addr:            "0.0.0.0:8080",
		LogLevel:        "info",
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Database: Database{
			Driver:          DriverSQLite,
			DSN:             "data.db",
			MaxOpenConns:    10,
			ConnectAttempts: 5,
		},
		Events: Events{
			SubjectPrefix: "solstice.tasks",
			BufferSize:    256,
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and the environment as seen through getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if path == "" {
		path = getenv("SOLSTICE_CONFIG")
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes the TOML file at path over cfg. Keys absent from the
// file keep their current values; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides cfg with any SOLSTICE_* variables that are set.
// DB_URL is honoured as a fallback for SOLSTICE_DB_DSN.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("SOLSTICE_ADDR", &c.Addr)
	str("SOLSTICE_LOG_LEVEL", &c.LogLevel)
	str("SOLSTICE_DB_DRIVER", &c.Database.Driver)
	str("DB_URL", &c.Database.DSN)
	str("SOLSTICE_DB_DSN", &c.Database.DSN)
	str("SOLSTICE_NATS_URL", &c.Events.NATSURL)
	str("SOLSTICE_EVENTS_SUBJECT_PREFIX", &c.Events.SubjectPrefix)
	if v := strings.TrimSpace(getenv("SOLSTICE_CORS_ORIGINS")); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}

	return errors.Join(
		integer("SOLSTICE_DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns),
		integer("SOLSTICE_DB_CONNECT_ATTEMPTS", &c.Database.ConnectAttempts),
		integer("SOLSTICE_EVENTS_BUFFER_SIZE", &c.Events.BufferSize),
		duration("SOLSTICE_REQUEST_TIMEOUT", &c.RequestTimeout),
		duration("SOLSTICE_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout),
	)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if _, err := jsonlog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.Database.Driver))
	}
	if c.Database.ConnectAttempts < 1 {
		errs = append(errs, errors.New("database.connect_attempts must be at least 1"))
	}
	if c.Events.BufferSize < 1 {
		errs = append(errs, errors.New("events.buffer_size must be at least 1"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
