package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by the commands that accept configuration.
const (
	FlagConfig          = "config"
	FlagAddr            = "addr"
	FlagLogLevel        = "log-level"
	FlagDBDriver        = "db-driver"
	FlagDBDSN           = "db-dsn"
	FlagNATSURL         = "nats-url"
	FlagRequestTimeout  = "request-timeout"
	FlagShutdownTimeout = "shutdown-timeout"
)

// RegisterFlags declares the configuration flags on fs. Their defaults are
// only shown in help output; ApplyFlags copies values that were set.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String(FlagConfig, "", "Path to a TOML config file (env SOLSTICE_CONFIG)")
	fs.String(FlagAddr, def.Addr, "HTTP listen address")
	fs.String(FlagLogLevel, def.LogLevel, "Log level: debug, info, warn, error")
	fs.String(FlagDBDriver, def.Database.Driver, "Database driver: sqlite, postgres, memory")
	fs.String(FlagDBDSN, def.Database.DSN, "Database DSN or SQLite file path")
	fs.String(FlagNATSURL, "", "NATS server URL for change events (disabled when empty)")
	fs.Duration(FlagRequestTimeout, def.RequestTimeout, "Per-request timeout")
	fs.Duration(FlagShutdownTimeout, def.ShutdownTimeout, "Graceful shutdown timeout")
}

// ApplyFlags overrides cfg with the flags the user actually set on fs.
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	strs := map[string]*string{
		FlagAddr:     &cfg.Addr,
		FlagLogLevel: &cfg.LogLevel,
		FlagDBDriver: &cfg.Database.Driver,
		FlagDBDSN:    &cfg.Database.DSN,
		FlagNATSURL:  &cfg.Events.NATSURL,
	}
	for name, dst := range strs {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Lookup(FlagRequestTimeout) != nil && fs.Changed(FlagRequestTimeout) {
		d, err := fs.GetDuration(FlagRequestTimeout)
		if err != nil {
			return err
		}
		cfg.RequestTimeout = d
	}
	if fs.Lookup(FlagShutdownTimeout) != nil && fs.Changed(FlagShutdownTimeout) {
		d, err := fs.GetDuration(FlagShutdownTimeout)
		if err != nil {
			return err
		}
		cfg.ShutdownTimeout = d
	}
	return nil
}

// FromFlags loads the config file named by --config (or SOLSTICE_CONFIG),
// applies the environment, then the flags, and validates the result.
func FromFlags(fs *pflag.FlagSet, getenv func(string) string) (Config, error) {
	var path string
	if fs.Lookup(FlagConfig) != nil {
		p, err := fs.GetString(FlagConfig)
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	cfg, err := Load(path, getenv)
	if err != nil {
		return Config{}, err
	}
	if err := ApplyFlags(fs, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
