package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solstice.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8080" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.DSN != "data.db" {
		t.Fatalf("database=%+v", cfg.Database)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
addr = "127.0.0.1:9000"
request_timeout = "3s"

[database]
driver = "postgres"
dsn = "postgres://localhost/tasks"

[cors]
allowed_origins = ["https://a.example"]
`)
	cfg, err := Load(path, envMap(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("request_timeout=%v", cfg.RequestTimeout)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.DSN != "postgres://localhost/tasks" {
		t.Fatalf("database=%+v", cfg.Database)
	}
	// untouched keys keep defaults
	if cfg.Database.ConnectAttempts != Default().Database.ConnectAttempts {
		t.Fatalf("connect_attempts=%d", cfg.Database.ConnectAttempts)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://a.example" {
		t.Fatalf("origins=%v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "adr = \"typo\"\n")
	_, err := Load(path, envMap(nil))
	if err == nil || !strings.Contains(err.Error(), "unknown keys: adr") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), envMap(nil))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "log_level = \"debug\"\n")
	cfg, err := Load("", envMap(map[string]string{"SOLSTICE_CONFIG": path}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level=%q", cfg.LogLevel)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "addr = \"127.0.0.1:9000\"\n")
	cfg, err := Load(path, envMap(map[string]string{
		"SOLSTICE_ADDR":              ":7000",
		"SOLSTICE_DB_MAX_OPEN_CONNS": "4",
		"SOLSTICE_SHUTDOWN_TIMEOUT":  "250ms",
		"SOLSTICE_CORS_ORIGINS":      "https://a.example, https://b.example",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.Database.MaxOpenConns != 4 {
		t.Fatalf("max_open_conns=%d", cfg.Database.MaxOpenConns)
	}
	if cfg.ShutdownTimeout != 250*time.Millisecond {
		t.Fatalf("shutdown_timeout=%v", cfg.ShutdownTimeout)
	}
	if got := strings.Join(cfg.CORS.AllowedOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Fatalf("origins=%q", got)
	}
}

func TestDBURLAlias(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{"DB_URL": "postgres://a"}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "postgres://a" {
		t.Fatalf("dsn=%q", cfg.Database.DSN)
	}

	cfg, err = Load("", envMap(map[string]string{"DB_URL": "postgres://a", "SOLSTICE_DB_DSN": "postgres://b"}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "postgres://b" {
		t.Fatalf("SOLSTICE_DB_DSN should win, dsn=%q", cfg.Database.DSN)
	}
}

func TestEnvBadValues(t *testing.T) {
	_, err := Load("", envMap(map[string]string{
		"SOLSTICE_DB_MAX_OPEN_CONNS": "many",
		"SOLSTICE_REQUEST_TIMEOUT":   "soon",
	}))
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"SOLSTICE_DB_MAX_OPEN_CONNS", "SOLSTICE_REQUEST_TIMEOUT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("err=%v, want mention of %s", err, want)
		}
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	path := writeFile(t, "addr = \"file:1\"\nlog_level = \"warn\"\n")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--config", path, "--addr", "flag:3"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := FromFlags(fs, envMap(map[string]string{"SOLSTICE_ADDR": "env:2", "SOLSTICE_LOG_LEVEL": "error"}))
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.Addr != "flag:3" {
		t.Fatalf("addr=%q, want flag value", cfg.Addr)
	}
	// unset flags do not clobber env with their defaults
	if cfg.LogLevel != "error" {
		t.Fatalf("log_level=%q, want env value", cfg.LogLevel)
	}
}

func TestFlagDurations(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--request-timeout", "2s", "--db-driver", "memory"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := FromFlags(fs, envMap(nil))
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.RequestTimeout != 2*time.Second || cfg.Database.Driver != DriverMemory {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, `unsupported database.driver "mysql"`},
		{"postgres needs dsn", func(c *Config) { c.Database.Driver = DriverPostgres; c.Database.DSN = "" }, "dsn is required"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"negative shutdown", func(c *Config) { c.ShutdownTimeout = -time.Second }, "shutdown_timeout"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "loud"},
		{"empty addr", func(c *Config) { c.Addr = " " }, "addr is required"},
		{"zero buffer", func(c *Config) { c.Events.BufferSize = 0 }, "buffer_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v, want %q", err, tt.want)
			}
		})
	}
}
