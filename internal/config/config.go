// Package config handles configuration loading from environment variables and
// TOML files. CLI flags are parsed by the cli package and applied on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration settings for the reload server.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Lua     LuaConfig     `toml:"lua"`
	Reload  ReloadConfig  `toml:"reload"`
	Journal JournalConfig `toml:"journal"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP/WebSocket API settings.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ShutdownTimeout Duration `toml:"shutdown-timeout"` // Grace period for open connections
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LuaConfig holds interpreter settings.
type LuaConfig struct {
	Roots []string `toml:"roots"` // Module search roots, in resolution order
	Entry string   `toml:"entry"` // Module imported at startup (CLI arg usually)
}

// ReloadConfig holds dependency tracking settings.
type ReloadConfig struct {
	Blacklist []string `toml:"blacklist"` // Modules never reloaded
	Verbose   bool     `toml:"verbose"`   // Trace every reload step at info level
}

// JournalConfig holds reload history settings.
type JournalConfig struct {
	Backend string `toml:"backend"` // "memory", "sqlite", "postgres", "off"
	Path    string `toml:"path"`    // SQLite file path
	URL     string `toml:"url"`     // PostgreSQL connection URL
	Limit   int    `toml:"limit"`   // Entries kept per listing
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `toml:"level"`     // "debug", "info", "warn", "error"
	Verbosity int    `toml:"verbosity"` // 0=none, 1=requests, 2=reload steps
}

// Duration is a time.Duration that can be unmarshaled from TOML strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            7700,
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Lua: LuaConfig{
			Roots: []string{"."},
		},
		Journal: JournalConfig{
			Backend: "memory",
			Path:    "reload-journal.db",
			Limit:   1000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Verbosity: 0,
		},
	}
}

// Load loads configuration from the TOML file at path, then applies
// environment variable overrides. A missing file is not an error.
// Priority: CLI flags (applied by the caller) > env vars > TOML > defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.loadTOML(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("LUARELOAD_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("LUARELOAD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("LUARELOAD_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Server.ShutdownTimeout = Duration(d)
		}
	}
	if v := os.Getenv("LUARELOAD_ROOTS"); v != "" {
		c.Lua.Roots = filepath.SplitList(v)
	}
	if v := os.Getenv("LUARELOAD_ENTRY"); v != "" {
		c.Lua.Entry = v
	}
	if v := os.Getenv("LUARELOAD_BLACKLIST"); v != "" {
		c.Reload.Blacklist = splitList(v)
	}
	if v := os.Getenv("LUARELOAD_VERBOSE"); v != "" {
		c.Reload.Verbose = v == "true" || v == "1"
	}
	if v := os.Getenv("LUARELOAD_JOURNAL"); v != "" {
		c.Journal.Backend = v
	}
	if v := os.Getenv("LUARELOAD_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv("LUARELOAD_JOURNAL_URL"); v != "" {
		c.Journal.URL = v
	}
	if v := os.Getenv("LUARELOAD_JOURNAL_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			c.Journal.Limit = limit
		}
	}
	if v := os.Getenv("LUARELOAD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LUARELOAD_VERBOSITY"); v != "" {
		if verbosity, err := strconv.Atoi(v); err == nil {
			c.Logging.Verbosity = verbosity
		}
	}
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks settings that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	switch c.Journal.Backend {
	case "memory", "sqlite", "off":
	case "postgres":
		if c.Journal.URL == "" {
			return fmt.Errorf("journal backend postgres requires journal.url")
		}
	default:
		return fmt.Errorf("unknown journal backend %q (want memory, sqlite, postgres, or off)", c.Journal.Backend)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if len(c.Lua.Roots) == 0 {
		return fmt.Errorf("at least one module root is required")
	}
	return nil
}

// Verbosity returns the configured verbosity level.
func (c *Config) Verbosity() int {
	return c.Logging.Verbosity
}
