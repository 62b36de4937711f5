package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadMissingFileUsesDefaults verifies a missing config file is not an error
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if cfg.Server.Addr() != want.Server.Addr() {
		t.Errorf("addr = %s, want default %s", cfg.Server.Addr(), want.Server.Addr())
	}
	if cfg.Journal.Backend != "memory" {
		t.Errorf("journal backend = %q, want memory", cfg.Journal.Backend)
	}
}

// TestLoadTOMLOverridesDefaults verifies file settings replace defaults
func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 9000
shutdown-timeout = "30s"

[lua]
roots = ["scripts", "vendor"]
entry = "app.main"

[reload]
blacklist = ["vendor.json"]
verbose = true

[journal]
backend = "sqlite"
path = "custom.db"
limit = 50
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:9000" {
		t.Errorf("addr = %s, want 0.0.0.0:9000", got)
	}
	if got := cfg.Server.ShutdownTimeout.Duration(); got != 30*time.Second {
		t.Errorf("shutdown timeout = %s, want 30s", got)
	}
	if want := []string{"scripts", "vendor"}; !reflect.DeepEqual(cfg.Lua.Roots, want) {
		t.Errorf("roots = %v, want %v", cfg.Lua.Roots, want)
	}
	if cfg.Lua.Entry != "app.main" {
		t.Errorf("entry = %q, want app.main", cfg.Lua.Entry)
	}
	if want := []string{"vendor.json"}; !reflect.DeepEqual(cfg.Reload.Blacklist, want) {
		t.Errorf("blacklist = %v, want %v", cfg.Reload.Blacklist, want)
	}
	if !cfg.Reload.Verbose {
		t.Error("verbose should be set from file")
	}
	if cfg.Journal.Backend != "sqlite" || cfg.Journal.Path != "custom.db" || cfg.Journal.Limit != 50 {
		t.Errorf("journal = %+v, want sqlite/custom.db/50", cfg.Journal)
	}
}

// TestEnvOverridesTOML verifies environment variables beat file settings
func TestEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000

[logging]
level = "debug"
`)
	t.Setenv("LUARELOAD_PORT", "9100")
	t.Setenv("LUARELOAD_LOG_LEVEL", "warn")
	t.Setenv("LUARELOAD_BLACKLIST", "a.b, c ,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want env override warn", cfg.Logging.Level)
	}
	if want := []string{"a.b", "c"}; !reflect.DeepEqual(cfg.Reload.Blacklist, want) {
		t.Errorf("blacklist = %v, want trimmed %v", cfg.Reload.Blacklist, want)
	}
}

// TestDurationUnmarshalText verifies duration strings parse and bad ones fail
func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1h30m")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration() != 90*time.Minute {
		t.Errorf("duration = %s, want 1h30m", d)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

// TestValidateRejectsBadSettings verifies Load surfaces configuration mistakes
func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown journal backend", "[journal]\nbackend = \"redis\"\n"},
		{"postgres without url", "[journal]\nbackend = \"postgres\"\n"},
		{"unknown log level", "[logging]\nlevel = \"loud\"\n"},
		{"port out of range", "[server]\nport = 70000\n"},
		{"no roots", "[lua]\nroots = []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsPostgresWithURL(t *testing.T) {
	body := "[journal]\nbackend = \"postgres\"\nurl = \"postgres://localhost/reload?sslmode=disable\"\n"
	if _, err := Load(writeConfig(t, body)); err != nil {
		t.Errorf("Load: %v", err)
	}
}
