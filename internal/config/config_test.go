package config

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"
)

// loadWithDataDir points the config at a temp data dir and loads it.
func loadWithDataDir(t *testing.T, dir string, args ...string) Config {
	t.Helper()
	t.Setenv("STUDYSYNC_DATA_DIR", dir)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg := loadWithDataDir(t, dir)

	if cfg.Host != "127.0.0.1" || cfg.Port != 8080 {
		t.Errorf("defaults = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.DataDir != dir {
		t.Errorf("dataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.DBPath != filepath.Join(dir, "studysync.db") {
		t.Errorf("dbPath = %q", cfg.DBPath)
	}
}

func TestLoad_SecretPersistsAcrossLoads(t *testing.T) {
	dir := t.TempDir()

	first := loadWithDataDir(t, dir)
	if first.TokenSecret == "" {
		t.Fatal("no token secret generated")
	}
	if _, err := first.Secret(); err != nil {
		t.Fatalf("Secret: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perm = %o, want 600", perm)
	}

	second := loadWithDataDir(t, dir)
	if second.TokenSecret != first.TokenSecret {
		t.Error("token secret changed between loads")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, map[string]any{
		"host": "0.0.0.0",
		"port": 9000,
	})

	cfg := loadWithDataDir(t, dir)
	if cfg.Host != "0.0.0.0" || cfg.Port != 9000 {
		t.Errorf("got %s:%d, want 0.0.0.0:9000", cfg.Host, cfg.Port)
	}
}

func TestLoad_FlagsWinOverFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, map[string]any{"port": 9000})

	cfg := loadWithDataDir(t, dir, "-port", "7000")
	if cfg.Port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.Port)
	}
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, map[string]any{"port": 9000})

	// Flags registered with defaults but never set on the command
	// line must not clobber the file value.
	cfg := loadWithDataDir(t, dir)
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
}

func TestLoad_SecretMergesIntoExistingConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, map[string]any{"port": 9000})

	loadWithDataDir(t, dir)

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	var file map[string]any
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("parsing config: %v", err)
	}
	if file["port"] != float64(9000) {
		t.Errorf("port lost on secret write: %v", file["port"])
	}
	if file["token_secret"] == "" {
		t.Error("token_secret not persisted")
	}
}

func writeConfig(t *testing.T, dir string, values map[string]any) {
	t.Helper()
	data, err := json.Marshal(values)
	if err != nil {
		t.Fatalf("marshaling config: %v", err)
	}
	if err := os.WriteFile(
		filepath.Join(dir, "config.json"), data, 0o600,
	); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}
