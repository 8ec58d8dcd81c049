package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoint.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
role = "to"
host = "localhost"
port = 5432
database = "widgets"
username = "sync"
password = "secret"
ignore_tables = ["audit_log"]
idle_interval_seconds = 30
peer_command = "ssh db-host ks_postgresql --role=from"

[session_variables]
statement_timeout = "0"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Role != RoleTo {
		t.Errorf("Role = %q, want %q", cfg.Role, RoleTo)
	}
	if cfg.Database != "widgets" {
		t.Errorf("Database = %q, want widgets", cfg.Database)
	}
	if len(cfg.IgnoreTables) != 1 || cfg.IgnoreTables[0] != "audit_log" {
		t.Errorf("IgnoreTables = %v", cfg.IgnoreTables)
	}
	if cfg.IdleInterval().Seconds() != 30 {
		t.Errorf("IdleInterval() = %v, want 30s", cfg.IdleInterval())
	}
	if cfg.SessionVariables["statement_timeout"] != "0" {
		t.Errorf("SessionVariables[statement_timeout] = %q", cfg.SessionVariables["statement_timeout"])
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
role = "from"
database = "widgets"
bogus_key = true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() = nil error, want rejection of unknown key")
	}
}

func TestLoadRequiresRole(t *testing.T) {
	path := writeConfig(t, `database = "widgets"`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() = nil error, want role-required error")
	}
}

func TestLoadRequiresPeerCommandForTo(t *testing.T) {
	path := writeConfig(t, `
role = "to"
database = "widgets"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() = nil error, want peer_command-required error")
	}
}
