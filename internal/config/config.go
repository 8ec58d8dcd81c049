// Package config loads the TOML-driven connection and session
// configuration for one endpoint, mirroring the strict unknown-key
// rejection and default-filling style of the teacher project's own
// loadConfig.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Role identifies which side of the peer pair this endpoint plays.
type Role string

const (
	RoleFrom Role = "from"
	RoleTo   Role = "to"
)

// Config is one endpoint's full connection and session configuration.
type Config struct {
	Role Role `toml:"role"`

	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	Username string `toml:"username"`
	Password string `toml:"password"`

	// SessionVariables are `SET` after connecting, mirroring the
	// teacher's PostgreSQLClient constructor's variables parameter and
	// the MySQL adapter's disable_referential_integrity session vars.
	SessionVariables map[string]string `toml:"session_variables"`

	IgnoreTables []string `toml:"ignore_tables"`
	OnlyTables   []string `toml:"only_tables"`

	// IdleIntervalSeconds controls how often RunTo sends the v8 "idle"
	// keepalive. Zero disables it.
	IdleIntervalSeconds int `toml:"idle_interval_seconds"`

	// PeerCommand is the shell command RunTo spawns for the "from" side.
	// Process spawning belongs to the transport layer; this is only the
	// surface that would select it.
	PeerCommand string `toml:"peer_command"`

	configDir string
}

// IdleInterval returns IdleIntervalSeconds as a time.Duration.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalSeconds) * time.Second
}

// Load reads path and returns a validated Config. No defaults are applied;
// an unset port stays 0.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		Port: 0, // engine-specific default filled in by the adapter's Connect
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	switch cfg.Role {
	case RoleFrom, RoleTo:
	case "":
		return nil, fmt.Errorf("role is required (from|to)")
	default:
		return nil, fmt.Errorf("role must be one of: from, to")
	}

	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.Role == RoleTo && cfg.PeerCommand == "" {
		return nil, fmt.Errorf("peer_command is required for role=to")
	}

	return &cfg, nil
}

// ConfigDir is the directory the config file was loaded from, for
// resolving any future relative paths the same way loadConfig does.
func (c *Config) ConfigDir() string { return c.configDir }
