// Package config provides the configuration schema and loader for the
// mapupgrade tool.
package config

import (
	"log/slog"

	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel converts l to the equivalent [slog.Level]. Unknown values map to
// info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// VersionKey is the root keyvalue holding the stored map version.
	// Default: [upgrade.DefaultVersionKey].
	VersionKey string `yaml:"version_key"`

	// Workers bounds how many map files are upgraded concurrently. Default: 1.
	Workers int `yaml:"workers"`

	// Strict rejects explicit starting versions older than the stored one.
	// Nil means true.
	Strict *bool `yaml:"strict"`

	// Game identifies the game the maps belong to. When nil, game-filtered
	// rules never fire.
	Game *GameConfig `yaml:"game"`

	Catalog     CatalogConfig     `yaml:"catalog"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// GameConfig is the YAML form of [upgrade.GameInfo].
type GameConfig struct {
	Engine       upgrade.Engine `yaml:"engine"`
	Name         string         `yaml:"name"`
	ModDirectory string         `yaml:"mod_directory"`
}

// GameInfo converts g to an [upgrade.GameInfo]. A nil receiver yields nil.
func (g *GameConfig) GameInfo() *upgrade.GameInfo {
	if g == nil {
		return nil
	}
	return &upgrade.GameInfo{Engine: g.Engine, Name: g.Name, ModDirectory: g.ModDirectory}
}

// CatalogConfig lists the rule catalog files compiled into the tool.
type CatalogConfig struct {
	// Paths are loaded in order. A version may be declared by only one
	// upgrade across all files.
	Paths []string `yaml:"paths"`
}

// DiagnosticsConfig configures the entity event logger.
type DiagnosticsConfig struct {
	// Enabled turns event logging on.
	Enabled bool `yaml:"enabled"`

	// Categories selects the reported event categories by name. Empty means
	// all categories.
	Categories []string `yaml:"categories"`

	// IgnoreKeys lists keys whose keyvalue events are never reported.
	IgnoreKeys []string `yaml:"ignore_keys"`
}

// AuditConfig selects where upgrade runs are recorded.
type AuditConfig struct {
	// PostgresDSN is the connection string of the audit database. When
	// empty, runs are kept in memory for the lifetime of the process.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// MetricsConfig controls metrics output.
type MetricsConfig struct {
	// Dump writes the Prometheus text exposition to stderr before exit.
	Dump bool `yaml:"dump"`
}

// IsStrict reports whether strict version checking is enabled.
func (c *Config) IsStrict() bool {
	return c.Strict == nil || *c.Strict
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogInfo
	}
	if c.VersionKey == "" {
		c.VersionKey = upgrade.DefaultVersionKey
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Strict == nil {
		strict := true
		c.Strict = &strict
	}
}
