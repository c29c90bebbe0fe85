package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/mapupgrade/internal/config"
	"github.com/MrWong99/mapupgrade/internal/diagnostics"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
log_level: debug
version_key: MapRevision
workers: 4
strict: false

game:
  engine: goldsource
  name: Half-Life
  mod_directory: valve

catalog:
  paths:
    - rules/base.yaml
    - rules/hl1.yaml

diagnostics:
  enabled: true
  categories: [keyvalue_changed, entity_removed]
  ignore_keys: [angles]

audit:
  postgres_dsn: postgres://localhost/mapupgrade

metrics:
  dump: true
`

// ── Loading ──────────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q, want %q", cfg.LogLevel, config.LogDebug)
	}
	if cfg.VersionKey != "MapRevision" {
		t.Errorf("version_key: got %q", cfg.VersionKey)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers: got %d, want 4", cfg.Workers)
	}
	if cfg.IsStrict() {
		t.Error("strict: got true, want false")
	}
	game := cfg.Game.GameInfo()
	if game == nil || game.Engine != upgrade.EngineGoldSource || game.ModDirectory != "valve" || game.Name != "Half-Life" {
		t.Errorf("game: got %+v", game)
	}
	if len(cfg.Catalog.Paths) != 2 || cfg.Catalog.Paths[1] != "rules/hl1.yaml" {
		t.Errorf("catalog.paths: got %v", cfg.Catalog.Paths)
	}
	if !cfg.Diagnostics.Enabled {
		t.Error("diagnostics.enabled: got false")
	}
	if cfg.Audit.PostgresDSN == "" {
		t.Error("audit.postgres_dsn: empty")
	}
	if !cfg.Metrics.Dump {
		t.Error("metrics.dump: got false")
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("unexpected error for empty config %q: %v", doc, err)
		}
		if cfg.LogLevel != config.LogInfo {
			t.Errorf("default log_level: got %q", cfg.LogLevel)
		}
		if cfg.VersionKey != upgrade.DefaultVersionKey {
			t.Errorf("default version_key: got %q", cfg.VersionKey)
		}
		if cfg.Workers != 1 {
			t.Errorf("default workers: got %d", cfg.Workers)
		}
		if !cfg.IsStrict() {
			t.Error("strict must default to true")
		}
		if cfg.Game.GameInfo() != nil {
			t.Error("game must default to nil")
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("log_levle: info\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mapupgrade.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers: got %d", cfg.Workers)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "log level", yaml: "log_level: verbose\n", want: "log_level"},
		{name: "classname version key", yaml: "version_key: classname\n", want: "version_key"},
		{name: "blank version key", yaml: "version_key: \"  \"\n", want: "version_key"},
		{name: "negative workers", yaml: "workers: -2\n", want: "workers"},
		{name: "engine", yaml: "game:\n  engine: quake\n  mod_directory: id1\n", want: "game.engine"},
		{name: "mod directory", yaml: "game:\n  engine: source\n", want: "game.mod_directory"},
		{name: "empty catalog path", yaml: "catalog:\n  paths: [\"\"]\n", want: "catalog.paths[0]"},
		{name: "unknown category", yaml: "diagnostics:\n  categories: [entity_spawned]\n", want: "diagnostics.categories[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_CategorySuggestion(t *testing.T) {
	t.Parallel()

	yaml := `
diagnostics:
  categories: [keyvalue_chaged]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), `did you mean "keyvalue_changed"`) {
		t.Errorf("error should carry a suggestion, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()

	yaml := `
log_level: loud
workers: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") || !strings.Contains(errStr, "workers") {
		t.Errorf("error should list every problem, got: %v", err)
	}
}

// ── Conversions ──────────────────────────────────────────────────────────────

func TestDiagnosticsFilter(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	f := cfg.DiagnosticsFilter()
	if f.Categories != diagnostics.CategoryKeyValueChanged|diagnostics.CategoryEntityRemoved {
		t.Errorf("categories: got %s", f.Categories)
	}
	if len(f.IgnoreKeys) != 1 || f.IgnoreKeys[0] != "angles" {
		t.Errorf("ignore keys: got %v", f.IgnoreKeys)
	}

	empty, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if empty.DiagnosticsFilter().Categories != diagnostics.CategoryAll {
		t.Error("no categories must select all")
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.in.SlogLevel(); got != tt.want {
			t.Errorf("%q.SlogLevel() = %v, want %v", tt.in, got, tt.want)
		}
	}
}
