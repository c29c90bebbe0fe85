package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MrWong99/mapupgrade/internal/diagnostics"
	"github.com/MrWong99/mapupgrade/internal/suggest"
	"github.com/MrWong99/mapupgrade/pkg/entity"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it, and applies
// defaults. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.VersionKey != "" {
		if strings.TrimSpace(cfg.VersionKey) == "" {
			errs = append(errs, errors.New("version_key must not be blank"))
		} else if cfg.VersionKey == entity.KeyClassName {
			errs = append(errs, fmt.Errorf("version_key must not be %q", entity.KeyClassName))
		}
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d must not be negative", cfg.Workers))
	}

	if g := cfg.Game; g != nil {
		if !g.Engine.IsValid() {
			errs = append(errs, fmt.Errorf("game.engine %q is invalid; valid values: goldsource, source, xash3d", g.Engine))
		}
		if strings.TrimSpace(g.ModDirectory) == "" {
			errs = append(errs, errors.New("game.mod_directory is required"))
		}
	}

	for i, p := range cfg.Catalog.Paths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("catalog.paths[%d] is empty", i))
		}
	}

	known := diagnostics.CategoryNames()
	for i, name := range cfg.Diagnostics.Categories {
		if _, err := diagnostics.ParseCategory(name); err != nil {
			errs = append(errs, fmt.Errorf("diagnostics.categories[%d] %q is unknown%s", i, name, suggest.Hint(name, known)))
		}
	}

	return errors.Join(errs...)
}

// DiagnosticsFilter converts the diagnostics section to a
// [diagnostics.Config]. Call it only on a validated config.
func (c *Config) DiagnosticsFilter() diagnostics.Config {
	out := diagnostics.Config{IgnoreKeys: c.Diagnostics.IgnoreKeys}
	if len(c.Diagnostics.Categories) == 0 {
		out.Categories = diagnostics.CategoryAll
		return out
	}
	for _, name := range c.Diagnostics.Categories {
		if cat, err := diagnostics.ParseCategory(name); err == nil {
			out.Categories |= cat
		}
	}
	return out
}
