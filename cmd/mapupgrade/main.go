// Command mapupgrade upgrades the entity data of level files to the latest
// version of the configured rule catalogs.
//
// Usage:
//
//	mapupgrade [-config file] [-from v] [-to v] [-lenient] [-dry-run] [-workers n] map...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/mapupgrade/internal/app"
	"github.com/MrWong99/mapupgrade/internal/config"
	"github.com/MrWong99/mapupgrade/internal/observe"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// version is reported in telemetry. Overridden at link time.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// options holds the parsed command line.
type options struct {
	configPath string
	from, to   *upgrade.Version
	lenient    bool
	dryRun     bool
	workers    int
	paths      []string
}

// parseFlags parses args. Usage errors are reported on stderr.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var (
		o        options
		from, to string
	)
	fs := flag.NewFlagSet("mapupgrade", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to the YAML configuration file")
	fs.StringVar(&from, "from", "", "version to upgrade from (default: the map's stored version)")
	fs.StringVar(&to, "to", "", "version to upgrade to (default: the latest catalog version)")
	fs.BoolVar(&o.lenient, "lenient", false, "allow -from to be older than the map's stored version")
	fs.BoolVar(&o.dryRun, "dry-run", false, "upgrade in memory only and do not write files")
	fs.IntVar(&o.workers, "workers", 0, "maps upgraded concurrently (default: from config)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	for _, v := range []struct {
		flag string
		raw  string
		dst  **upgrade.Version
	}{{"from", from, &o.from}, {"to", to, &o.to}} {
		if v.raw == "" {
			continue
		}
		parsed, err := upgrade.ParseVersion(v.raw)
		if err != nil {
			return o, fmt.Errorf("-%s: %w", v.flag, err)
		}
		*v.dst = &parsed
	}
	if o.workers < 0 {
		return o, errors.New("-workers must not be negative")
	}

	o.paths = fs.Args()
	if len(o.paths) == 0 {
		return o, errors.New("no map files given")
	}
	return o, nil
}

func run(args []string, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "mapupgrade: %v\n", err)
		}
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "mapupgrade: %v\n", err)
		return 1
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(stderr, cfg.LogLevel))

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observe.Setup(ctx, observe.TelemetryConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, app.WithMetrics(telemetry.Metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	slog.Info("mapupgrade starting",
		"config", opts.configPath,
		"maps", len(opts.paths),
		"latest", application.Tool().LatestVersion().String(),
		"workers", cfg.Workers,
		"dry_run", opts.dryRun,
	)

	results, runErr := application.Run(ctx, opts.paths, app.RunOptions{
		From:    opts.from,
		To:      opts.to,
		Lenient: opts.lenient,
		DryRun:  opts.dryRun,
	})

	var failed, saved int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		if r.Saved {
			saved++
		}
	}
	slog.Info("mapupgrade finished", "maps", len(results), "saved", saved, "failed", failed)

	if cfg.Metrics.Dump {
		if err := telemetry.WriteMetrics(stderr); err != nil {
			slog.Warn("failed to dump metrics", "err", err)
		}
	}

	if runErr != nil {
		return 1
	}
	return 0
}

// loadConfig reads the config file at path, or returns the defaults when
// path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := &config.Config{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return config.Load(path)
}

// newLogger creates a text slog.Logger writing to w at the given level.
func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.SlogLevel()}))
}
