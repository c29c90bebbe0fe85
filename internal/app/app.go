// Package app wires the mapupgrade subsystems into a running application.
//
// The App struct owns the full lifecycle: New compiles the rule catalogs
// and connects the audit store, Run upgrades a batch of map files, and
// Shutdown releases everything in order.
//
// For testing, inject implementations via functional options (WithAuditStore,
// WithMetrics, WithTool). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mapupgrade/internal/audit"
	"github.com/MrWong99/mapupgrade/internal/audit/postgres"
	"github.com/MrWong99/mapupgrade/internal/catalog"
	"github.com/MrWong99/mapupgrade/internal/config"
	"github.com/MrWong99/mapupgrade/internal/diagnostics"
	"github.com/MrWong99/mapupgrade/internal/mapstore"
	"github.com/MrWong99/mapupgrade/internal/observe"
	"github.com/MrWong99/mapupgrade/internal/resilience"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// App owns all subsystem lifetimes and orchestrates batch upgrades.
type App struct {
	cfg     *config.Config
	tool    *upgrade.Tool
	store   audit.Store
	metrics *observe.Metrics

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAuditStore injects an audit store instead of creating one from config.
func WithAuditStore(s audit.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects metric instruments instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTool injects a built upgrade tool instead of compiling the configured
// catalogs.
func WithTool(t *upgrade.Tool) Option {
	return func(a *App) { a.tool = t }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from a validated config with defaults applied. Use
// Option functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Metrics ───────────────────────────────────────────────────────
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 2. Upgrade tool ──────────────────────────────────────────────────
	if err := a.initTool(); err != nil {
		return nil, fmt.Errorf("app: init tool: %w", err)
	}

	// ── 3. Audit store ───────────────────────────────────────────────────
	if err := a.initAudit(ctx); err != nil {
		return nil, fmt.Errorf("app: init audit: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTool loads the catalog files and builds the upgrade tool.
func (a *App) initTool() error {
	if a.tool != nil {
		return nil
	}

	files := make([]*catalog.File, 0, len(a.cfg.Catalog.Paths))
	for _, path := range a.cfg.Catalog.Paths {
		f, err := catalog.LoadFile(path)
		if err != nil {
			return err
		}
		files = append(files, f)
		slog.Info("loaded rule catalog", "path", path, "upgrades", len(f.Upgrades))
	}

	b := upgrade.NewBuilder(
		upgrade.WithVersionKey(a.cfg.VersionKey),
		upgrade.WithLogger(slog.Default()),
		upgrade.WithRecorder(a.metrics),
		upgrade.WithTracer(observe.Tracer()),
	)
	catalog.Register(b, files...)
	tool, err := b.Build()
	if err != nil {
		return err
	}
	a.tool = tool
	return nil
}

// initAudit connects the PostgreSQL audit store or falls back to memory.
// Runs the database refuses mid-batch are kept in memory behind a breaker.
func (a *App) initAudit(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Audit.PostgresDSN
	if dsn == "" {
		a.store = audit.NewMemStore()
		return nil
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = audit.NewFailoverStore(store, audit.NewMemStore(), resilience.New(resilience.Config{
		Name:        "audit-postgres",
		MaxFailures: 3,
		CoolDown:    30 * time.Second,
	}))
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// Tool returns the upgrade tool compiled from the catalogs.
func (a *App) Tool() *upgrade.Tool { return a.tool }

// AuditStore returns the store runs are recorded in.
func (a *App) AuditStore() audit.Store { return a.store }

// ─── Run ─────────────────────────────────────────────────────────────────────

// RunOptions are the per-invocation settings of [App.Run].
type RunOptions struct {
	// From and To override the stored and latest versions.
	From, To *upgrade.Version

	// Lenient allows From to be older than the stored version. The config's
	// strict setting applies as well.
	Lenient bool

	// DryRun upgrades a copy of each map and never writes files.
	DryRun bool
}

// FileResult is the outcome of one map file.
type FileResult struct {
	Path   string
	Result upgrade.Result
	Run    audit.Run

	// Saved is true when the file was rewritten.
	Saved bool

	Err error
}

// Run upgrades every file in paths, at most cfg.Workers at a time. Each
// file is independent: a failing file does not stop the others. The
// returned results keep the order of paths; the error joins the failures.
// Failed runs are never written to disk.
func (a *App) Run(ctx context.Context, paths []string, opts RunOptions) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.Workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = FileResult{Path: path, Err: err}
				return nil
			}
			results[i] = a.upgradeFile(gctx, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Path, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// upgradeFile loads, upgrades, audits, and saves a single map file.
func (a *App) upgradeFile(ctx context.Context, path string, opts RunOptions) (fr FileResult) {
	ctx, span := observe.StartSpan(ctx, "mapupgrade.file",
		trace.WithAttributes(attribute.String("path", path), attribute.Bool("dry_run", opts.DryRun)))
	defer func() { observe.EndSpan(span, fr.Err) }()

	a.metrics.ActiveRuns.Add(ctx, 1)
	defer a.metrics.ActiveRuns.Add(ctx, -1)

	log := observe.Logger(ctx).With("path", path)
	start := time.Now()
	fr = FileResult{Path: path, Run: audit.NewRun(path, start)}
	fr.Run.DryRun = opts.DryRun
	fr.Run.TraceID = observe.TraceID(ctx)

	defer func() {
		fr.Run.SetResult(fr.Result, fr.Err)
		fr.Run.Duration = time.Since(start)
		if err := a.store.Record(ctx, fr.Run); err != nil {
			log.Warn("failed to record audit run", "err", err)
		}
		if fr.Err != nil {
			log.Error("map upgrade failed", "err", fr.Err)
			return
		}
		log.Info("map processed",
			"from", fr.Result.From.String(),
			"to", fr.Result.To.String(),
			"applied", len(fr.Result.Applied),
			"stamped", fr.Result.Stamped,
			"changes", len(fr.Run.Changes),
			"saved", fr.Saved,
			"dry_run", opts.DryRun,
		)
	}()

	m, err := mapstore.Load(path)
	if err != nil {
		a.metrics.RecordRunError(ctx, "load")
		fr.Err = err
		return fr
	}
	work := m
	if opts.DryRun {
		work = m.Clone()
	}

	list, err := work.Entities()
	if err != nil {
		a.metrics.RecordRunError(ctx, observe.ErrorKind(err))
		fr.Err = err
		return fr
	}

	recorder := diagnostics.NewRecorder(diagnostics.Config{Categories: diagnostics.CategoryAll})
	recorder.Attach(list)
	defer recorder.Detach(list)
	if a.cfg.Diagnostics.Enabled {
		dl := diagnostics.NewLogger(log, a.cfg.DiagnosticsFilter())
		dl.Attach(list)
		defer dl.Detach(list)
	}

	fr.Result, fr.Err = a.tool.Upgrade(ctx, upgrade.Command{
		Map:     work,
		From:    opts.From,
		To:      opts.To,
		Lenient: opts.Lenient || !a.cfg.IsStrict(),
		Game:    a.cfg.Game.GameInfo(),
	})
	fr.Run.Changes = recorder.Drain()
	if fr.Err != nil || opts.DryRun || len(fr.Run.Changes) == 0 {
		return fr
	}

	if err := mapstore.Save(m, ""); err != nil {
		a.metrics.RecordRunError(ctx, "save")
		fr.Err = err
		return fr
	}
	fr.Saved = true
	return fr
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases all subsystems. It is safe to call more than once; only
// the first call does any work.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
	})
	return shutdownErr
}
