// Package upgrade implements the map upgrade engine: a catalog of versioned
// upgrades, each an ordered list of rules, applied to a level so that it
// matches the entity schema of the newest SDK.
//
// A [Tool] is built once through a [Builder] and is immutable afterwards, so
// it may be shared by goroutines upgrading different maps. A single map must
// only be upgraded by one goroutine at a time.
//
// The map's version is kept in a keyvalue on the root entity
// ([DefaultVersionKey] unless configured otherwise). [Tool.Upgrade] reads it,
// runs every upgrade newer than that version up to the target, and writes the
// target version back.
//
// Rules run in ascending version order and, within an upgrade, in
// registration order; later rules see the changes of earlier ones. There is
// no rollback: when a rule fails, the error is returned unchanged and the map
// is left partially upgraded. Use [Tool.UpgradeAtomic] to work on a copy.
package upgrade

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/mapupgrade/pkg/entity"
	"github.com/MrWong99/mapupgrade/pkg/level"
)

// DefaultVersionKey is the root keyvalue holding a map's upgrade version.
const DefaultVersionKey = "UpgradeToolVersion"

const tracerName = "github.com/MrWong99/mapupgrade/pkg/upgrade"

// Recorder receives measurements about upgrade runs. Implementations must be
// safe for concurrent use when the [Tool] is shared.
type Recorder interface {
	// RuleEvaluated is called once per rule reached during a run.
	RuleEvaluated(ctx context.Context, version Version, rule string, fired bool)

	// RunCompleted is called once per call to [Tool.Upgrade].
	RunCompleted(ctx context.Context, mapName string, res Result, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RuleEvaluated(context.Context, Version, string, bool) {}

func (nopRecorder) RunCompleted(context.Context, string, Result, time.Duration, error) {}

// Option configures a [Tool].
type Option func(*Tool)

// WithVersionKey sets the root keyvalue used to store the map version.
func WithVersionKey(key string) Option {
	return func(t *Tool) { t.versionKey = key }
}

// WithLogger sets the logger passed to rules and used for run logs.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tool) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithRecorder installs a metrics [Recorder].
func WithRecorder(r Recorder) Option {
	return func(t *Tool) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithTracer overrides the tracer. The default uses the global provider.
func WithTracer(tr trace.Tracer) Option {
	return func(t *Tool) {
		if tr != nil {
			t.tracer = tr
		}
	}
}

// Tool is the immutable, version-sorted catalog of upgrades together with
// the algorithm that applies them.
type Tool struct {
	upgrades   []*Upgrade
	versionKey string
	logger     *slog.Logger
	recorder   Recorder
	tracer     trace.Tracer
}

func newTool() *Tool {
	return &Tool{
		versionKey: DefaultVersionKey,
		logger:     slog.Default(),
		recorder:   nopRecorder{},
		tracer:     otel.Tracer(tracerName),
	}
}

// VersionKey returns the root keyvalue holding the map version.
func (t *Tool) VersionKey() string { return t.versionKey }

// Upgrades returns the registered upgrades in ascending version order.
func (t *Tool) Upgrades() []*Upgrade { return slices.Clone(t.upgrades) }

// LatestVersion returns the highest registered version, or 0.0.0 for an
// empty catalog.
func (t *Tool) LatestVersion() Version {
	if len(t.upgrades) == 0 {
		return Version{}
	}
	return t.upgrades[len(t.upgrades)-1].version
}

// Command describes one upgrade run. The zero value of every optional field
// selects the safe default.
type Command struct {
	Map *level.Map

	// From overrides the map's stored version as the start of the run.
	From *Version

	// To overrides the target version. Defaults to [Tool.LatestVersion].
	To *Version

	// Lenient allows From to precede the stored version. Upgrades are not
	// reversible, so re-running older upgrades may corrupt the map.
	Lenient bool

	// Game identifies the game for game-filtered rules.
	Game *GameInfo
}

// Plan is the outcome of version resolution for a [Command].
type Plan struct {
	From, To Version

	// Stored is the version recorded in the map (0.0.0 when absent).
	Stored        Version
	StoredPresent bool

	// Upgrades lists the upgrades to run in order.
	Upgrades []*Upgrade

	// NoOp is true when the map is newer than the target; nothing is changed.
	NoOp bool
}

// Result describes a completed run.
type Result struct {
	From, To, Stored Version

	// Applied lists the versions of the upgrades that ran completely.
	Applied []Version

	RulesRun     int
	RulesSkipped int

	// Stamped is true when the version keyvalue was written.
	Stamped bool
}

// StoredVersion reads the version stored under key on the root of list. A
// missing key yields 0.0.0 with present == false; a malformed value wraps
// [ErrVersionFormat]. An empty value counts as missing.
func StoredVersion(list *entity.List, key string) (v Version, present bool, err error) {
	raw, ok := list.Root().Lookup(key)
	if !ok || raw == "" {
		return Version{}, false, nil
	}
	v, err = ParseVersion(raw)
	if err != nil {
		return Version{}, true, fmt.Errorf("upgrade: stored %s: %w", key, err)
	}
	return v, true, nil
}

// Plan resolves the effective version range of cmd and selects the upgrades
// to run, without modifying the map.
func (t *Tool) Plan(cmd Command) (Plan, error) {
	if cmd.Map == nil {
		return Plan{}, fmt.Errorf("%w: no map", ErrInvalidCommand)
	}
	list, err := cmd.Map.Entities()
	if err != nil {
		return Plan{}, err
	}
	stored, present, err := StoredVersion(list, t.versionKey)
	if err != nil {
		return Plan{}, err
	}

	p := Plan{Stored: stored, StoredPresent: present, From: stored, To: t.LatestVersion()}
	if cmd.From != nil {
		p.From = *cmd.From
	}
	if cmd.To != nil {
		p.To = *cmd.To
	}

	if !cmd.Lenient && p.From.Less(stored) {
		return Plan{}, fmt.Errorf("%w: from %s, map is at %s", ErrTooOldVersion, p.From, stored)
	}
	if p.To.Less(p.From) {
		p.To = p.From
		p.NoOp = true
		return p, nil
	}

	for _, u := range t.upgrades {
		if p.From.Less(u.version) && u.version.Compare(p.To) <= 0 {
			p.Upgrades = append(p.Upgrades, u)
		}
	}
	return p, nil
}

// Upgrade applies every registered upgrade newer than the start version and
// not newer than the target version to cmd.Map, then stamps the target
// version into the map. ctx is only used for tracing; runs cannot be
// cancelled.
//
// When the map is already newer than the target, the map is not touched and
// the result reports From == To == the start version. Rule errors are
// returned unchanged together with the partial result.
func (t *Tool) Upgrade(ctx context.Context, cmd Command) (res Result, err error) {
	start := time.Now()
	mapName := ""
	if cmd.Map != nil {
		mapName = cmd.Map.BaseName()
	}

	ctx, span := t.tracer.Start(ctx, "upgrade.run", trace.WithAttributes(attribute.String("map", mapName)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		t.recorder.RunCompleted(ctx, mapName, res, time.Since(start), err)
	}()

	plan, err := t.Plan(cmd)
	if err != nil {
		return Result{}, err
	}
	res = Result{From: plan.From, To: plan.To, Stored: plan.Stored}
	span.SetAttributes(
		attribute.String("from", plan.From.String()),
		attribute.String("to", plan.To.String()),
		attribute.Int("upgrades", len(plan.Upgrades)),
	)
	if plan.NoOp {
		t.logger.Debug("map is newer than target, nothing to do",
			"map", mapName, "version", plan.From.String())
		return res, nil
	}

	list, _ := cmd.Map.Entities()
	for _, u := range plan.Upgrades {
		if err := t.apply(ctx, u, plan, cmd, list, &res); err != nil {
			return res, err
		}
		res.Applied = append(res.Applied, u.version)
	}

	if raw, ok := list.Root().Lookup(t.versionKey); !ok || raw != plan.To.String() {
		if err := list.Root().SetString(t.versionKey, plan.To.String()); err != nil {
			return res, fmt.Errorf("upgrade: stamp version: %w", err)
		}
		res.Stamped = true
	}

	t.logger.Info("map upgraded",
		"map", mapName,
		"from", plan.From.String(),
		"to", plan.To.String(),
		"upgrades", len(res.Applied),
		"rules_run", res.RulesRun,
		"rules_skipped", res.RulesSkipped,
	)
	return res, nil
}

// apply runs the rules of u against the map.
func (t *Tool) apply(ctx context.Context, u *Upgrade, plan Plan, cmd Command, list *entity.List, res *Result) error {
	ctx, span := t.tracer.Start(ctx, "upgrade.apply", trace.WithAttributes(
		attribute.String("version", u.version.String()),
		attribute.Int("rules", len(u.rules)),
	))
	defer span.End()

	c := Context{
		Tool:     t,
		From:     plan.From,
		To:       plan.To,
		Original: plan.Stored,
		Upgrade:  u,
		Map:      cmd.Map,
		Entities: list,
		Game:     cmd.Game,
		Logger:   t.logger.With("map", cmd.Map.BaseName(), "upgrade", u.version.String()),
	}
	for _, r := range u.rules {
		if !r.matches(c) {
			res.RulesSkipped++
			t.recorder.RuleEvaluated(ctx, u.version, r.Name, false)
			continue
		}
		t.recorder.RuleEvaluated(ctx, u.version, r.Name, true)
		if err := r.Apply(c); err != nil {
			span.RecordError(err)
			return err
		}
		res.RulesRun++
	}
	return nil
}

// UpgradeAtomic runs cmd against a copy of cmd.Map and commits the copy back
// only when the whole run succeeds. On failure cmd.Map is unchanged.
// Entities previously obtained from cmd.Map are detached by a commit.
func (t *Tool) UpgradeAtomic(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Map == nil {
		return Result{}, fmt.Errorf("%w: no map", ErrInvalidCommand)
	}
	if _, err := cmd.Map.Entities(); err != nil {
		return Result{}, err
	}
	work := cmd
	work.Map = cmd.Map.Clone()
	res, err := t.Upgrade(ctx, work)
	if err != nil {
		return res, err
	}
	if len(res.Applied) == 0 && !res.Stamped {
		return res, nil
	}
	if err := cmd.Map.Commit(work.Map); err != nil {
		return res, err
	}
	return res, nil
}
