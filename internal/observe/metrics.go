// Package observe provides application-wide observability primitives for
// mapupgrade: OpenTelemetry metrics, distributed tracing, and structured
// logging tied to the active span.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [Setup] wires
// them to a Prometheus exporter on a private registry, which
// [Telemetry.WriteMetrics] renders in the text format. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/mapupgrade/pkg/entity"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// meterName is the instrumentation scope name used for all mapupgrade metrics.
const meterName = "github.com/MrWong99/mapupgrade"

// Run outcomes reported in the "status" attribute.
const (
	StatusUpgraded = "upgraded"
	StatusStamped  = "stamped"
	StatusNoOp     = "noop"
	StatusError    = "error"
)

// Compile-time assertion that Metrics can be installed as a tool recorder.
var _ upgrade.Recorder = (*Metrics)(nil)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// RunDuration tracks the wall time of one map upgrade. Use with attribute:
	//   attribute.String("status", ...)
	RunDuration metric.Float64Histogram

	// Runs counts map upgrade runs. Use with attribute:
	//   attribute.String("status", ...)
	Runs metric.Int64Counter

	// UpgradesApplied counts completed upgrades. Use with attribute:
	//   attribute.String("version", ...)
	UpgradesApplied metric.Int64Counter

	// RulesEvaluated counts rules reached by a run. Use with attributes:
	//   attribute.String("version", ...), attribute.Bool("fired", ...)
	RulesEvaluated metric.Int64Counter

	// RunErrors counts failed runs. Use with attribute:
	//   attribute.String("kind", ...)
	RunErrors metric.Int64Counter

	// ActiveRuns tracks the number of map files currently being processed.
	ActiveRuns metric.Int64UpDownCounter
}

// durationBuckets defines histogram bucket boundaries (in seconds) for map
// upgrade runs, which range from sub-millisecond no-ops to multi-second
// rewrites of large maps.
var durationBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RunDuration, err = m.Float64Histogram("mapupgrade.run.duration",
		metric.WithDescription("Duration of a single map upgrade run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Runs, err = m.Int64Counter("mapupgrade.runs",
		metric.WithDescription("Total map upgrade runs by status."),
	); err != nil {
		return nil, err
	}
	if met.UpgradesApplied, err = m.Int64Counter("mapupgrade.upgrades.applied",
		metric.WithDescription("Total upgrades applied by version."),
	); err != nil {
		return nil, err
	}
	if met.RulesEvaluated, err = m.Int64Counter("mapupgrade.rules.evaluated",
		metric.WithDescription("Total rules evaluated by upgrade version and whether the rule fired."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.RunErrors, err = m.Int64Counter("mapupgrade.run.errors",
		metric.WithDescription("Total failed runs by error kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRuns, err = m.Int64UpDownCounter("mapupgrade.active_runs",
		metric.WithDescription("Number of map files currently being processed."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RuleEvaluated implements [upgrade.Recorder].
func (m *Metrics) RuleEvaluated(ctx context.Context, version upgrade.Version, _ string, fired bool) {
	m.RulesEvaluated.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("version", version.String()),
			attribute.Bool("fired", fired),
		),
	)
}

// RunCompleted implements [upgrade.Recorder].
func (m *Metrics) RunCompleted(ctx context.Context, _ string, res upgrade.Result, elapsed time.Duration, err error) {
	status := RunStatus(res, err)
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Runs.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, elapsed.Seconds(), attrs)
	for _, v := range res.Applied {
		m.UpgradesApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("version", v.String())))
	}
	if err != nil {
		m.RecordRunError(ctx, ErrorKind(err))
	}
}

// RecordRunError is a convenience method that records a run error counter
// increment.
func (m *Metrics) RecordRunError(ctx context.Context, kind string) {
	m.RunErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RunStatus classifies the outcome of a run for the "status" attribute.
func RunStatus(res upgrade.Result, err error) string {
	switch {
	case err != nil:
		return StatusError
	case len(res.Applied) > 0:
		return StatusUpgraded
	case res.Stamped:
		return StatusStamped
	default:
		return StatusNoOp
	}
}

// ErrorKind maps an error to the "kind" attribute of [Metrics.RunErrors].
// Errors outside the engine's taxonomy, typically returned by a rule, are
// reported as "rule".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, upgrade.ErrVersionFormat):
		return "version_format"
	case errors.Is(err, upgrade.ErrTooOldVersion):
		return "too_old_version"
	case errors.Is(err, upgrade.ErrConfiguration):
		return "configuration"
	case errors.Is(err, upgrade.ErrInvalidCommand):
		return "invalid_command"
	case errors.Is(err, entity.ErrStructural):
		return "structural"
	case errors.Is(err, entity.ErrValidation):
		return "validation"
	default:
		return "rule"
	}
}
