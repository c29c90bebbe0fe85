package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/mapupgrade/pkg/entity"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the counter data point carrying attr, or -1.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
			return dp.Value
		}
	}
	return -1
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRunCompleted_RecordsStatusAndDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	v1 := upgrade.MustParseVersion("1.0.0")
	v2 := upgrade.MustParseVersion("2.0.0")

	m.RunCompleted(ctx, "c1a0", upgrade.Result{Applied: []upgrade.Version{v1, v2}}, 3*time.Millisecond, nil)
	m.RunCompleted(ctx, "c1a1", upgrade.Result{Applied: []upgrade.Version{v2}}, time.Millisecond, nil)
	m.RunCompleted(ctx, "c1a2", upgrade.Result{}, time.Millisecond, nil)
	m.RunCompleted(ctx, "c1a3", upgrade.Result{}, time.Millisecond, fmt.Errorf("wrapped: %w", upgrade.ErrTooOldVersion))

	rm := collect(t, reader)

	if got := sumFor(t, rm, "mapupgrade.runs", attribute.String("status", StatusUpgraded)); got != 2 {
		t.Errorf("upgraded runs = %d, want 2", got)
	}
	if got := sumFor(t, rm, "mapupgrade.runs", attribute.String("status", StatusNoOp)); got != 1 {
		t.Errorf("noop runs = %d, want 1", got)
	}
	if got := sumFor(t, rm, "mapupgrade.runs", attribute.String("status", StatusError)); got != 1 {
		t.Errorf("error runs = %d, want 1", got)
	}
	if got := sumFor(t, rm, "mapupgrade.upgrades.applied", attribute.String("version", "2.0.0")); got != 2 {
		t.Errorf("applied 2.0.0 = %d, want 2", got)
	}
	if got := sumFor(t, rm, "mapupgrade.run.errors", attribute.String("kind", "too_old_version")); got != 1 {
		t.Errorf("too_old_version errors = %d, want 1", got)
	}

	met := findMetric(rm, "mapupgrade.run.duration")
	if met == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration is not a histogram")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 4 {
		t.Errorf("duration sample count = %d, want 4", count)
	}
}

func TestRuleEvaluated(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	v := upgrade.MustParseVersion("1.2.0")

	m.RuleEvaluated(ctx, v, "a", true)
	m.RuleEvaluated(ctx, v, "b", true)
	m.RuleEvaluated(ctx, v, "c", false)

	rm := collect(t, reader)
	met := findMetric(rm, "mapupgrade.rules.evaluated")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	var fired, skipped int64
	for _, dp := range sum.DataPoints {
		f, _ := dp.Attributes.Value("fired")
		if f.AsBool() {
			fired += dp.Value
		} else {
			skipped += dp.Value
		}
	}
	if fired != 2 || skipped != 1 {
		t.Errorf("fired=%d skipped=%d, want 2 and 1", fired, skipped)
	}
}

func TestActiveRuns(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveRuns.Add(ctx, 1)
	m.ActiveRuns.Add(ctx, 1)
	m.ActiveRuns.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "mapupgrade.active_runs")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active runs = %+v, want 1", sum.DataPoints)
	}
}

func TestRunStatus(t *testing.T) {
	v := upgrade.MustParseVersion("1.0.0")
	tests := []struct {
		name string
		res  upgrade.Result
		err  error
		want string
	}{
		{"error wins", upgrade.Result{Applied: []upgrade.Version{v}}, errors.New("boom"), StatusError},
		{"applied", upgrade.Result{Applied: []upgrade.Version{v}, Stamped: true}, nil, StatusUpgraded},
		{"stamped only", upgrade.Result{Stamped: true}, nil, StatusStamped},
		{"nothing", upgrade.Result{}, nil, StatusNoOp},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RunStatus(tc.res, tc.err); got != tc.want {
				t.Errorf("RunStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", upgrade.ErrVersionFormat), "version_format"},
		{upgrade.ErrTooOldVersion, "too_old_version"},
		{upgrade.ErrConfiguration, "configuration"},
		{upgrade.ErrInvalidCommand, "invalid_command"},
		{fmt.Errorf("load: %w", entity.ErrStructural), "structural"},
		{entity.ErrValidation, "validation"},
		{errors.New("rule failed"), "rule"},
	}
	for _, tc := range tests {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Fatal("DefaultMetrics must return the same instance")
	}
}
