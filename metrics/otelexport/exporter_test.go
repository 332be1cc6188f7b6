package otelexport

import (
	"context"
	"testing"

	rauth "github.com/alvidir/rauth-sub001"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type staticSource struct {
	snapshot rauth.MetricsSnapshot
}

func (s *staticSource) MetricsSnapshot() rauth.MetricsSnapshot {
	out := rauth.MetricsSnapshot{Counters: make(map[rauth.MetricID]uint64, len(s.snapshot.Counters))}
	for id, value := range s.snapshot.Counters {
		out.Counters[id] = value
	}
	return out
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	return rm
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatalf("unexpected shape of %s: %+v", name, m.Data)
			}
			return sum.DataPoints[0].Value
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterObservesEngineCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("rauth-test")

	metrics := rauth.NewMetrics()
	metrics.Inc(rauth.MetricLoginSuccess)
	metrics.Inc(rauth.MetricLoginSuccess)
	metrics.Inc(rauth.MetricTokenReplay)

	exporter, err := New(meter, &staticSource{snapshot: metrics.Snapshot()})
	if err != nil {
		t.Fatalf("new exporter failed: %v", err)
	}
	t.Cleanup(func() {
		if err := exporter.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	})

	rm := collect(t, reader)
	if got := counterValue(t, rm, "rauth_login_success_total"); got != 2 {
		t.Fatalf("expected login success 2, got %d", got)
	}
	if got := counterValue(t, rm, "rauth_token_replay_total"); got != 1 {
		t.Fatalf("expected token replay 1, got %d", got)
	}
	if got := counterValue(t, rm, "rauth_logout_total"); got != 0 {
		t.Fatalf("expected logout 0, got %d", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("rauth-test")

	if _, err := New(nil, &staticSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := New(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}
