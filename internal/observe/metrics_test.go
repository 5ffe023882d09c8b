package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

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

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordRun(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordRun(ctx, "done", 2*time.Second)
	m.RecordRun(ctx, "failed", time.Second)

	got := findMetric(t, reader, "speakloud.pipeline.runs")
	if got == nil {
		t.Fatal("runs counter not found")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", got.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 || len(sum.DataPoints) != 2 {
		t.Fatalf("expected two statuses totalling 2, got %d points total %d", len(sum.DataPoints), total)
	}
}

func TestRecordSynthesis_CountsRetries(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordSynthesis(context.Background(), "google", 300*time.Millisecond, 2)

	got := findMetric(t, reader, "speakloud.tts.retries")
	if got == nil {
		t.Fatal("retries counter not found")
	}
	sum := got.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Fatalf("unexpected retries %+v", sum.DataPoints)
	}
	if findMetric(t, reader, "speakloud.tts.duration") == nil {
		t.Fatal("duration histogram not found")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordRun(ctx, "done", time.Second)
	m.RecordSynthesis(ctx, "openai", time.Second, 1)
	m.RecordStrategy(ctx, "fallback")
	m.RecordAudio(ctx, 3.5)
}
