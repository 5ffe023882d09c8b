// Package observe holds the OpenTelemetry instruments recorded by the
// narration pipeline and the provider setup that exposes them to Prometheus.
//
// Tests should build a [Metrics] with [NewMetrics] over their own meter
// provider; production code uses [DefaultMetrics] after [InitProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hyperifyio/speakloud"

// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// PipelineRuns counts finished runs by status (done, failed, skipped).
	PipelineRuns metric.Int64Counter
	// PipelineDuration is the wall time of one URL run.
	PipelineDuration metric.Float64Histogram
	// TTSDuration is the latency of one chunk synthesis call.
	TTSDuration metric.Float64Histogram
	// TTSRetries counts failed synthesis attempts that were retried.
	TTSRetries metric.Int64Counter
	// ExtractStrategy counts which extraction strategy produced the text.
	ExtractStrategy metric.Int64Counter
	// AudioSeconds accumulates the duration of produced narrations.
	AudioSeconds metric.Float64Counter
	// HTTPRequestDuration is recorded by the API middleware.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PipelineRuns, err = m.Int64Counter("speakloud.pipeline.runs",
		metric.WithDescription("Finished pipeline runs by status."),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("speakloud.pipeline.duration",
		metric.WithDescription("Wall time of one article run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("speakloud.tts.duration",
		metric.WithDescription("Latency of one chunk synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSRetries, err = m.Int64Counter("speakloud.tts.retries",
		metric.WithDescription("Synthesis attempts that failed and were retried."),
	); err != nil {
		return nil, err
	}
	if met.ExtractStrategy, err = m.Int64Counter("speakloud.extract.strategy",
		metric.WithDescription("Extractions by the strategy that produced text."),
	); err != nil {
		return nil, err
	}
	if met.AudioSeconds, err = m.Float64Counter("speakloud.audio.seconds",
		metric.WithDescription("Seconds of narrated audio produced."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("speakloud.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide instance built on the global meter
// provider. It panics if instrument creation fails.
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

// RecordRun records one finished pipeline run.
func (m *Metrics) RecordRun(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.PipelineRuns.Add(ctx, 1, attrs)
	m.PipelineDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSynthesis records one chunk synthesis call.
func (m *Metrics) RecordSynthesis(ctx context.Context, provider string, d time.Duration, retries int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	m.TTSDuration.Record(ctx, d.Seconds(), attrs)
	if retries > 0 {
		m.TTSRetries.Add(ctx, int64(retries), attrs)
	}
}

// RecordStrategy counts an extraction by the strategy that won.
func (m *Metrics) RecordStrategy(ctx context.Context, strategy string) {
	if m == nil {
		return
	}
	m.ExtractStrategy.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordAudio adds produced narration length.
func (m *Metrics) RecordAudio(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.AudioSeconds.Add(ctx, seconds)
}
