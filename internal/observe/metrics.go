// Package observe provides the observability primitives shared by every
// subsystem: OpenTelemetry metrics, tracing helpers, trace-aware slog loggers
// and HTTP middleware tying them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported in
// Prometheus format by [InitProvider]. [DefaultMetrics] uses the global meter
// provider; tests should build their own with [NewMetrics] and a manual
// reader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all metrics of this module.
const meterName = "github.com/MrWong99/signcascade"

// Status attribute values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry instruments of the application. All fields
// are safe for concurrent use.
type Metrics struct {
	// ResolveDuration is the wall time of one full resolution.
	// Attributes: strategy, status.
	ResolveDuration metric.Float64Histogram

	// EmbedDuration is the latency of a single embedding call.
	// Attributes: level, model, status.
	EmbedDuration metric.Float64Histogram

	// STTDuration is the latency of a transcription request.
	// Attributes: provider, status.
	STTDuration metric.Float64Histogram

	// LLMDuration is the latency of a completion request (punctuation).
	LLMDuration metric.Float64Histogram

	// Symbols counts emitted symbols by the level that produced them.
	// Attribute: level (sentence, word, letter).
	Symbols metric.Int64Counter

	// ProviderRequests counts provider calls.
	// Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures.
	// Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// ActiveResolutions is the number of resolutions in progress.
	ActiveResolutions metric.Int64UpDownCounter

	// HTTPRequestDuration is the HTTP handling latency.
	// Attributes: method, path, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets (seconds) span a local embedding call up to a long
// transcription.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	if met.ResolveDuration, err = histogram("signcascade.resolve.duration",
		"Wall time of a full text-to-sign resolution."); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = histogram("signcascade.embed.duration",
		"Latency of a single embedding call."); err != nil {
		return nil, err
	}
	if met.STTDuration, err = histogram("signcascade.stt.duration",
		"Latency of speech-to-text transcription."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = histogram("signcascade.llm.duration",
		"Latency of LLM completion."); err != nil {
		return nil, err
	}

	if met.Symbols, err = m.Int64Counter("signcascade.symbols",
		metric.WithDescription("Emitted symbols by cascade level."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("signcascade.provider.requests",
		metric.WithDescription("Provider requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("signcascade.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveResolutions, err = m.Int64UpDownCounter("signcascade.active_resolutions",
		metric.WithDescription("Resolutions currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("signcascade.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// DefaultMetrics returns the package-level Metrics built on the global meter
// provider. It panics if instrument creation fails, which does not happen with
// the global provider.
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

// Attr is shorthand for attribute.String.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordResolve records one finished resolution.
func (m *Metrics) RecordResolve(ctx context.Context, strategy string, d time.Duration, err error) {
	m.ResolveDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(Attr("strategy", strategy), Attr("status", status(err))),
	)
}

// RecordEmbed records one embedding call and, on failure, a provider error.
func (m *Metrics) RecordEmbed(ctx context.Context, level, model string, d time.Duration, err error) {
	m.EmbedDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(Attr("level", level), Attr("model", model), Attr("status", status(err))),
	)
	m.RecordProviderRequest(ctx, model, "embeddings", status(err))
	if err != nil {
		m.RecordProviderError(ctx, model, "embeddings")
	}
}

// RecordSTT records one transcription request.
func (m *Metrics) RecordSTT(ctx context.Context, provider string, d time.Duration, err error) {
	m.STTDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(Attr("provider", provider), Attr("status", status(err))),
	)
	m.RecordProviderRequest(ctx, provider, "stt", status(err))
	if err != nil {
		m.RecordProviderError(ctx, provider, "stt")
	}
}

// RecordSymbols adds n emitted symbols for the given cascade level.
func (m *Metrics) RecordSymbols(ctx context.Context, level string, n int) {
	if n <= 0 {
		return
	}
	m.Symbols.Add(ctx, int64(n), metric.WithAttributes(Attr("level", level)))
}

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(Attr("provider", provider), Attr("kind", kind), Attr("status", status)),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)),
	)
}
