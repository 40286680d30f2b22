package observe

import (
	"context"
	"errors"
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

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

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

// sumByAttr returns the value of the data point of a sum metric whose
// attribute key equals value.
func sumByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
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
		if v, ok := dp.Attributes.Value(Attr(key, "").Key); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestRecordResolve(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordResolve(ctx, "sentence_first", 120*time.Millisecond, nil)
	m.RecordResolve(ctx, "sentence_first", 80*time.Millisecond, errors.New("boom"))

	met := findMetric(collect(t, reader), "signcascade.resolve.duration")
	if met == nil {
		t.Fatal("signcascade.resolve.duration not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("resolve duration is not a histogram")
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 2 {
		t.Errorf("samples = %d, want 2", total)
	}
	if len(hist.DataPoints) != 2 {
		t.Errorf("data points = %d, want one per status", len(hist.DataPoints))
	}
}

func TestRecordEmbed_CountsErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEmbed(ctx, "word", "nomic-embed-text", time.Millisecond, nil)
	m.RecordEmbed(ctx, "word", "nomic-embed-text", time.Millisecond, errors.New("timeout"))
	m.RecordEmbed(ctx, "sentence", "nomic-embed-text", time.Millisecond, errors.New("timeout"))

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "signcascade.provider.errors", "kind", "embeddings"); got != 2 {
		t.Errorf("provider errors = %d, want 2", got)
	}
	if got := sumByAttr(t, rm, "signcascade.provider.requests", "status", StatusOK); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}
}

func TestRecordSTT(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSTT(ctx, "whisper", 2*time.Second, nil)
	m.RecordSTT(ctx, "whisper", time.Second, errors.New("502"))

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "signcascade.provider.errors", "kind", "stt"); got != 1 {
		t.Errorf("stt errors = %d, want 1", got)
	}
	if findMetric(rm, "signcascade.stt.duration") == nil {
		t.Error("stt duration not recorded")
	}
}

func TestRecordSymbols(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSymbols(ctx, "letter", 5)
	m.RecordSymbols(ctx, "word", 1)
	m.RecordSymbols(ctx, "letter", 0)

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "signcascade.symbols", "level", "letter"); got != 5 {
		t.Errorf("letter symbols = %d, want 5", got)
	}
	if got := sumByAttr(t, rm, "signcascade.symbols", "level", "word"); got != 1 {
		t.Errorf("word symbols = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
