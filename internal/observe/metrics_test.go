package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
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
		t.Fatalf("collect: %v", err)
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

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m.ASRDuration == nil || m.Segments == nil || m.ActiveSessions == nil {
		t.Fatal("instruments not initialised")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	cases := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"calliope.asr.duration", m.ASRDuration},
		{"calliope.llm.first_chunk", m.LLMFirstChunk},
		{"calliope.tts.duration", m.TTSDuration},
		{"calliope.encode.duration", m.EncodeDuration},
		{"calliope.turn.duration", m.TurnDuration},
	}
	for _, tc := range cases {
		tc.h.Record(ctx, 0.123)
	}

	rm := collect(t, reader)
	for _, tc := range cases {
		met := findMetric(rm, tc.name)
		if met == nil {
			t.Errorf("metric %q not found", tc.name)
			continue
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Errorf("metric %q is not a float64 histogram", tc.name)
			continue
		}
		if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
			t.Errorf("metric %q: unexpected data points %+v", tc.name, hist.DataPoints)
		}
	}
}

func TestRecordProviderRequestAndError(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "volcano", "tts", "ok")
	m.RecordProviderRequest(ctx, "volcano", "tts", "ok")
	m.RecordProviderError(ctx, "whisper", "asr")

	rm := collect(t, reader)

	reqs := findMetric(rm, "calliope.provider.requests")
	if reqs == nil {
		t.Fatal("requests counter not found")
	}
	sum, ok := reqs.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Errorf("requests counter: %+v", reqs.Data)
	}

	errs := findMetric(rm, "calliope.provider.errors")
	if errs == nil {
		t.Fatal("errors counter not found")
	}
	esum, ok := errs.Data.(metricdata.Sum[int64])
	if !ok || len(esum.DataPoints) != 1 || esum.DataPoints[0].Value != 1 {
		t.Errorf("errors counter: %+v", errs.Data)
	}
}

func TestRecordSegment(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordSegment(context.Background(), 0.2, 0.05, 7)

	rm := collect(t, reader)

	frames := findMetric(rm, "calliope.frames")
	if frames == nil {
		t.Fatal("frames counter not found")
	}
	sum := frames.Data.(metricdata.Sum[int64])
	if sum.DataPoints[0].Value != 7 {
		t.Errorf("frames: got %d, want 7", sum.DataPoints[0].Value)
	}

	segs := findMetric(rm, "calliope.segments")
	ssum := segs.Data.(metricdata.Sum[int64])
	if ssum.DataPoints[0].Value != 1 {
		t.Errorf("segments: got %d, want 1", ssum.DataPoints[0].Value)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	g := findMetric(rm, "calliope.active_sessions")
	if g == nil {
		t.Fatal("gauge not found")
	}
	sum := g.Data.(metricdata.Sum[int64])
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("active sessions: got %d, want 1", sum.DataPoints[0].Value)
	}
}

func TestMiddleware_RecordsDuration(t *testing.T) {
	m, reader := newTestMetrics(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status: got %d", rec.Code)
	}

	rm := collect(t, reader)
	if findMetric(rm, "calliope.http.request.duration") == nil {
		t.Error("http duration histogram not recorded")
	}
}
