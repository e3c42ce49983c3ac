package monitoring

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.SampleRead()
	m.SampleRead()
	m.DecodeFailed()
	m.Classified("editor")
	m.Classified("editor")
	m.Classified("oob")

	if got := testutil.ToFloat64(m.SamplesRead); got != 2 {
		t.Errorf("samples read = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DecodeFailures); got != 1 {
		t.Errorf("decode failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Classifications.WithLabelValues("editor")); got != 2 {
		t.Errorf("editor classifications = %v, want 2", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.SampleRead()
	m.DecodeFailed()
	m.ProjectionFailed()
	m.SamplePaused()
	m.DispatchDrop()
	m.SelectionDeduped()
	m.SinkFailed()
	m.Classified("oob")
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ProjectionFailed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "gaze_projection_failures_total 1") {
		t.Errorf("metrics output missing projection counter:\n%s", body)
	}
}

func TestNewMetrics_Independent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.SampleRead()
	if got := testutil.ToFloat64(b.SamplesRead); got != 0 {
		t.Errorf("second registry saw %v samples, want 0", got)
	}
}
