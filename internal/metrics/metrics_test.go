package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_WriteTo(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("test_total", "计数", []string{"mode", "status"})
	g := r.NewGauge("test_gauge", "仪表", []string{})
	h := r.NewHistogram("test_seconds", "延迟", []string{"mode"}, []float64{0.1, 1})

	c.Inc("forecast", "success")
	c.Add(2, "forecast", "success")
	g.Set(0.5)
	h.Observe(0.05, "forecast")
	h.Observe(0.5, "forecast")
	h.Observe(3, "forecast")

	var b strings.Builder
	r.WriteTo(&b)
	out := b.String()

	assert.Contains(t, out, "# TYPE test_total counter\n")
	assert.Contains(t, out, `test_total{mode="forecast",status="success"} 3`)
	assert.Contains(t, out, "test_gauge 0.5\n")
	assert.Contains(t, out, `test_seconds_bucket{mode="forecast",le="0.1"} 1`)
	assert.Contains(t, out, `test_seconds_bucket{mode="forecast",le="1"} 2`)
	assert.Contains(t, out, `test_seconds_bucket{mode="forecast",le="+Inf"} 3`)
	assert.Contains(t, out, `test_seconds_count{mode="forecast"} 3`)

	assert.Equal(t, 3.0, c.Value("forecast", "success"))
	assert.Equal(t, 3, h.Count("forecast"))
}

func TestRecordHelpers(t *testing.T) {
	r := GetRegistry()

	before := r.GetCounter(metricPlanGeneration).Value("maximum", "failure")
	RecordPlanGeneration("maximum", false, 2*time.Millisecond)
	assert.Equal(t, before+1, r.GetCounter(metricPlanGeneration).Value("maximum", "failure"))

	RecordPhaseChanges("local", 0)
	RecordPhaseChanges("local", 3)
	assert.GreaterOrEqual(t, r.GetCounter(metricPhaseChanges).Value("local"), 3.0)

	done := TrackActivePlan()
	active := r.GetGauge(metricActivePlans).Value()
	done()
	assert.Equal(t, active-1, r.GetGauge(metricActivePlans).Value())

	SetPlanQuality("forecast", 4, 87.5)
	assert.Equal(t, 4.0, r.GetGauge(metricShortage).Value("forecast"))
	assert.Equal(t, 87.5, r.GetGauge(metricCoverageRate).Value("forecast"))
}

func TestHandler(t *testing.T) {
	RecordRequestMetrics("POST", "/api/v1/plan/generate", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), `shiftplan_http_requests_total{method="POST",path="/api/v1/plan/generate",status="200"}`)
}
