// internal/metrics/metrics_test.go
package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveLoadLatency("rules", time.Millisecond)
	m.IncrementLoadFailure("timeout")
	m.ObserveExpandLatency("card", time.Millisecond)
	m.IncrementValidation("card", "form", "passed")
	m.IncrementSave("rule", "ok")

	if m.Registry() != nil {
		t.Errorf("Registry() = non-nil, want nil")
	}
}

func TestMetrics_IncrementValidation(t *testing.T) {
	m := New()

	m.IncrementValidation("card", "exists", "passed")
	m.IncrementValidation("card", "exists", "passed")
	m.IncrementValidation("rule", "form", "error")

	if got := testutil.ToFloat64(m.ValidationOutcome.WithLabelValues("card", "exists", "passed")); got != 2 {
		t.Errorf("card/exists/passed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ValidationOutcome.WithLabelValues("rule", "form", "error")); got != 1 {
		t.Errorf("rule/form/error = %v, want 1", got)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.IncrementSave("rule", "ok")

	if got := testutil.ToFloat64(b.SaveOutcome.WithLabelValues("rule", "ok")); got != 0 {
		t.Errorf("second registry saw %v saves, want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveLoadLatency("parameters", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "cardwright_catalog_fetch_duration_seconds") {
		t.Errorf("exposition lacks fetch histogram:\n%s", rec.Body.String())
	}
}
