package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveFile(t *testing.T) {
	r := New()

	r.ObserveFile(true, 10*time.Millisecond)
	r.ObserveFile(true, 20*time.Millisecond)
	r.ObserveFile(false, time.Millisecond)

	if got := testutil.ToFloat64(r.files.WithLabelValues(StatusSuccess)); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.files.WithLabelValues(StatusFailure)); got != 1 {
		t.Errorf("failure = %v, want 1", got)
	}
}

func TestObserveRows(t *testing.T) {
	r := New()

	r.ObserveRows(1, 1, 1)
	r.ObserveRows(4, 0, 2)

	tests := map[string]float64{
		OutcomeKept:           5,
		OutcomeDroppedCard:    1,
		OutcomeDroppedPending: 3,
	}
	for outcome, want := range tests {
		if got := testutil.ToFloat64(r.rows.WithLabelValues(outcome)); got != want {
			t.Errorf("rows{outcome=%q} = %v, want %v", outcome, got, want)
		}
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder

	// Must not panic.
	r.ObserveFile(true, time.Second)
	r.ObserveRows(1, 2, 3)

	if r.Registry() != nil {
		t.Error("Registry() on nil recorder should be nil")
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveFile(true, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`formatter_files_total{status="success"} 1`,
		"formatter_transform_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
