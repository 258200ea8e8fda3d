package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PaymentsRecorded.Inc()
	m.PaymentsRecorded.Inc()
	m.HTTPRequests.WithLabelValues("GET", "/healthz", "200").Inc()

	if got := testutil.ToFloat64(m.PaymentsRecorded); got != 2 {
		t.Errorf("payments_recorded_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/healthz", "200")); got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("Expected registered metric families")
	}
}

func TestNewRegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("Expected duplicate registration to panic")
		}
	}()
	New(reg)
}
