package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRequestIssuedCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RequestGenerated("frontpage")
	m.RequestIssued("frontpage", true)
	m.RequestIssued("frontpage", false)
	m.InFlightInc(0)
	m.InFlightInc(0)
	m.InFlightDec(0)
	m.DroppedAtEnd(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	if f, ok := byName["harness_requests_dropped_total"]; !ok || f.Metric[0].Counter.GetValue() != 3 {
		t.Errorf("harness_requests_dropped_total = %v, want 3", f)
	}
	if f, ok := byName["harness_in_flight_operations"]; !ok || f.Metric[0].Gauge.GetValue() != 1 {
		t.Errorf("harness_in_flight_operations = %v, want 1", f)
	}
}
