// Package telemetry exposes live Prometheus counters/gauges for a harness
// run: metrics registered once via MustRegister, a thin struct of methods
// safe to call from hot paths, and an optional dedicated /metrics HTTP
// endpoint for standalone runs.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the harness's Prometheus instrumentation. The zero value is
// not usable; construct with New.
type Metrics struct {
	generated   *prometheus.CounterVec
	issued      *prometheus.CounterVec
	dropped     prometheus.Counter
	inFlight    *prometheus.GaugeVec

	mu         sync.Mutex
	inFlightN  map[int]float64
}

// New builds and registers the harness's metrics against reg. Pass
// prometheus.NewRegistry() for test isolation, or
// prometheus.DefaultRegisterer for a process-wide singleton.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harness_requests_generated_total",
			Help: "Total requests produced by generators, by request kind.",
		}, []string{"kind"}),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harness_requests_issued_total",
			Help: "Total requests dispatched to the client, by request kind and outcome.",
		}, []string{"kind", "outcome"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harness_requests_dropped_total",
			Help: "Requests still in the work channel when the harness shut down.",
		}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harness_in_flight_operations",
			Help: "Outstanding client operations per issuer.",
		}, []string{"issuer"}),
		inFlightN: make(map[int]float64),
	}
	reg.MustRegister(m.generated, m.issued, m.dropped, m.inFlight)
	return m
}

// RequestGenerated records one request produced by a generator.
func (m *Metrics) RequestGenerated(kind string) {
	m.generated.WithLabelValues(kind).Inc()
}

// RequestIssued records one request dispatched to the client and whether it
// completed without error. Failures are opaque and never retried — this is
// purely observational.
func (m *Metrics) RequestIssued(kind string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.issued.WithLabelValues(kind, outcome).Inc()
}

// DroppedAtEnd records the number of requests left in the channel at
// shutdown.
func (m *Metrics) DroppedAtEnd(n int) {
	m.dropped.Add(float64(n))
}

// InFlightInc/InFlightDec track the in-flight gauge for one issuer.
func (m *Metrics) InFlightInc(issuerID int) { m.adjustInFlight(issuerID, 1) }
func (m *Metrics) InFlightDec(issuerID int) { m.adjustInFlight(issuerID, -1) }

func (m *Metrics) adjustInFlight(issuerID int, delta float64) {
	label := itoa(issuerID)
	m.mu.Lock()
	m.inFlightN[issuerID] += delta
	v := m.inFlightN[issuerID]
	m.mu.Unlock()
	m.inFlight.WithLabelValues(label).Set(v)
}

func itoa(n int) string {
	// Avoid pulling in strconv just for this in a hot path; issuer counts
	// are small and bounded by thread count.
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ServeMetrics starts a dedicated HTTP server exposing /metrics on addr in a
// background goroutine. Safe to call at most once per Metrics instance.
func ServeMetrics(addr string, reg prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
