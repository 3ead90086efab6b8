package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters and histograms for the booking flows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	bookingsTotal *prometheus.CounterVec
	callsTotal    *prometheus.CounterVec
	loginsTotal   *prometheus.CounterVec
	clinicAdmin   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	ledgerSize    prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalreserve",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalreserve",
			Subsystem: "calls",
			Name:      "initiated_total",
			Help:      "Simulated call initiations by direction and outcome",
		}, []string{"direction", "outcome"}),
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalreserve",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Demo login attempts by outcome",
		}, []string{"outcome"}),
		clinicAdmin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalreserve",
			Subsystem: "clinics",
			Name:      "admin_operations_total",
			Help:      "Admin clinic mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalreserve",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dentalreserve",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dentalreserve",
			Subsystem: "appointments",
			Name:      "ledger_size",
			Help:      "Appointments currently held in memory",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal,
		m.callsTotal,
		m.loginsTotal,
		m.clinicAdmin,
		m.httpRequests,
		m.httpLatency,
		m.ledgerSize,
	)
	return m
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetLedgerSize(n int) {
	if m == nil {
		return
	}
	m.ledgerSize.Set(float64(n))
}

func (m *Metrics) ObserveCall(direction, outcome string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(direction, outcome).Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveClinicAdmin(operation, outcome string) {
	if m == nil {
		return
	}
	m.clinicAdmin.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(seconds)
}
