package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow and its
// calls to the marketplace backend.
type BookingMetrics struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	couponTotal     *prometheus.CounterVec
	submitTotal     *prometheus.CounterVec
	staleTotal      *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leen",
			Subsystem: "storefront",
			Name:      "upstream_requests_total",
			Help:      "Total marketplace API calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leen",
			Subsystem: "storefront",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of marketplace API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		couponTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leen",
			Subsystem: "booking",
			Name:      "coupon_results_total",
			Help:      "Coupon validation verdicts",
		}, []string{"result"}),
		submitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leen",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Reservation submissions by result",
		}, []string{"result"}),
		staleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leen",
			Subsystem: "booking",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because the selection moved on",
		}, []string{"operation"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leen",
			Subsystem: "booking",
			Name:      "active_sessions",
			Help:      "Open booking draft sessions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.couponTotal, m.submitTotal, m.staleTotal, m.activeSessions)
	return m
}

func (m *BookingMetrics) ObserveUpstream(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(operation, outcome).Inc()
	m.upstreamLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BookingMetrics) ObserveCoupon(result string) {
	if m == nil {
		return
	}
	m.couponTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveSubmit(result string) {
	if m == nil {
		return
	}
	m.submitTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveStale(operation string) {
	if m == nil {
		return
	}
	m.staleTotal.WithLabelValues(operation).Inc()
}

// SessionOpened and SessionClosed track the live draft sessions gauge.
func (m *BookingMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *BookingMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
