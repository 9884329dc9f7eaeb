package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
type BookingMetrics struct {
	attemptsTotal  *prometheus.CounterVec
	slotConflicts  prometheus.Counter
	creditsGranted prometheus.Counter
	expiredTotal   prometheus.Counter
	webhookLatency *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellhaven",
			Subsystem: "bookings",
			Name:      "attempts_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellhaven",
			Subsystem: "bookings",
			Name:      "slot_conflicts_total",
			Help:      "Total slot reservations lost to a concurrent booking",
		}),
		creditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellhaven",
			Subsystem: "credits",
			Name:      "granted_total",
			Help:      "Total credits granted from completed purchases",
		}),
		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellhaven",
			Subsystem: "bookings",
			Name:      "expired_total",
			Help:      "Total pending bookings expired by the housekeeping sweep",
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wellhaven",
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of payment webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.slotConflicts, m.creditsGranted, m.expiredTotal, m.webhookLatency)
	return m
}

func (m *BookingMetrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflicts.Inc()
}

func (m *BookingMetrics) ObserveCreditsGranted(count int) {
	if m == nil {
		return
	}
	m.creditsGranted.Add(float64(count))
}

func (m *BookingMetrics) ObserveExpired(count int) {
	if m == nil {
		return
	}
	m.expiredTotal.Add(float64(count))
}

func (m *BookingMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}
