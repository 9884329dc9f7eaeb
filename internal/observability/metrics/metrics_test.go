package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBookingMetricsObserve(t *testing.T) {
	m := NewBookingMetrics(prometheus.NewRegistry())
	m.ObserveAttempt("confirmed")
	m.ObserveAttempt("slot_unavailable")
	m.ObserveSlotConflict()
	m.ObserveCreditsGranted(3)
	m.ObserveExpired(1)
	m.ObserveWebhookLatency("checkout.session.completed", 0.5)
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	m := NewBookingMetrics(nil)
	m.ObserveAttempt("confirmed")
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveAttempt("confirmed")
	m.ObserveSlotConflict()
	m.ObserveCreditsGranted(1)
	m.ObserveExpired(0)
	m.ObserveWebhookLatency("event", 0.1)
}
