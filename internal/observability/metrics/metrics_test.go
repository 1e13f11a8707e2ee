package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestIntakeMetricsObserve(t *testing.T) {
	m := NewIntakeMetrics(prometheus.NewRegistry())
	m.Turn("confirming")
	m.FieldExtracted("regex", "patient")
	m.Booking("created")
	m.ObserveWebhookLatency("/api/conversation", 0.5)
}

func TestIntakeMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)
	m.Booking("cancelled")
}

func TestIntakeMetricsNilSafe(t *testing.T) {
	var m *IntakeMetrics
	m.Turn("incomplete")
	m.FieldExtracted("model", "date")
	m.Booking("error")
	m.ObserveWebhookLatency("/api/welcome", 0.1)
}
