package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for the voice intake flow.
type IntakeMetrics struct {
	turnsTotal      *prometheus.CounterVec
	fieldsExtracted *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Total processed dialogue turns",
		}, []string{"outcome"}),
		fieldsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "dialogue",
			Name:      "fields_extracted_total",
			Help:      "Total appointment fields extracted",
		}, []string{"source", "field"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "dialogue",
			Name:      "bookings_total",
			Help:      "Total booking outcomes",
		}, []string{"result"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "http",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of voice webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.fieldsExtracted, m.bookingsTotal, m.webhookLatency)
	return m
}

func (m *IntakeMetrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *IntakeMetrics) FieldExtracted(source, field string) {
	if m == nil {
		return
	}
	m.fieldsExtracted.WithLabelValues(source, field).Inc()
}

func (m *IntakeMetrics) Booking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *IntakeMetrics) ObserveWebhookLatency(route string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(route).Observe(seconds)
}
