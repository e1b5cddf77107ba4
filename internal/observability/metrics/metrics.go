package metrics

import "github.com/prometheus/client_golang/prometheus"

// USSDMetrics exposes counters/histograms for USSD dialog flows.
type USSDMetrics struct {
	turnsTotal   *prometheus.CounterVec
	turnLatency  *prometheus.HistogramVec
	smsTotal     *prometheus.CounterVec
	triageTotal  *prometheus.CounterVec
	slotFallback prometheus.Counter
}

func NewUSSDMetrics(reg prometheus.Registerer) *USSDMetrics {
	m := &USSDMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afyabook",
			Subsystem: "ussd",
			Name:      "turns_total",
			Help:      "Total inbound USSD turns",
		}, []string{"result"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "afyabook",
			Subsystem: "ussd",
			Name:      "turn_latency_seconds",
			Help:      "Latency of USSD turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		smsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afyabook",
			Subsystem: "sms",
			Name:      "outbound_total",
			Help:      "Total outbound confirmation SMS sends",
		}, []string{"status"}),
		triageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afyabook",
			Subsystem: "triage",
			Name:      "requests_total",
			Help:      "Total symptom triage requests",
		}, []string{"outcome"}),
		slotFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "afyabook",
			Subsystem: "triage",
			Name:      "slot_fallback_total",
			Help:      "Times the fixed fallback slot list was served",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.smsTotal, m.triageTotal, m.slotFallback)
	return m
}

func (m *USSDMetrics) ObserveTurn(result string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(result).Inc()
	m.turnLatency.WithLabelValues(result).Observe(seconds)
}

func (m *USSDMetrics) ObserveSMS(status string) {
	if m == nil {
		return
	}
	m.smsTotal.WithLabelValues(status).Inc()
}

func (m *USSDMetrics) ObserveTriage(outcome string) {
	if m == nil {
		return
	}
	m.triageTotal.WithLabelValues(outcome).Inc()
}

func (m *USSDMetrics) ObserveSlotFallback() {
	if m == nil {
		return
	}
	m.slotFallback.Inc()
}
