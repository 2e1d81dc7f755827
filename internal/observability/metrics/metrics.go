package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics exposes counters/histograms for the booking pipeline.
type PipelineMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outcomesTotal  *prometheus.CounterVec
	nluTotal       *prometheus.CounterVec
	nluLatency     *prometheus.HistogramVec
	dispatchTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "gateway",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound channel webhooks",
		}, []string{"provider", "status"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "coordinator",
			Name:      "outcomes_total",
			Help:      "Booking outcomes per processed message",
		}, []string{"state"}),
		nluTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "nlu",
			Name:      "requests_total",
			Help:      "NLU calls by operation and result",
		}, []string{"operation", "result"}),
		nluLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "nlu",
			Name:      "latency_seconds",
			Help:      "Latency of NLU calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 12, 20},
		}, []string{"operation"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "gateway",
			Name:      "dispatch_total",
			Help:      "Outbound reply sends",
		}, []string{"provider", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "gateway",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound message processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outcomesTotal, m.nluTotal, m.nluLatency, m.dispatchTotal, m.webhookLatency)
	return m
}

func (m *PipelineMetrics) ObserveInbound(provider, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(provider, status).Inc()
}

func (m *PipelineMetrics) ObserveOutcome(state string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(state).Inc()
}

// ObserveNLU records one NLU call. A nil err counts as "ok".
func (m *PipelineMetrics) ObserveNLU(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.nluTotal.WithLabelValues(operation, result).Inc()
	m.nluLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ObserveDispatch(provider string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.dispatchTotal.WithLabelValues(provider, status).Inc()
}

func (m *PipelineMetrics) ObserveWebhookLatency(provider string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}
