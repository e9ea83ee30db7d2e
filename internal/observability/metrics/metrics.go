package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for routing, notification and reply flows.
type Metrics struct {
	routingTotal      *prometheus.CounterVec
	notificationTotal *prometheus.CounterVec
	replyTotal        *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		routingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "routing",
			Name:      "leads_total",
			Help:      "Routing runs by outcome (routed, unserved, error)",
		}, []string{"outcome"}),
		notificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "notify",
			Name:      "sends_total",
			Help:      "Outbound notifications by channel and status",
		}, []string{"channel", "status"}),
		replyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "replies",
			Name:      "processed_total",
			Help:      "Provider replies by channel and result",
		}, []string{"channel", "result"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadrouter",
			Subsystem: "replies",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of reply webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.routingTotal, m.notificationTotal, m.replyTotal, m.webhookLatency)
	return m
}

func (m *Metrics) ObserveRouting(outcome string) {
	if m == nil {
		return
	}
	m.routingTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveNotification(channel string, ok bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.notificationTotal.WithLabelValues(channel, status).Inc()
}

// ObserveReply counts a processed reply. result is an action name on
// success or an error kind otherwise.
func (m *Metrics) ObserveReply(channel, result string) {
	if m == nil {
		return
	}
	m.replyTotal.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}
