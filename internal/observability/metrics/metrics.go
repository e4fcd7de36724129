package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters for the chat assistant.
type ChatMetrics struct {
	transitions    *prometheus.CounterVec
	activeSessions prometheus.Gauge
	sessionsSwept  prometheus.Counter
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shinestar",
			Subsystem: "chat",
			Name:      "transitions_total",
			Help:      "Replies handled by the chat assistant",
		}, []string{"step", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shinestar",
			Subsystem: "chat",
			Name:      "active_sessions",
			Help:      "Chat sessions currently held in memory",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shinestar",
			Subsystem: "chat",
			Name:      "sessions_swept_total",
			Help:      "Idle chat sessions evicted",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.activeSessions, m.sessionsSwept)
	return m
}

func (m *ChatMetrics) ObserveTransition(step, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(step, outcome).Inc()
}

func (m *ChatMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *ChatMetrics) ObserveSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

// ContactMetrics exposes counters/histograms for the contact endpoint.
type ContactMetrics struct {
	submissions *prometheus.CounterVec
	latency     prometheus.Histogram
}

func NewContactMetrics(reg prometheus.Registerer) *ContactMetrics {
	m := &ContactMetrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shinestar",
			Subsystem: "contact",
			Name:      "submissions_total",
			Help:      "Contact form submissions by outcome",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shinestar",
			Subsystem: "contact",
			Name:      "request_duration_seconds",
			Help:      "Latency of contact form requests",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissions, m.latency)
	return m
}

func (m *ContactMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *ContactMetrics) ObserveLatency(seconds float64) {
	if m == nil {
		return
	}
	m.latency.Observe(seconds)
}
