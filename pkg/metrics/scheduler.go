package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics tracks armed timers and dispatch outcomes.
type SchedulerMetrics struct {
	armedTimers      prometheus.Gauge
	dispatchDuration *prometheus.HistogramVec
	dispatchOutcome  *prometheus.CounterVec
	recipientSends   *prometheus.CounterVec
}

// NewSchedulerMetrics registers scheduler/dispatch metrics on the provided registerer.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	if reg == nil {
		return &SchedulerMetrics{}
	}
	armed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_armed_timers",
		Help: "Number of currently armed one-shot message timers.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_duration_seconds",
		Help:    "Duration of message dispatch attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	outcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcome_total",
		Help: "Dispatch attempts partitioned by final message status.",
	}, []string{"status"})
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipient_sends_total",
		Help: "Per-recipient send attempts partitioned by result.",
	}, []string{"result"})
	reg.MustRegister(armed, duration, outcome, sends)
	return &SchedulerMetrics{
		armedTimers:      armed,
		dispatchDuration: duration,
		dispatchOutcome:  outcome,
		recipientSends:   sends,
	}
}

// SetArmedTimers records the current armed timer count.
func (m *SchedulerMetrics) SetArmedTimers(count int) {
	if m == nil || m.armedTimers == nil {
		return
	}
	m.armedTimers.Set(float64(count))
}

// ObserveDispatch records one dispatch attempt.
func (m *SchedulerMetrics) ObserveDispatch(trigger string, duration time.Duration) {
	if m == nil || m.dispatchDuration == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncOutcome counts the final status of a dispatch attempt.
func (m *SchedulerMetrics) IncOutcome(status string) {
	if m == nil || m.dispatchOutcome == nil {
		return
	}
	m.dispatchOutcome.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncRecipientSend counts an individual recipient send attempt.
func (m *SchedulerMetrics) IncRecipientSend(result string) {
	if m == nil || m.recipientSends == nil {
		return
	}
	m.recipientSends.WithLabelValues(normalizeLabel(result)).Inc()
}
