package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records stream consumption and delivery outcomes.
type PipelineMetrics struct {
	entriesProcessed *prometheus.CounterVec
	entriesDropped   *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	messagesSent     *prometheus.CounterVec
	messagesFailed   *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided
// registerer. A nil registerer yields a no-op recorder.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	entriesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_entries_processed",
		Help: "Stream entries read and acknowledged by the consumer loop.",
	}, []string{"outcome"})
	entriesDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_entries_dropped",
		Help: "Entries acknowledged without delivery (poison or untargeted).",
	}, []string{"reason"})
	dispatchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_duration_seconds",
		Help:    "Duration of notification dispatch in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	messagesSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_sent",
		Help: "Messages delivered to the chat transport.",
	}, []string{"kind"})
	messagesFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_failed",
		Help: "Message sends rejected by the chat transport.",
	}, []string{"kind"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "callbacks_handled",
		Help: "Interactive callbacks resolved, by outcome class.",
	}, []string{"outcome"})
	reg.MustRegister(entriesProcessed, entriesDropped, dispatchDuration, messagesSent, messagesFailed, callbacks)
	return &PipelineMetrics{
		entriesProcessed: entriesProcessed,
		entriesDropped:   entriesDropped,
		dispatchDuration: dispatchDuration,
		messagesSent:     messagesSent,
		messagesFailed:   messagesFailed,
		callbacks:        callbacks,
	}
}

// IncProcessed counts one acknowledged entry with its dispatch outcome.
func (m *PipelineMetrics) IncProcessed(outcome string) {
	if m == nil || m.entriesProcessed == nil {
		return
	}
	m.entriesProcessed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDropped counts one entry acknowledged without delivery.
func (m *PipelineMetrics) IncDropped(reason string) {
	if m == nil || m.entriesDropped == nil {
		return
	}
	m.entriesDropped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveDispatch records how long one dispatch took by notification type.
func (m *PipelineMetrics) ObserveDispatch(notificationType string, duration time.Duration) {
	if m == nil || m.dispatchDuration == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(normalizeLabel(notificationType)).Observe(duration.Seconds())
}

// IncSent counts one delivered message by kind (plain, interactive, broadcast).
func (m *PipelineMetrics) IncSent(kind string) {
	if m == nil || m.messagesSent == nil {
		return
	}
	m.messagesSent.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncSendFailed counts one rejected message by kind.
func (m *PipelineMetrics) IncSendFailed(kind string) {
	if m == nil || m.messagesFailed == nil {
		return
	}
	m.messagesFailed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncCallback counts one resolved callback by outcome class.
func (m *PipelineMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
