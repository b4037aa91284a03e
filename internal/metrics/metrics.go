// Package metrics exposes archive pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zoomarchive"

// Metrics groups the pipeline counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Runs      *prometheus.CounterVec
	Meetings  *prometheus.CounterVec
	Files     *prometheus.CounterVec
	Deletions *prometheus.CounterVec
	Bytes     prometheus.Counter
	Webhooks  *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Archive runs by trigger and result.",
		}, []string{"trigger", "result"}),
		Meetings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meetings_total",
			Help:      "Meetings seen by outcome.",
		}, []string{"outcome"}),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_files_total",
			Help:      "Recording file downloads by outcome.",
		}, []string{"outcome"}),
		Deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_deletions_total",
			Help:      "Cloud recording deletions by outcome.",
		}, []string{"outcome"}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to the local archive.",
		}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound webhook events by event type and disposition.",
		}, []string{"event", "disposition"}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Meetings, m.Files, m.Deletions, m.Bytes, m.Webhooks)
	}
	return m
}

func (m *Metrics) Run(trigger, result string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) Meeting(outcome string) {
	if m == nil {
		return
	}
	m.Meetings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) File(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.Bytes.Add(float64(bytes))
	}
}

func (m *Metrics) Deletion(outcome string) {
	if m == nil {
		return
	}
	m.Deletions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Webhook(event, disposition string) {
	if m == nil {
		return
	}
	m.Webhooks.WithLabelValues(event, disposition).Inc()
}
