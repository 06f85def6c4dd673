// Package metrics holds the Prometheus collectors of the chat gateway.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the gateway collectors. A nil *Metrics is valid and records
// nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	SocketsConnected prometheus.Gauge
	Events           *prometheus.CounterVec
	FanoutPublished  prometheus.Counter
	FanoutDelivered  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SocketsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "sockets_connected",
			Help:      "Authenticated sockets currently attached to this instance.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "events_total",
			Help:      "Inbound socket events by name and ack result.",
		}, []string{"event", "result"}),
		FanoutPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "fanout_published_total",
			Help:      "Envelopes published on the fan-out bus.",
		}),
		FanoutDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "fanout_delivered_total",
			Help:      "Frames handed to local sockets from the fan-out bus.",
		}),
	}
	reg.MustRegister(m.SocketsConnected, m.Events, m.FanoutPublished, m.FanoutDelivered)
	return m
}

func (m *Metrics) SocketAttached() {
	if m != nil {
		m.SocketsConnected.Inc()
	}
}

func (m *Metrics) SocketDetached() {
	if m != nil {
		m.SocketsConnected.Dec()
	}
}

// Event counts one handled event; result is an ack code or "OK".
func (m *Metrics) Event(event, result string) {
	if m != nil {
		m.Events.WithLabelValues(event, result).Inc()
	}
}

func (m *Metrics) Published() {
	if m != nil {
		m.FanoutPublished.Inc()
	}
}

func (m *Metrics) Delivered(n int) {
	if m != nil && n > 0 {
		m.FanoutDelivered.Add(float64(n))
	}
}
