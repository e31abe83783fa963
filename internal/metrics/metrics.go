// Package metrics exposes Prometheus collectors for the relay: live
// connections and rooms, join outcomes, relayed traffic, and rejected input.
//
// All recording methods are safe to call on a nil *Metrics so that the relay
// core can run without a registry in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomrelay"

// Join results recorded by ObserveJoin.
const (
	JoinOK       = "ok"
	JoinRejected = "rejected"
)

// Metrics holds the relay's collectors and the registry they are bound to.
type Metrics struct {
	registry *prometheus.Registry

	connections  prometheus.Gauge
	rooms        prometheus.Gauge
	roomsCreated prometheus.Counter
	joins        *prometheus.CounterVec
	relayed      *prometheus.CounterVec
	deliveries   prometheus.Counter
	rejected     *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry, along
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open WebSocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of rooms currently held by the registry.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Number of create_room requests served, including overwrites.",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Number of join_room requests by result.",
		}, []string{"result"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_messages_total",
			Help:      "Number of messages fanned out to room peers by message type.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Number of frames queued to individual peers.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_messages_total",
			Help:      "Number of inbound messages rejected by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.rooms,
		m.roomsCreated,
		m.joins,
		m.relayed,
		m.deliveries,
		m.rejected,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ConnectionOpened increments the open connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// SetRooms records the current number of rooms.
func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

// RoomCreated counts a create_room request.
func (m *Metrics) RoomCreated() {
	if m == nil {
		return
	}
	m.roomsCreated.Inc()
}

// ObserveJoin counts a join_room request with the given result.
func (m *Metrics) ObserveJoin(result string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(result).Inc()
}

// Relayed counts one fan-out of msgType that reached n peers.
func (m *Metrics) Relayed(msgType string, n int) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(msgType).Inc()
	m.deliveries.Add(float64(n))
}

// Rejected counts an inbound message dropped for reason.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
