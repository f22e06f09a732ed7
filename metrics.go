/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type relayMetrics struct {
	registry    *prometheus.Registry
	rooms       prometheus.Gauge
	connections prometheus.Gauge
	members     prometheus.Gauge
	events      *prometheus.CounterVec
	dropped     prometheus.Counter
}

// newRelayMetrics uses its own registry, so several relays can coexist
// in one process.
func newRelayMetrics() *relayMetrics {
	m := &relayMetrics{
		registry: prometheus.NewRegistry(),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pixelroom",
			Name:      "rooms",
			Help:      "Rooms with at least one member.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pixelroom",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pixelroom",
			Name:      "room_members",
			Help:      "Connections currently joined to a room.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pixelroom",
			Name:      "events_total",
			Help:      "Inbound events by name.",
		}, []string{"event"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pixelroom",
			Name:      "dropped_connections_total",
			Help:      "Connections dropped because their send queue was full.",
		}),
	}

	m.registry.MustRegister(
		m.rooms,
		m.connections,
		m.members,
		m.events,
		m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *relayMetrics) observe(s Stats) {
	m.rooms.Set(float64(s.Rooms))
	m.connections.Set(float64(s.Connections))
	m.members.Set(float64(s.Members))
}

func (m *relayMetrics) countEvent(event string) {
	switch event {
	case eventJoin, eventUserMoved, eventChat:
	default:
		event = "unknown"
	}

	m.events.WithLabelValues(event).Inc()
}

func registerMetricsHandler(cfg *Config, m *relayMetrics, mux *httprouter.Router) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	mux.GET(cfg.prefix+"/metrics", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		h.ServeHTTP(w, r)
	})
}
