package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"snake-arena/internal/game"
)

// Metrics with bounded cardinality: room status and rejection reasons are
// small fixed sets, no per-player or per-room-id labels.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snake_tick_duration_seconds",
		Help:    "Time spent in one room simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_ws_connections",
		Help: "Currently open websocket connections",
	})

	wsMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snake_ws_messages_total",
		Help: "Inbound websocket messages processed",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snake_broadcast_frames_dropped_total",
		Help: "Broadcast frames dropped on slow connections",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snake_connection_rejected_total",
		Help: "Connections rejected by limits or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	roomsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "snake_rooms",
		Help: "Rooms by lifecycle status",
	}, []string{"status"}) // Bounded: IDLE, WAITING, RUNNING, FINISHED

	playersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_players_connected",
		Help: "Occupants across all rooms, bots included",
	})
)

// ObserveTickDuration records one room tick; wired into game.Hooks.
func ObserveTickDuration(d float64) {
	tickDuration.Observe(d)
}

// RecordFrameDropped counts a broadcast frame lost to backpressure.
func RecordFrameDropped() {
	framesDropped.Inc()
}

// RecordConnectionRejected counts a rejected connection by reason.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// UpdateWSConnections sets the open-connection gauge.
func UpdateWSConnections(count int) {
	wsConnections.Set(float64(count))
}

// IncrementWSMessages counts one processed inbound message.
func IncrementWSMessages() {
	wsMessages.Inc()
}

// UpdateRoomGauges refreshes the per-status room gauges and the occupant
// gauge from a stats sweep.
func UpdateRoomGauges(stats []game.RoomStats) {
	counts := map[game.Status]int{
		game.StatusIdle:     0,
		game.StatusWaiting:  0,
		game.StatusRunning:  0,
		game.StatusFinished: 0,
	}
	players := 0
	for _, s := range stats {
		counts[s.Status]++
		players += s.ConnectedPlayers
	}
	for status, n := range counts {
		roomsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
	playersConnected.Set(float64(players))
}
