package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the chat service.
//
// Naming convention: namespace_subsystem_name
// - namespace: parley (application-level grouping)
// - subsystem: transport, room, coordinator (feature-level grouping)
// - name: specific metric (connections_active, frames_total, etc.)

var (
	// ActiveConnections tracks the current number of live client
	// connections (Gauge - current state).
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "transport",
		Name:      "connections_active",
		Help:      "Current number of active client connections",
	})

	// RegisteredUsers tracks the current number of sessions holding a
	// nickname (Gauge - current state).
	RegisteredUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "coordinator",
		Name:      "users_registered",
		Help:      "Current number of registered nicknames",
	})

	// ActiveRooms tracks the current number of rooms in the registry
	// (Gauge - rooms are never destroyed before shutdown).
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of rooms in the registry",
	})

	// FramesTotal counts wire frames by direction and kind (CounterVec -
	// cumulative).
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "transport",
		Name:      "frames_total",
		Help:      "Total wire frames processed",
	}, []string{"direction", "kind"})

	// CommandsTotal counts coordinator events by outcome (CounterVec -
	// cumulative).
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "coordinator",
		Name:      "commands_total",
		Help:      "Total coordinator commands processed",
	}, []string{"command", "status"})

	// RoomMessagesDropped counts broadcast messages shed by slow
	// subscribers (CounterVec - cumulative per room).
	RoomMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "room",
		Name:      "messages_dropped_total",
		Help:      "Broadcast messages dropped for lagging subscribers",
	}, []string{"room"})

	// MailboxMessagesDropped counts outbound messages shed on session
	// mailbox overflow (Counter - cumulative).
	MailboxMessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "transport",
		Name:      "mailbox_dropped_total",
		Help:      "Outbound messages dropped on mailbox overflow",
	})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
