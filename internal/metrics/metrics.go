// Package metrics declares the Prometheus instruments exposed on
// GET /metrics.
//
// Naming convention: namespace_subsystem_name
//   - namespace: khunphaen (application-level grouping)
//   - subsystem: room, websocket, crdt (feature-level grouping)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms tracks the current number of live rooms in the registry.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "khunphaen",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomPeers tracks the number of connected peers per room.
	RoomPeers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "khunphaen",
		Subsystem: "room",
		Name:      "peers_count",
		Help:      "Number of connected peers in each room",
	}, []string{"room_code"})

	// RoomsReapedTotal counts rooms removed by the idle reaper.
	RoomsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "khunphaen",
		Subsystem: "room",
		Name:      "reaped_total",
		Help:      "Total number of rooms removed by the idle reaper",
	})

	// ActiveConnections tracks the current number of open WebSocket
	// sessions, joined or not.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "khunphaen",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ClientMessagesTotal counts inbound client messages by action and
	// outcome.
	ClientMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "khunphaen",
		Subsystem: "websocket",
		Name:      "messages_total",
		Help:      "Total inbound client messages processed",
	}, []string{"action", "outcome"})

	// BusMessagesDroppedTotal counts fan-out deliveries dropped because a
	// subscriber's bounded queue was full.
	BusMessagesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "khunphaen",
		Subsystem: "room",
		Name:      "bus_messages_dropped_total",
		Help:      "Total fan-out messages dropped due to a full subscriber queue",
	})

	// RoomCreateRateLimitedTotal counts POST /api/rooms requests rejected
	// by the rate limiter.
	RoomCreateRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "khunphaen",
		Subsystem: "room",
		Name:      "create_rate_limited_total",
		Help:      "Total room creation requests rejected by the rate limiter",
	})

	// CrdtOperationsAppliedTotal counts operations applied to a CRDT
	// document via apply_operations, by kind. Full-state merges are not
	// counted.
	CrdtOperationsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "khunphaen",
		Subsystem: "crdt",
		Name:      "operations_applied_total",
		Help:      "Total CRDT operations applied to a document",
	}, []string{"kind"})
)
