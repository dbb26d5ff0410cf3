// Package metrics declares the process's Prometheus metrics, following the
// teacher's namespace/subsystem/name convention and Gauge/Counter/Histogram
// choices, renamed to this domain's connections/rooms/packets/identity
// surface.
//
// Naming convention: namespace_subsystem_name
// - namespace: rhythm_room (application-level grouping)
// - subsystem: connection, room, protocol, identity, circuit_breaker,
//   security, ratelimit, redis (feature-level grouping)
// - name: specific metric
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks the current number of open TCP connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rhythm_room",
		Subsystem: "connection",
		Name:      "connections_active",
		Help:      "Current number of open connections",
	})

	// RoomsActive tracks the current number of rooms in the table.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rhythm_room",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the member count of each room by id.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rhythm_room",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	// PacketsTotal counts packets by direction (serverbound/clientbound) and name.
	PacketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rhythm_room",
		Subsystem: "protocol",
		Name:      "packets_total",
		Help:      "Total packets processed",
	}, []string{"direction", "packet"})

	// PacketProcessingDuration tracks handler latency per packet kind.
	PacketProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rhythm_room",
		Subsystem: "protocol",
		Name:      "packet_processing_seconds",
		Help:      "Time spent handling a decoded packet",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"packet"})

	// IdentityRequestsTotal counts identity-service calls by outcome.
	IdentityRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rhythm_room",
		Subsystem: "identity",
		Name:      "requests_total",
		Help:      "Total identity-service requests by status",
	}, []string{"status"})

	// CircuitBreakerState tracks breaker state per named breaker, using
	// gobreaker's State values: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rhythm_room",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of a circuit breaker (0: closed, 1: half-open, 2: open)",
	}, []string{"breaker"})

	// CircuitBreakerFailures tracks requests short-circuited by an open breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rhythm_room",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by an open circuit breaker",
	}, []string{"breaker"})

	// SecurityBansTotal counts bans issued over the process lifetime.
	SecurityBansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rhythm_room",
		Subsystem: "security",
		Name:      "bans_total",
		Help:      "Total bans issued",
	})

	// RateLimitExceeded counts admission-control rejections by surface.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rhythm_room",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total requests rejected by a rate limiter",
	}, []string{"surface"})

	// RedisOperationsTotal counts plugin-bus Redis publish operations.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rhythm_room",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total Redis operations issued by the plugin bus",
	}, []string{"operation", "status"})
)

// IncConnection increments the active-connection gauge.
func IncConnection() { ConnectionsActive.Inc() }

// DecConnection decrements the active-connection gauge.
func DecConnection() { ConnectionsActive.Dec() }

// NewPacketTimer starts a timer that records into PacketProcessingDuration
// for the named packet kind when ObserveDuration is called.
func NewPacketTimer(packet string) *prometheus.Timer {
	return prometheus.NewTimer(PacketProcessingDuration.WithLabelValues(packet))
}
