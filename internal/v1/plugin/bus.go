// Package plugin implements the peripheral hot-reload event bus: an
// in-process subscribe/emit registry that plugin modules attach to, plus an
// optional cross-process Redis publish path for multi-instance deployments —
// adapted from the teacher's bus.Service (gobreaker-wrapped Redis pub/sub),
// generalised from its WebRTC-signalling-specific channel scheme to a
// generic named-event bus (§9: plugin hot-reload is peripheral, only
// subscribes to the bus and calls the same public core operations as the
// handler).
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rymc/roomserver/internal/v1/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Event is one message carried by the bus: a name plus an arbitrary payload.
type Event struct {
	Name    string
	Payload any
}

// Handler is invoked for every Event published on a topic a plugin
// subscribed to.
type Handler func(Event)

// Bus is an in-process publish/subscribe registry, optionally mirrored to
// Redis so multiple server instances share plugin events.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler

	redis   *redis.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// New returns a Bus with no Redis mirroring.
func New(log *zap.Logger) *Bus {
	return &Bus{subs: make(map[string][]Handler), log: log}
}

// NewWithRedis returns a Bus that also publishes every local Emit to a Redis
// channel, circuit-broken the same way the teacher guards its Redis calls.
func NewWithRedis(client *redis.Client, log *zap.Logger) *Bus {
	settings := gobreaker.Settings{
		Name:        "plugin-bus-redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	return &Bus{
		subs:    make(map[string][]Handler),
		redis:   client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

// Subscribe registers h to be called for every Emit on topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// Emit invokes every local subscriber of topic synchronously, then mirrors
// the event to Redis if configured.
func (b *Bus) Emit(topic string, ev Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
	b.publishRemote(topic, ev)
}

func (b *Bus) publishRemote(topic string, ev Event) {
	if b.redis == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Warn("plugin bus: failed to marshal event for redis", zap.Error(err))
		return
	}
	channel := fmt.Sprintf("roomserver:plugin:%s", topic)
	_, err = b.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return nil, b.redis.Publish(ctx, channel, data).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("plugin-bus-redis").Inc()
			return
		}
		metrics.RedisOperationsTotal.WithLabelValues("publish", "error").Inc()
		b.log.Warn("plugin bus: redis publish failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	metrics.RedisOperationsTotal.WithLabelValues("publish", "ok").Inc()
}
