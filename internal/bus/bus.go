// Package bus is the process-wide publish/subscribe channel other
// dashboard components listen on. Dispatch is synchronous and
// best-effort: every listener subscribed at publish time is invoked,
// and a panicking listener does not take down the publisher.
package bus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vietddude/ticketdash/internal/core/domain"
	"github.com/vietddude/ticketdash/internal/metrics"
)

// Handler receives a published payload. Payload may be nil for
// notification-only topics.
type Handler func(payload any)

// Bus fans published payloads out to topic subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[domain.Topic]map[string]Handler
	log  *slog.Logger
}

// New creates an empty bus.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subs: make(map[domain.Topic]map[string]Handler),
		log:  log,
	}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// function. The handler runs on the publisher's goroutine.
func (b *Bus) Subscribe(topic domain.Topic, h Handler) (unsubscribe func()) {
	id := uuid.New().String()

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]Handler)
	}
	b.subs[topic][id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs[topic], id)
		b.mu.Unlock()
	}
}

// Publish delivers payload to every current subscriber of topic.
// Fire-and-forget: there is no delivery confirmation and no queuing.
func (b *Bus) Publish(topic domain.Topic, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	metrics.BusPublishesTotal.WithLabelValues(string(topic)).Inc()

	for _, h := range handlers {
		b.dispatch(topic, h, payload)
	}
}

func (b *Bus) dispatch(topic domain.Topic, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus handler panicked", "topic", topic, "panic", r)
		}
	}()
	h(payload)
}
