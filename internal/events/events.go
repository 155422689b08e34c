package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of event flowing through the bus.
type EventType string

const (
	// Scoring pipeline events.
	ScoreUpdated   EventType = "score.updated"
	RankingUpdated EventType = "ranking.updated"

	// Simulation ledger events.
	TradeSettled     EventType = "trade.settled"
	TradeRejected    EventType = "trade.rejected"
	PortfolioChanged EventType = "portfolio.changed"

	// Data ingestion events.
	PriceUpdated      EventType = "price.updated"
	SnapshotIngested  EventType = "snapshot.ingested"
	ValuationRecorded EventType = "valuation.recorded"

	// Background job lifecycle events.
	JobStarted   EventType = "job.started"
	JobCompleted EventType = "job.completed"
	JobFailed    EventType = "job.failed"
)

// Event is a single occurrence published on the bus. Data carries an
// arbitrary JSON-serializable payload, typically one of the structs in
// event_data.go rendered to a map.
type Event struct {
	Type      EventType   `json:"type"`
	Module    string      `json:"module"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Handler receives events for a subscribed type.
type Handler func(e *Event)

// Bus is an in-process publish/subscribe dispatcher. Subscribers are
// invoked synchronously in registration order; handlers that need to do
// slow work should hand off to their own goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler that receives every event regardless
// of type. Used by the SSE stream to fan events out to clients.
func (b *Bus) SubscribeAll(handler Handler) {
	b.Subscribe(wildcardType, handler)
}

const wildcardType EventType = "*"

// Publish delivers the event to all matching subscribers. A panicking
// handler is recovered and logged so one bad subscriber cannot take
// down the publisher.
func (b *Bus) Publish(e *Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	typed := b.handlers[e.Type]
	wild := b.handlers[wildcardType]
	b.mu.RUnlock()

	for _, h := range typed {
		b.safeInvoke(h, e)
	}
	for _, h := range wild {
		b.safeInvoke(h, e)
	}
}

func (b *Bus) safeInvoke(h Handler, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(e.Type)).
				Msg("Event handler panicked")
		}
	}()
	h(e)
}

// SubscriberCount reports how many handlers are registered for a type,
// excluding wildcard subscribers.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
