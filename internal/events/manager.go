package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Manager is the emit-side facade over the Bus. Modules hold a *Manager
// and never touch the Bus directly; the manager stamps timestamps and
// logs each emission at debug level.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "event_manager").Logger(),
	}
}

// Emit publishes an event with a free-form map payload.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	e := &Event{
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	m.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Msg("Emitting event")
	m.bus.Publish(e)
}

// EmitTyped publishes an event whose payload is one of the typed
// structs in event_data.go. The struct is converted to a map so SSE
// clients see a uniform JSON shape.
func (m *Manager) EmitTyped(eventType EventType, module string, data EventData) {
	m.Emit(eventType, module, data.ToMap())
}

// Bus exposes the underlying bus for subscribe-side consumers.
func (m *Manager) Bus() *Bus {
	return m.bus
}
