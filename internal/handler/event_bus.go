// internal/handler/event_bus.go
package handler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/link"
	"github.com/fallrisk/super-serial/internal/linkerr"
)

// Event types published by the bus
const (
	EventLinkOpened = "link.opened"
	EventLinkClosed = "link.closed"
	EventLinkData   = "link.data"
	EventLinkError  = "link.error"

	// EventAll subscribes to every event type
	EventAll = "*"
)

// EventBus fans link events out to subscribers. It implements
// link.Listener; publishing never blocks the read loop.
type EventBus struct {
	subscribers map[string][]chan Event
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// Event represents a link event
type Event struct {
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		events:      make(chan Event, 1000),
		logger:      logger.With(zap.String("component", "event-bus")),
		done:        make(chan struct{}),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Stop ends Start
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() { close(eb.done) })
}

// Publish publishes an event
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.Type),
		)
	}
}

// Subscribe subscribes to events of a specific type, or EventAll
func (eb *EventBus) Subscribe(eventType string) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// Unsubscribe removes a subscription and closes its channel
func (eb *EventBus) Unsubscribe(sub <-chan Event) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for eventType, subs := range eb.subscribers {
		for i, ch := range subs {
			if ch == sub {
				eb.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
}

func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, key := range []string{event.Type, EventAll} {
		for _, subscriber := range eb.subscribers[key] {
			select {
			case subscriber <- event:
			default:
				// slow subscriber
				eb.logger.Debug("Subscriber full, skipping event", zap.String("event_type", event.Type))
			}
		}
	}
}

// OnOpened implements link.Listener
func (eb *EventBus) OnOpened(event link.OpenedEvent) {
	eb.Publish(Event{Type: EventLinkOpened, Source: event.Port, Data: event, Timestamp: event.At})
}

// OnClosed implements link.Listener
func (eb *EventBus) OnClosed(event link.ClosedEvent) {
	eb.Publish(Event{Type: EventLinkClosed, Source: event.Port, Data: event, Timestamp: event.At})
}

// OnDataReceived implements link.Listener
func (eb *EventBus) OnDataReceived(text string) {
	eb.Publish(Event{Type: EventLinkData, Data: map[string]interface{}{"text": text}})
}

// OnError implements link.Listener
func (eb *EventBus) OnError(err *linkerr.Error) {
	eb.Publish(Event{Type: EventLinkError, Data: err})
}
