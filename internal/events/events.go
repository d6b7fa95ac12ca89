// Package events provides an in-process event bus that carries state changes
// from the sync components to whatever presents them
package events

import (
	"context"
	"sync"

	"github.com/xcrape/xcrape/internal/logger"
)

// EventType represents the type of client event
type EventType string

const (
	// EventSnapshotReplaced is emitted after the job snapshot was swapped
	EventSnapshotReplaced EventType = "snapshot_replaced"
	// EventSessionChanged is emitted after the detail session changed state or tab
	EventSessionChanged EventType = "session_changed"
	// EventNotice is emitted for every user-visible notification
	EventNotice EventType = "notice"
	// EventBusyChanged is emitted when the refresh indicator turns on or off
	EventBusyChanged EventType = "busy_changed"
	// EventChannelSize is the buffer size for the event channel
	EventChannelSize = 100
)

// Event represents a client event
type Event struct {
	Type    EventType   // The type of event
	JobID   uint        // The job the event is about, if any
	Payload interface{} // Event specific data
}

// Handler is a function that handles an event
type Handler func(context.Context, Event) error

// Bus fans events out to subscribers from a single goroutine, so each handler
// sees events in publish order
type Bus struct {
	handlersMu sync.RWMutex
	handlers   map[EventType][]Handler
	eventChan  chan Event
}

// NewBus creates an event bus; call Start to begin delivery
func NewBus() *Bus {
	return &Bus{
		handlers:  make(map[EventType][]Handler),
		eventChan: make(chan Event, EventChannelSize),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	logger.Debugf("📝 Registered handler for event type: %s", eventType)
}

// Publish queues an event for delivery. It never blocks the publisher: when
// the buffer is full the event is dropped and logged.
func (b *Bus) Publish(event Event) {
	select {
	case b.eventChan <- event:
		logger.Debugf("📢 Published event: %s (Job: %d)", event.Type, event.JobID)
	default:
		logger.Warnf("Event buffer full, dropping %s (Job: %d)", event.Type, event.JobID)
	}
}

// Start starts the event processing loop
func (b *Bus) Start(ctx context.Context) {
	go b.processEvents(ctx)
	logger.Debug("🎯 Started event processing loop")
}

// processEvents handles events in the background
func (b *Bus) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Debug("🛑 Stopping event processing loop")
			return
		case event := <-b.eventChan:
			b.handlersMu.RLock()
			eventHandlers := append([]Handler(nil), b.handlers[event.Type]...)
			b.handlersMu.RUnlock()

			for _, handler := range eventHandlers {
				if err := handler(ctx, event); err != nil {
					logger.Errorf("❌ Failed to handle event %s: %v", event.Type, err)
				}
			}
		}
	}
}
