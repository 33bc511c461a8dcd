// Package events implements a small in-process pub/sub bus used to decouple
// the upload orchestrator from the rest of the host application: it
// subscribes to signals it does not own (a purchased subscription, a local
// photo deletion) and publishes signals others care about (local photos
// updated) without either side holding a direct reference to the other.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ente-io/uploadcore/internal/constants"
)

// EventType identifies the kind of event carried on the bus.
type EventType string

const (
	// Upload lifecycle, for publishing via PublishUpload; the Queue
	// Scheduler and worker do not publish these.
	EventUploadQueued             EventType = "upload_queued"
	EventUploadStarted            EventType = "upload_started"
	EventUploadProgress           EventType = "upload_progress"
	EventUploadCompleted          EventType = "upload_completed"
	EventUploadFailed             EventType = "upload_failed"
	EventUploadParkedInBackground EventType = "upload_parked_in_background"

	// Domain signals the orchestrator subscribes to or publishes.
	EventLocalPhotosUpdated    EventType = "local_photos_updated"
	EventLocalPhotosDeleted    EventType = "local_photos_deleted"
	EventSubscriptionPurchased EventType = "subscription_purchased"

	EventLog EventType = "log"
)

// LogLevel defines log severity levels carried by LogEvent.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events carried on the bus.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides the common fields every concrete event embeds.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// UploadEvent reports a state transition of one queue item.
type UploadEvent struct {
	BaseEvent
	LocalID      string
	CollectionID int64
	Progress     float64 // 0.0 to 1.0, only meaningful for EventUploadProgress
	Error        error
}

// LocalPhotosUpdatedEvent is published once an upload commits a new or
// updated remote file record.
type LocalPhotosUpdatedEvent struct {
	BaseEvent
	LocalID        string
	UploadedFileID int64
}

// LocalPhotosDeletedEvent is consumed, not published, by this package's
// subscribers: it names local IDs removed from the device.
type LocalPhotosDeletedEvent struct {
	BaseEvent
	LocalIDs []string
}

// SubscriptionPurchasedEvent is consumed, not published: it signals that the
// URL Pool's session-terminal "no active subscription" state should clear.
type SubscriptionPurchasedEvent struct {
	BaseEvent
}

// LogEvent carries a single structured log line onto the bus for a host
// application that wants to mirror logs without reading the logger's output.
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Error   error
}

// EventBus manages event subscriptions and publishing. Publish never blocks:
// a subscriber whose buffer is full misses the event and the bus counts it,
// rather than stalling the publisher (the worker or scheduler goroutine).
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates an event bus with the given per-subscriber buffer
// size; a non-positive size selects EventBusDefaultBuffer and sizes above
// EventBusMaxBuffer are capped to it.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel that receives only events of eventType.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll returns a channel that receives every event published.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish delivers event to every matching subscriber without blocking.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts the bus down and closes every subscriber channel. Further
// Publish calls are no-ops.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience wrapper for publishing LogEvent.
func (eb *EventBus) PublishLog(level LogLevel, message string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
		Level:     level,
		Message:   message,
		Error:     err,
	})
}

// PublishUpload is a convenience wrapper for publishing upload lifecycle
// events.
func (eb *EventBus) PublishUpload(eventType EventType, localID string, collectionID int64, progress float64, err error) {
	eb.Publish(&UploadEvent{
		BaseEvent:    BaseEvent{EventType: eventType, Time: time.Now()},
		LocalID:      localID,
		CollectionID: collectionID,
		Progress:     progress,
		Error:        err,
	})
}

// Unsubscribe removes ch from eventType's subscriber list.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes ch from every event type and from the all-events
// list. Use this when tearing down a subscriber registered for more than
// one event type.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns how many events have been dropped due to
// full subscriber buffers.
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount zeroes the dropped-event counter and returns its
// prior value.
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
