package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventWearRecorded = "wear_recorded"
	EventWashRecorded = "wash_recorded"
	EventActionQueued = "action_queued"
	EventStateApplied = "state_applied"
	EventQueueFlushed = "queue_flushed"
	EventSyncFailed   = "sync_failed"
)

// StatePayload carries the canonical state snapshot applied after a
// successful submission, for UI-facing consumers.
type StatePayload struct {
	Items      int   `json:"items"`
	WearEvents int   `json:"wear_events"`
	WashEvents int   `json:"wash_events"`
	AppliedAt  int64 `json:"applied_at"`
}

// SyncFailurePayload describes a failed flush and the scheduled retry.
type SyncFailurePayload struct {
	Error       string `json:"error"`
	Pending     int    `json:"pending"`
	Attempt     int    `json:"attempt"`
	NextRetryAt int64  `json:"next_retry_at,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
