package service

import (
	"sync"
	"time"

	"neti/internal/domain"
)

// EventType defines the type of event
type EventType string

const (
	EventScanStarted  EventType = "scan_started"
	EventScanFinished EventType = "scan_finished"
	EventAnalysisDone EventType = "analysis_finished"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// ScanEvent describes one scan without its credentials or output
type ScanEvent struct {
	ScanID    string            `json:"scan_id"`
	Kind      domain.TargetKind `json:"kind"`
	ScanType  domain.ScanType   `json:"scan_type,omitempty"`
	Target    string            `json:"target"`
	Failed    bool              `json:"failed,omitempty"`
	ElapsedMS int64             `json:"elapsed_ms,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[chan<- Event]struct{}
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[chan<- Event]struct{}),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[ch] = struct{}{}
}

// Unsubscribe removes a subscriber. The channel is not closed.
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.subscribers, ch)
}

// Publish sends an event to all subscribers without blocking
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
