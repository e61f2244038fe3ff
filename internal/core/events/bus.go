// Package events is an in-process pub/sub bus. Export notifications
// fan out through it so the broker never blocks on subscribers.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	Payload() interface{}
}

type BaseEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func (e BaseEvent) Payload() interface{} {
	return e.Data
}

type Handler func(ctx context.Context, event Event) error

type EventBus struct {
	subscribers map[string][]Handler
	logger      *slog.Logger
	mu          sync.RWMutex
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]Handler),
		logger:      logger,
	}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
	eb.logger.Info("event subscriber registered",
		"event_type", eventType,
		"subscribers", len(eb.subscribers[eventType]))
}

// Publish dispatches to subscribers asynchronously. Handler errors are
// logged, never returned to the publisher.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	subscribers := eb.subscribers[event.EventType()]
	eb.mu.RUnlock()

	if len(subscribers) == 0 {
		eb.logger.Debug("no subscribers for event type", "event_type", event.EventType())
		return nil
	}

	eb.logger.Info("publishing event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"subscribers", len(subscribers))

	for _, handler := range subscribers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				eb.logger.Error("event subscriber failed",
					"event_type", event.EventType(),
					"event_id", event.EventID(),
					"error", err)
			}
		}(handler)
	}

	return nil
}

// PublishSync runs subscribers in registration order and stops at the
// first failure.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	eb.mu.RLock()
	subscribers := eb.subscribers[event.EventType()]
	eb.mu.RUnlock()

	if len(subscribers) == 0 {
		eb.logger.Debug("no subscribers for event type", "event_type", event.EventType())
		return nil
	}

	eb.logger.Info("publishing event synchronously",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"subscribers", len(subscribers))

	for _, handler := range subscribers {
		if err := handler(ctx, event); err != nil {
			eb.logger.Error("event subscriber failed",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"error", err)
			return fmt.Errorf("subscriber failed for event %s: %w", event.EventType(), err)
		}
	}

	return nil
}
