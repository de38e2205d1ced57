package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus is an in-memory publish/subscribe bus for engine lifecycle events.
// Publish is non-blocking: when the buffer is full the event is dropped and
// logged, never stalling a lane worker.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]Handler
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	eventCh  chan Event
}

// NewBus creates a bus with the given buffer size and starts its dispatch
// goroutine.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers: make(map[EventType]map[string]Handler),
		logger:   logger.Named("event_bus"),
		ctx:      ctx,
		cancel:   cancel,
		eventCh:  make(chan Event, bufferSize),
	}

	b.wg.Add(1)
	go b.dispatch()

	return b
}

// Subscribe registers a handler for an event type and returns an unsubscribe
// function.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if hs, ok := b.handlers[eventType]; ok {
			delete(hs, id)
			if len(hs) == 0 {
				delete(b.handlers, eventType)
			}
		}
	}
}

// SubscribeFunc is a convenience wrapper for subscribing a bare function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) func() {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish enqueues an event for asynchronous delivery. Dropped and logged if
// the buffer is full or the bus is shutting down.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	default:
	}

	select {
	case b.eventCh <- event:
		return nil
	default:
		b.logger.Warn("Event buffer full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("event buffer full")
	}
}

func (b *Bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			// Deliver whatever is already buffered, then exit.
			for {
				select {
				case event := <-b.eventCh:
					b.deliver(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.eventCh:
			b.deliver(b.ctx, event)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()]))
	for _, h := range b.handlers[event.Type()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("event_type", string(event.Type())),
				zap.Error(err))
		}
	}
}

// Shutdown stops dispatch, waiting up to the context deadline for buffered
// events to flush.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Pending reports the number of undelivered events, for monitoring.
func (b *Bus) Pending() int { return len(b.eventCh) }

// Base returns a BaseEvent of the given type stamped with the current time.
func Base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}
