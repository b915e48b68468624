package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/messaging"
)

// EventRelay queues events off the request path and forwards them to a
// downstream publisher from a single goroutine, preserving order.
type EventRelay struct {
	downstream messaging.EventPublisher
	logger     *zap.Logger
	queue      chan events.Event
	done       chan struct{}
	startOnce  sync.Once
	closeOnce  sync.Once
	mu         sync.RWMutex
	closed     bool
}

// NewEventRelay builds a relay buffering up to size events.
func NewEventRelay(downstream messaging.EventPublisher, size int, logger *zap.Logger) *EventRelay {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRelay{
		downstream: downstream,
		logger:     logger,
		queue:      make(chan events.Event, size),
		done:       make(chan struct{}),
	}
}

// Start launches the forwarding goroutine. Extra calls are no-ops.
func (r *EventRelay) Start() {
	r.startOnce.Do(func() { go r.run() })
}

func (r *EventRelay) run() {
	defer close(r.done)
	for event := range r.queue {
		if err := r.downstream.Publish(context.Background(), event); err != nil {
			r.logger.Warn("event relay publish failed",
				zap.String("event_type", string(event.Type)),
				zap.String("aggregate_id", event.AggregateID),
				zap.Error(err))
		}
	}
}

// Publish enqueues event without blocking. A full queue drops the event.
func (r *EventRelay) Publish(_ context.Context, event events.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil
	}
	select {
	case r.queue <- event:
	default:
		r.logger.Warn("event relay queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("aggregate_id", event.AggregateID))
	}
	return nil
}

// Close stops accepting events, drains the queue and closes the downstream publisher.
func (r *EventRelay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.Start()
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
		err = r.downstream.Close()
	})
	return err
}
