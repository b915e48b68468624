package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/messaging"
)

// NotificationService relays domain events to the log and the event broker.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  messaging.EventPublisher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, publisher messaging.EventPublisher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every emitted event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("aggregate_id", event.AggregateID),
		zap.String("actor_id", event.Actor.UserID))
	if n.publisher == nil {
		return nil
	}
	return n.publisher.Publish(ctx, event)
}
