package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/events"
)

type stubPublisher struct {
	got []events.Event
	err error
}

func (p *stubPublisher) Publish(_ context.Context, e events.Event) error {
	p.got = append(p.got, e)
	return p.err
}

func (p *stubPublisher) Close() error { return nil }

func TestNotificationServiceRelaysEveryEventType(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	pub := &stubPublisher{}
	NewNotificationService(dispatcher, pub, nil).RegisterHandlers()

	for _, eventType := range events.AllEventTypes {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: eventType, AggregateID: "a"}))
	}

	require.Len(t, pub.got, len(events.AllEventTypes))
	assert.Equal(t, events.EventMaintenanceAssigned, pub.got[len(pub.got)-1].Type)
}

func TestNotificationServicePublisherErrorDoesNotFailDispatch(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	pub := &stubPublisher{err: errors.New("broker down")}
	NewNotificationService(dispatcher, pub, nil).RegisterHandlers()

	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}))
	assert.Len(t, pub.got, 1)
}
