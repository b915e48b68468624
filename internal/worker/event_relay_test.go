package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	got    []string
	closed bool
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e.AggregateID)
	if p.fail {
		return errors.New("broker down")
	}
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestEventRelayForwardsInOrderAndDrainsOnClose(t *testing.T) {
	down := &recordingPublisher{}
	relay := NewEventRelay(down, 10, nil)
	relay.Start()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, relay.Publish(context.Background(), events.Event{AggregateID: id}))
	}
	require.NoError(t, relay.Close())

	assert.Equal(t, []string{"a", "b", "c"}, down.got)
	assert.True(t, down.closed)
}

func TestEventRelayKeepsGoingAfterDownstreamError(t *testing.T) {
	down := &recordingPublisher{fail: true}
	relay := NewEventRelay(down, 10, nil)
	relay.Start()

	_ = relay.Publish(context.Background(), events.Event{AggregateID: "x"})
	_ = relay.Publish(context.Background(), events.Event{AggregateID: "y"})
	require.NoError(t, relay.Close())

	assert.Equal(t, []string{"x", "y"}, down.got)
}

func TestEventRelayDropsWhenFullAndAfterClose(t *testing.T) {
	down := &recordingPublisher{}
	relay := NewEventRelay(down, 1, nil)

	// not started, so the single slot stays occupied
	require.NoError(t, relay.Publish(context.Background(), events.Event{AggregateID: "kept"}))
	require.NoError(t, relay.Publish(context.Background(), events.Event{AggregateID: "dropped"}))

	relay.Start()
	require.NoError(t, relay.Close())
	require.NoError(t, relay.Publish(context.Background(), events.Event{AggregateID: "late"}))

	assert.Equal(t, []string{"kept"}, down.got)
}
