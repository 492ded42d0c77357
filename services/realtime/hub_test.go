package realtimesvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	logsvc "github.com/trezcool/darasa/services/logger"
)

func receive(t *testing.T, ch <-chan core.Event) core.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return core.Event{}
}

func assertSilent(t *testing.T, ch <-chan core.Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishFiltersRecipients(t *testing.T) {
	hub := NewHub(logsvc.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := hub.Subscribe(ctx, "alice")
	bob := hub.Subscribe(ctx, "bob")
	anon := hub.Subscribe(ctx, "")

	require.NoError(t, hub.Publish(ctx, core.NewEvent("courses", core.EventInsert, "c1")))
	for _, ch := range []<-chan core.Event{alice, bob, anon} {
		evt := receive(t, ch)
		assert.Equal(t, "courses", evt.Table)
		assert.Equal(t, core.EventInsert, evt.Type)
	}

	require.NoError(t, hub.Publish(ctx, core.NewEvent("results", core.EventInsert, "r1", "alice")))
	assert.Equal(t, "results", receive(t, alice).Table)
	assertSilent(t, bob)
	assertSilent(t, anon)
}

func TestHub_SubscriptionEndsWithContext(t *testing.T) {
	hub := NewHub(logsvc.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.Subscribe(ctx, "alice")
	assert.Equal(t, 1, hub.Subscribers())
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	assert.Equal(t, 0, hub.Subscribers())
}

// loopBus delivers published events back like a pub/sub channel would.
type loopBus struct {
	mu        sync.Mutex
	onEvent   func(core.Event)
	published int
}

func (b *loopBus) Publish(_ context.Context, evt core.Event) error {
	b.mu.Lock()
	b.published++
	fn := b.onEvent
	b.mu.Unlock()
	if fn != nil {
		fn(evt)
	}
	return nil
}

func (b *loopBus) StartForwarder(_ context.Context, onEvent func(core.Event)) error {
	b.mu.Lock()
	b.onEvent = onEvent
	b.mu.Unlock()
	return nil
}

func TestHub_PublishThroughBus(t *testing.T) {
	bus := &loopBus{}
	hub := NewBusHub(bus, logsvc.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.Start(ctx))

	ch := hub.Subscribe(ctx, "alice")
	require.NoError(t, hub.Publish(ctx, core.NewEvent("enrollments", core.EventDelete, nil, "alice")))

	assert.Equal(t, core.EventDelete, receive(t, ch).Type)
	assert.Equal(t, 1, bus.published)
}

func TestDecodeEvent_KeepsRecipients(t *testing.T) {
	evt, err := decodeEvent([]byte(`{"event":{"table":"results","type":"INSERT","record":{"id":"r1"}},"user_ids":["u1"]}`))
	require.NoError(t, err)
	assert.Equal(t, "results", evt.Table)
	assert.Equal(t, []string{"u1"}, evt.UserIDs)
	assert.True(t, evt.Addressed("u1"))
	assert.False(t, evt.Addressed("u2"))

	_, err = decodeEvent([]byte("nope"))
	assert.Error(t, err)
}
