package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBus(t *testing.T) *RedisBus {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &RedisBus{Rdb: rdb}
}

func TestRedisBus_PublishSubscribeRoundTrip(t *testing.T) {
	bus := setupBus(t)
	userID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, stop := bus.Subscribe(ctx, userID)
	defer stop()
	// Give the subscription a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)

	convID := uuid.New()
	bus.Publish(ctx, userID, Event{
		Table:          TableConversations,
		Type:           EventUpdate,
		ConversationID: convID,
	})

	select {
	case ev := <-events:
		assert.Equal(t, TableConversations, ev.Table)
		assert.Equal(t, EventUpdate, ev.Type)
		assert.Equal(t, convID, ev.ConversationID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestRedisBus_ChannelsIsolatedPerUser(t *testing.T) {
	bus := setupBus(t)
	alice, bob := uuid.New(), uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aliceEvents, stopAlice := bus.Subscribe(ctx, alice)
	defer stopAlice()
	bobEvents, stopBob := bus.Subscribe(ctx, bob)
	defer stopBob()
	time.Sleep(50 * time.Millisecond)

	bus.Publish(ctx, alice, Event{Table: TableMessages, Type: EventInsert, ConversationID: uuid.New()})

	select {
	case <-aliceEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("alice did not receive her event")
	}
	select {
	case <-bobEvents:
		t.Fatal("bob received an event addressed to alice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_IsUserOnline(t *testing.T) {
	hub := NewHub(setupBus(t))
	userID := uuid.New()
	require.False(t, hub.IsUserOnline(userID))

	c := &Client{UserID: userID, Send: make(chan []byte, 1)}
	hub.register(c)
	assert.True(t, hub.IsUserOnline(userID))

	// Multi-tab: a second socket keeps the user online after the first leaves.
	c2 := &Client{UserID: userID, Send: make(chan []byte, 1)}
	hub.register(c2)
	hub.unregister(c)
	assert.True(t, hub.IsUserOnline(userID))
	hub.unregister(c2)
	assert.False(t, hub.IsUserOnline(userID))
}
