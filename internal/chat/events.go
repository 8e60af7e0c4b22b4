package chat

import (
	"context"
	"encoding/json"

	"souq-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Event tables and types mirror row-level change notifications: an insert or
// update on the messages or conversations table, scoped to one recipient.
const (
	TableMessages      = "messages"
	TableConversations = "conversations"

	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// Event is one row-level change delivered to a participant's change feed.
type Event struct {
	Table          string               `json:"table"`
	Type           string               `json:"type"`
	ConversationID uuid.UUID            `json:"conversation_id"`
	Message        *domain.Message      `json:"message,omitempty"`
	Conversation   *domain.Conversation `json:"conversation,omitempty"`
}

// Publisher delivers change events to a user's feed. The chat service
// publishes to every participant; fan-out to websockets happens downstream.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, ev Event)
}

const eventChannelPrefix = "chat:events:"

// RedisBus is a Publisher backed by Redis pub/sub, one channel per user, so
// events reach every server instance holding a websocket for that user.
type RedisBus struct {
	Rdb *redis.Client
}

func (b *RedisBus) Publish(ctx context.Context, userID uuid.UUID, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("chat: marshal event")
		return
	}
	if err := b.Rdb.Publish(ctx, eventChannelPrefix+userID.String(), payload).Err(); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("chat: publish event")
	}
}

// Subscribe returns a channel of events for one user. The returned cancel
// func closes the underlying Redis subscription.
func (b *RedisBus) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Event, func()) {
	sub := b.Rdb.Subscribe(ctx, eventChannelPrefix+userID.String())
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Error().Err(err).Msg("chat: decode event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
