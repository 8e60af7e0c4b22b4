package inbox

import (
	"context"

	"souq-backend/internal/chat"
	"souq-backend/internal/domain"

	"github.com/google/uuid"
)

// ServiceClient adapts the chat service to the store's Client interface by
// binding the acting user.
type ServiceClient struct {
	Chat *chat.Service
	Me   uuid.UUID
}

func (c *ServiceClient) FetchConversations(ctx context.Context) ([]chat.ConversationView, error) {
	return c.Chat.Conversations(ctx, c.Me)
}

func (c *ServiceClient) FetchMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	return c.Chat.Messages(ctx, conversationID, c.Me)
}

func (c *ServiceClient) SendMessage(ctx context.Context, conversationID uuid.UUID, content string, attachments []string) (*domain.Message, error) {
	return c.Chat.SendMessage(ctx, conversationID, c.Me, content, attachments)
}

func (c *ServiceClient) MarkAsRead(ctx context.Context, conversationID uuid.UUID) error {
	return c.Chat.MarkAsRead(ctx, conversationID, c.Me)
}
