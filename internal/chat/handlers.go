package chat

import (
	"souq-backend/internal/middleware"
	"souq-backend/internal/pkg/response"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
	Hub     *Hub
}

// Conversations GET /api/v1/chat/conversations
func (h *Handlers) Conversations(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	out, err := h.Service.Conversations(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Conversations fetched successfully", out, nil)
}

// StartConversation POST /api/v1/chat/conversations
func (h *Handlers) StartConversation(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body struct {
		ListingID string `json:"listing_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.ListingID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	listingID, err := uuid.Parse(body.ListingID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for listing_id", 400, nil)
	}

	conv, err := h.Service.StartConversation(c.Context(), listingID, userID)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.SuccessCreated(c, "Conversation ready", conv, nil)
}

// Messages GET /api/v1/chat/conversations/:conversation_id/messages
func (h *Handlers) Messages(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	conversationID, err := uuid.Parse(c.Params("conversation_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for conversation_id", 400, nil)
	}
	msgs, err := h.Service.Messages(c.Context(), conversationID, userID)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Messages fetched successfully", msgs, nil)
}

// SendMessage POST /api/v1/chat/conversations/:conversation_id/messages
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	conversationID, err := uuid.Parse(c.Params("conversation_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for conversation_id", 400, nil)
	}
	var body struct {
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}

	msg, err := h.Service.SendMessage(c.Context(), conversationID, userID, body.Content, body.Attachments)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.SuccessCreated(c, "Message sent", msg, nil)
}

// MarkAsRead POST /api/v1/chat/conversations/:conversation_id/read
func (h *Handlers) MarkAsRead(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	conversationID, err := uuid.Parse(c.Params("conversation_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for conversation_id", 400, nil)
	}
	if err := h.Service.MarkAsRead(c.Context(), conversationID, userID); err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Conversation marked as read", fiber.Map{}, nil)
}

const wsUserKey = "chat_ws_user"

// WebSocket GET /api/v1/chat/ws — live change feed for the session user.
// The upgrade stays on fasthttp; routing it through the net/http adaptor
// cannot work because the adaptor's ResponseWriter is not hijackable.
func (h *Handlers) WebSocket(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return response.Error(c, "Upgrade required", fiber.StatusUpgradeRequired, nil)
	}
	c.Locals(wsUserKey, userID)
	return websocket.New(func(conn *websocket.Conn) {
		h.Hub.ServeConn(conn.Locals(wsUserKey).(uuid.UUID), conn)
	})(c)
}

func (h *Handlers) serviceError(c *fiber.Ctx, err error) error {
	statusMap := map[string]int{
		ErrConversationNotFound.Error(): 404,
		ErrListingNotFound.Error():      404,
		ErrNotParticipant.Error():       403,
		ErrSelfConversation.Error():     400,
		ErrEmptyMessage.Error():         400,
	}
	if code, ok := statusMap[err.Error()]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}
