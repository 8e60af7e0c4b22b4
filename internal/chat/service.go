package chat

import (
	"context"
	"strings"
	"time"

	"souq-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	Events Publisher
}

// ConversationView is a conversation enriched with what the list screen
// needs: counterpart names, listing title, unread count and last message.
type ConversationView struct {
	domain.Conversation
	ListingTitle string          `json:"listing_title"`
	BuyerName    string          `json:"buyer_name"`
	SellerName   string          `json:"seller_name"`
	UnreadCount  int             `json:"unread_count"`
	LastMessage  *domain.Message `json:"last_message"`
}

// Conversations returns the user's conversations sorted descending by
// last_message_at, each with its unread count and last message.
func (s *Service) Conversations(ctx context.Context, userID uuid.UUID) ([]ConversationView, error) {
	var convs []domain.Conversation
	err := s.DB.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	out := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		view := ConversationView{Conversation: conv}

		var listing domain.Listing
		if err := s.DB.WithContext(ctx).Select("title").Where("listing_id = ?", conv.ListingID).First(&listing).Error; err == nil {
			view.ListingTitle = listing.Title
		}
		var buyer, seller domain.User
		if err := s.DB.WithContext(ctx).Select("fullname").Where("user_id = ?", conv.BuyerID).First(&buyer).Error; err == nil {
			view.BuyerName = buyer.Fullname
		}
		if err := s.DB.WithContext(ctx).Select("fullname").Where("user_id = ?", conv.SellerID).First(&seller).Error; err == nil {
			view.SellerName = seller.Fullname
		}

		var unread int64
		if err := s.DB.WithContext(ctx).Model(&domain.Message{}).
			Where("conversation_id = ? AND sender_id != ? AND read_at IS NULL", conv.ConversationID, userID).
			Count(&unread).Error; err != nil {
			return nil, err
		}
		view.UnreadCount = int(unread)

		var last domain.Message
		if err := s.DB.WithContext(ctx).
			Where("conversation_id = ?", conv.ConversationID).
			Order("created_at DESC").
			First(&last).Error; err == nil {
			view.LastMessage = &last
		}

		out = append(out, view)
	}
	return out, nil
}

// StartConversation finds or creates the conversation between the caller
// (buyer) and the listing's seller. A seller cannot open one on their own listing.
func (s *Service) StartConversation(ctx context.Context, listingID, buyerID uuid.UUID) (*domain.Conversation, error) {
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if listing.SellerID == buyerID {
		return nil, ErrSelfConversation
	}

	var conv domain.Conversation
	err := s.DB.WithContext(ctx).
		Where("listing_id = ? AND buyer_id = ?", listingID, buyerID).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	conv = domain.Conversation{
		ListingID:     listingID,
		BuyerID:       buyerID,
		SellerID:      listing.SellerID,
		LastMessageAt: time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	for _, uid := range []uuid.UUID{conv.BuyerID, conv.SellerID} {
		s.publish(ctx, uid, Event{
			Table:          TableConversations,
			Type:           EventInsert,
			ConversationID: conv.ConversationID,
			Conversation:   &conv,
		})
	}
	return &conv, nil
}

// Messages returns a conversation's full message list ascending by created_at.
func (s *Service) Messages(ctx context.Context, conversationID, userID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	var msgs []domain.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage inserts a message and bumps the conversation's recency key in
// the same transaction, then publishes change events to both participants.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string, attachments []string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	conv, err := s.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg := domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    domain.NewStringList(attachments),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{}).
			Where("conversation_id = ?", conversationID).
			Updates(map[string]interface{}{
				"last_message_at":      msg.CreatedAt,
				"last_message_preview": preview(content),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	conv.LastMessageAt = msg.CreatedAt
	conv.LastMessagePreview = preview(content)
	for _, uid := range []uuid.UUID{conv.BuyerID, conv.SellerID} {
		s.publish(ctx, uid, Event{
			Table:          TableMessages,
			Type:           EventInsert,
			ConversationID: conversationID,
			Message:        &msg,
		})
		s.publish(ctx, uid, Event{
			Table:          TableConversations,
			Type:           EventUpdate,
			ConversationID: conversationID,
			Conversation:   conv,
		})
	}
	return &msg, nil
}

// MarkAsRead stamps read_at on every unread message in the conversation not
// sent by the caller and publishes read-receipt updates. Calling it again is
// a no-op: no rows match, nothing is published.
func (s *Service) MarkAsRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	conv, err := s.participantConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	var unread []domain.Message
	if err := s.DB.WithContext(ctx).
		Where("conversation_id = ? AND sender_id != ? AND read_at IS NULL", conversationID, userID).
		Find(&unread).Error; err != nil {
		return err
	}
	if len(unread) == 0 {
		return nil
	}

	now := time.Now()
	ids := make([]uuid.UUID, len(unread))
	for i := range unread {
		ids[i] = unread[i].MessageID
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Message{}).
		Where("message_id IN ?", ids).
		Update("read_at", now).Error; err != nil {
		return err
	}

	for i := range unread {
		unread[i].ReadAt = &now
		for _, uid := range []uuid.UUID{conv.BuyerID, conv.SellerID} {
			s.publish(ctx, uid, Event{
				Table:          TableMessages,
				Type:           EventUpdate,
				ConversationID: conversationID,
				Message:        &unread[i],
			})
		}
	}
	return nil
}

func (s *Service) participantConversation(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := s.DB.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&conv).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if !conv.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return &conv, nil
}

func (s *Service) publish(ctx context.Context, userID uuid.UUID, ev Event) {
	if s.Events != nil {
		s.Events.Publish(ctx, userID, ev)
	}
}

func preview(content string) string {
	r := []rune(strings.TrimSpace(content))
	if len(r) > 120 {
		return string(r[:120])
	}
	return string(r)
}
