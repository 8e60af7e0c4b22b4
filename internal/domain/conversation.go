package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation pairs a buyer and seller over one listing. last_message_at is
// the sole ordering key for the conversation list.
type Conversation struct {
	ConversationID     uuid.UUID `gorm:"column:conversation_id;type:uuid;primaryKey" json:"conversation_id"`
	ListingID          uuid.UUID `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:idx_conv_listing_buyer" json:"listing_id"`
	BuyerID            uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:idx_conv_listing_buyer" json:"buyer_id"`
	SellerID           uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	LastMessageAt      time.Time `gorm:"column:last_message_at;not null;index:idx_conversations_recency,sort:desc" json:"last_message_at"`
	LastMessagePreview string    `gorm:"column:last_message_preview" json:"last_message_preview"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "Conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ConversationID == uuid.Nil {
		c.ConversationID = uuid.New()
	}
	return nil
}

// IsParticipant reports whether the user is the buyer or seller.
func (c *Conversation) IsParticipant(userID uuid.UUID) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// OtherParty returns the participant that is not userID.
func (c *Conversation) OtherParty(userID uuid.UUID) uuid.UUID {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// Message belongs to a conversation. Unread means read_at IS NULL and the
// sender is not the viewer. notified_at stamps the email digest job.
type Message struct {
	MessageID       uuid.UUID  `gorm:"column:message_id;type:uuid;primaryKey" json:"message_id"`
	ConversationID  uuid.UUID  `gorm:"column:conversation_id;type:uuid;not null;index" json:"conversation_id"`
	SenderID        uuid.UUID  `gorm:"column:sender_id;type:uuid;not null;index" json:"sender_id"`
	Content         string     `gorm:"column:content;type:text;not null" json:"content"`
	Attachments     StringList `gorm:"column:attachments;type:json" json:"attachments"`
	IsSystemMessage bool       `gorm:"column:is_system_message;not null;default:false" json:"is_system_message"`
	ReadAt          *time.Time `gorm:"column:read_at" json:"read_at"`
	NotifiedAt      *time.Time `gorm:"column:notified_at" json:"notified_at"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (Message) TableName() string {
	return "Messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.MessageID == uuid.Nil {
		m.MessageID = uuid.New()
	}
	return nil
}

// UnreadBy reports whether the message counts as unread for the viewer.
func (m *Message) UnreadBy(viewerID uuid.UUID) bool {
	return m.ReadAt == nil && m.SenderID != viewerID
}
