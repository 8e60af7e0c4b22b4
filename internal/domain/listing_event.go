package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing lifecycle event types.
const (
	ListingEventCreated     = "created"
	ListingEventEdited      = "edited"
	ListingEventDeactivated = "deactivated"
)

// ListingEvent is an append-only audit row for a listing's lifecycle.
type ListingEvent struct {
	ListingEventID uuid.UUID      `gorm:"column:listing_event_id;type:uuid;primaryKey" json:"listing_event_id"`
	ListingID      uuid.UUID      `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	ActorID        uuid.UUID      `gorm:"column:actor_id;type:uuid;not null" json:"actor_id"`
	EventType      string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData      datatypes.JSON `gorm:"column:event_data;type:jsonb" json:"event_data"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (ListingEvent) TableName() string {
	return "ListingEvents"
}

func (e *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ListingEventID == uuid.Nil {
		e.ListingEventID = uuid.New()
	}
	return nil
}
