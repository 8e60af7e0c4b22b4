package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Root category slugs that carry a type-specific detail row on listings.
const (
	CategoryVehicles   = "vehicles"
	CategoryProperties = "properties"
)

// Category is one node of the two-level browse tree. Roots have a nil
// ParentID.
type Category struct {
	CategoryID uuid.UUID  `gorm:"column:category_id;type:uuid;primaryKey" json:"category_id"`
	ParentID   *uuid.UUID `gorm:"column:parent_id;type:uuid;index" json:"parent_id"`
	Slug       string     `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Name       string     `gorm:"column:name;not null" json:"name"`
	NameAr     string     `gorm:"column:name_ar;not null" json:"name_ar"`
	SortOrder  int        `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	IsActive   bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (Category) TableName() string {
	return "Categories"
}

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid).
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.CategoryID == uuid.Nil {
		c.CategoryID = uuid.New()
	}
	return nil
}
