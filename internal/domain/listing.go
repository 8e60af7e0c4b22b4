package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringList stores the DB json value as string but marshals to JSON as an
// array so the API sends image paths / contact methods as ["a","b"] not "[\"a\"]".
type StringList string

// NewStringList encodes a slice into the column representation.
func NewStringList(items []string) StringList {
	if len(items) == 0 {
		return StringList("[]")
	}
	bs, _ := json.Marshal(items)
	return StringList(bs)
}

// Items decodes the column value back into a slice.
func (s StringList) Items() []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// MarshalJSON implements json.Marshaler so responses carry a real array.
func (s StringList) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("[]"), nil
	}
	var arr []interface{}
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return []byte("[]"), nil
	}
	return json.Marshal(arr)
}

// UnmarshalJSON implements json.Unmarshaler for reading from request body.
func (s *StringList) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	bs, err := json.Marshal(arr)
	if err != nil {
		return err
	}
	*s = StringList(bs)
	return nil
}

// Scan implements sql.Scanner for reading from DB (json column).
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*s = StringList(v)
		return nil
	case string:
		*s = StringList(v)
		return nil
	default:
		return errors.New("unsupported type for StringList")
	}
}

// Value implements driver.Valuer for writing to DB.
func (s StringList) Value() (driver.Value, error) {
	if s == "" {
		return "[]", nil
	}
	return string(s), nil
}

// Listing is a marketplace post. Created only through the package-consumption
// flow; soft lifecycle via status/is_active.
type Listing struct {
	ListingID      uuid.UUID  `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	Slug           string     `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	SellerID       uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	CategoryID     uuid.UUID  `gorm:"column:category_id;type:uuid;not null;index" json:"category_id"`
	Title          string     `gorm:"column:title;not null" json:"title"`
	TitleAr        string     `gorm:"column:title_ar" json:"title_ar"`
	Description    string     `gorm:"column:description;type:text" json:"description"`
	DescriptionAr  string     `gorm:"column:description_ar;type:text" json:"description_ar"`
	Price          float64    `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	Currency       string     `gorm:"column:currency;type:char(3);not null;default:'AED'" json:"currency"`
	Address        string     `gorm:"column:address" json:"address"`
	Latitude       *float64   `gorm:"column:latitude" json:"latitude"`
	Longitude      *float64   `gorm:"column:longitude" json:"longitude"`
	Images         StringList `gorm:"column:images;type:json" json:"images"`
	ContactMethods StringList `gorm:"column:contact_methods;type:json" json:"contact_methods"`
	Status         string     `gorm:"column:status;type:varchar(20);default:'active'" json:"status"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (Listing) TableName() string {
	return "Listings"
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}

// VehicleDetails is the one-to-one detail row for vehicle listings.
type VehicleDetails struct {
	VehicleDetailID uuid.UUID `gorm:"column:vehicle_detail_id;type:uuid;primaryKey" json:"vehicle_detail_id"`
	ListingID       uuid.UUID `gorm:"column:listing_id;type:uuid;not null;uniqueIndex" json:"listing_id"`
	Brand           string    `gorm:"column:brand;not null" json:"brand"`
	Model           string    `gorm:"column:model" json:"model"`
	Year            int       `gorm:"column:year" json:"year"`
	Mileage         int       `gorm:"column:mileage" json:"mileage"`
	FuelType        string    `gorm:"column:fuel_type;type:varchar(20)" json:"fuel_type"`
	Transmission    string    `gorm:"column:transmission;type:varchar(20)" json:"transmission"`
	Color           string    `gorm:"column:color" json:"color"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (VehicleDetails) TableName() string {
	return "VehicleDetails"
}

// BeforeCreate enforces the brand requirement at the model boundary so a bad
// detail insert fails inside the creation transaction.
func (v *VehicleDetails) BeforeCreate(tx *gorm.DB) error {
	if v.VehicleDetailID == uuid.Nil {
		v.VehicleDetailID = uuid.New()
	}
	if v.Brand == "" {
		return errors.New("brand is required")
	}
	return nil
}

// PropertyDetails is the one-to-one detail row for property listings.
type PropertyDetails struct {
	PropertyDetailID uuid.UUID `gorm:"column:property_detail_id;type:uuid;primaryKey" json:"property_detail_id"`
	ListingID        uuid.UUID `gorm:"column:listing_id;type:uuid;not null;uniqueIndex" json:"listing_id"`
	PropertyType     string    `gorm:"column:property_type;not null" json:"property_type"`
	Bedrooms         int       `gorm:"column:bedrooms" json:"bedrooms"`
	Bathrooms        int       `gorm:"column:bathrooms" json:"bathrooms"`
	AreaSqm          float64   `gorm:"column:area_sqm;type:decimal(12,2)" json:"area_sqm"`
	Furnished        bool      `gorm:"column:furnished;not null;default:false" json:"furnished"`
	FloorNumber      *int      `gorm:"column:floor_number" json:"floor_number"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (PropertyDetails) TableName() string {
	return "PropertyDetails"
}

func (p *PropertyDetails) BeforeCreate(tx *gorm.DB) error {
	if p.PropertyDetailID == uuid.Nil {
		p.PropertyDetailID = uuid.New()
	}
	if p.PropertyType == "" {
		return errors.New("property_type is required")
	}
	return nil
}
