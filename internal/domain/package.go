package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserPackage statuses.
const (
	PackageStatusActive  = "active"
	PackageStatusExpired = "expired"
)

// Package is a purchasable definition: how many regular/bonus listings the
// buyer may post and for how long each stays live.
type Package struct {
	PackageID          uuid.UUID `gorm:"column:package_id;type:uuid;primaryKey" json:"package_id"`
	Name               string    `gorm:"column:name;not null" json:"name"`
	NameAr             string    `gorm:"column:name_ar" json:"name_ar"`
	ListingsCount      int       `gorm:"column:listings_count;not null" json:"listings_count"`
	BonusListingsCount int       `gorm:"column:bonus_listings_count;not null;default:0" json:"bonus_listings_count"`
	DurationDays       int       `gorm:"column:duration_days;not null" json:"duration_days"`
	BonusDurationDays  int       `gorm:"column:bonus_duration_days;not null;default:0" json:"bonus_duration_days"`
	ValidityDays       int       `gorm:"column:validity_days;not null;default:365" json:"validity_days"`
	Price              float64   `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	IsActive           bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (Package) TableName() string {
	return "Packages"
}

func (p *Package) BeforeCreate(tx *gorm.DB) error {
	if p.PackageID == uuid.Nil {
		p.PackageID = uuid.New()
	}
	return nil
}

// UserPackage is one user's purchased instance of a Package with live
// remaining counts. Counters are decremented only inside the listing-creation
// transaction and never go negative.
type UserPackage struct {
	UserPackageID          uuid.UUID `gorm:"column:user_package_id;type:uuid;primaryKey" json:"user_package_id"`
	UserID                 uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	PackageID              uuid.UUID `gorm:"column:package_id;type:uuid;not null" json:"package_id"`
	ListingsRemaining      int       `gorm:"column:listings_remaining;not null;default:0" json:"listings_remaining"`
	BonusListingsRemaining int       `gorm:"column:bonus_listings_remaining;not null;default:0" json:"bonus_listings_remaining"`
	Status                 string    `gorm:"column:status;type:varchar(20);not null;default:'active'" json:"status"`
	ExpiresAt              time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

func (UserPackage) TableName() string {
	return "UserPackages"
}

func (up *UserPackage) BeforeCreate(tx *gorm.DB) error {
	if up.UserPackageID == uuid.Nil {
		up.UserPackageID = uuid.New()
	}
	return nil
}

// PackageListing links a consumed allowance to the listing it paid for.
// Exactly one row exists per created listing.
type PackageListing struct {
	PackageListingID uuid.UUID `gorm:"column:package_listing_id;type:uuid;primaryKey" json:"package_listing_id"`
	UserPackageID    uuid.UUID `gorm:"column:user_package_id;type:uuid;not null;index" json:"user_package_id"`
	ListingID        uuid.UUID `gorm:"column:listing_id;type:uuid;not null;uniqueIndex" json:"listing_id"`
	IsBonusListing   bool      `gorm:"column:is_bonus_listing;not null;default:false" json:"is_bonus_listing"`
	TotalDays        int       `gorm:"column:total_days;not null" json:"total_days"`
	RemainingDays    int       `gorm:"column:remaining_days;not null" json:"remaining_days"`
	ActivatedAt      time.Time `gorm:"column:activated_at;not null" json:"activated_at"`
	ExpiresAt        time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (PackageListing) TableName() string {
	return "PackageListings"
}

func (pl *PackageListing) BeforeCreate(tx *gorm.DB) error {
	if pl.PackageListingID == uuid.Nil {
		pl.PackageListingID = uuid.New()
	}
	return nil
}
