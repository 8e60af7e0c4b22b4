package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"souq-backend/internal/categories"
	"souq-backend/internal/domain"
	"souq-backend/internal/packages"
	"souq-backend/internal/uploads"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Uploader abstracts the storage collaborator for testability.
type Uploader interface {
	UploadListingImages(ctx context.Context, ownerID uuid.UUID, files []uploads.File) ([]string, error)
}

type Service struct {
	DB         *gorm.DB
	Categories *categories.Service
	Uploader   Uploader
}

// VehicleInput is the category-specific sub-object for vehicle listings.
type VehicleInput struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	Mileage      int    `json:"mileage"`
	FuelType     string `json:"fuel_type"`
	Transmission string `json:"transmission"`
	Color        string `json:"color"`
}

// PropertyInput is the category-specific sub-object for property listings.
type PropertyInput struct {
	PropertyType string  `json:"property_type"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    int     `json:"bathrooms"`
	AreaSqm      float64 `json:"area_sqm"`
	Furnished    bool    `json:"furnished"`
	FloorNumber  *int    `json:"floor_number"`
}

type CreateListingInput struct {
	SellerID       uuid.UUID
	UserPackageID  uuid.UUID
	IsBonusListing bool
	CategorySlug   string
	Title          string
	TitleAr        string
	Description    string
	DescriptionAr  string
	Price          float64
	Currency       string
	Address        string
	Latitude       *float64
	Longitude      *float64
	ContactMethods []string
	Images         []uploads.File
	Vehicle        *VehicleInput
	Property       *PropertyInput
}

// CreateListing runs the full submission flow and returns the new listing's
// slug. Order: availability gate → category resolve → image upload → one
// transaction covering the conditional quota decrement, the listing row, the
// usage row and the category-specific detail row. The decrement is guarded by
// `remaining > 0` so two concurrent submissions against the same package
// cannot both consume the last allowance; the loser fails with
// ErrNoAvailableListings and nothing it wrote survives.
func (s *Service) CreateListing(ctx context.Context, in CreateListingInput) (string, error) {
	if in.SellerID == uuid.Nil {
		return "", ErrUnauthenticated
	}

	// Pre-flight gate: same rule the check endpoint applies. The transaction
	// below re-enforces the count atomically; this pass surfaces the precise
	// error (not found / expired / exhausted) before any upload happens.
	pkg, err := s.loadPackage(ctx, in.UserPackageID)
	if err != nil {
		return "", err
	}
	avail, err := packages.Evaluate(pkg, in.SellerID, in.IsBonusListing, time.Now())
	if err != nil {
		return "", err
	}
	if !avail.Available {
		return "", packages.ErrNoAvailableListings
	}

	cat, err := s.Categories.BySlug(ctx, in.CategorySlug)
	if err != nil {
		return "", err
	}
	rootSlug, err := s.Categories.RootSlug(ctx, cat)
	if err != nil {
		return "", err
	}

	// Images go to storage before any row is written; an upload failure
	// aborts with the database untouched.
	var imagePaths []string
	if len(in.Images) > 0 {
		imagePaths, err = s.Uploader.UploadListingImages(ctx, in.SellerID, in.Images)
		if err != nil {
			return "", fmt.Errorf("Failed to upload listing images: %w", err)
		}
	}

	var slug string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Atomic conditional decrement of the chosen counter. RowsAffected 0
		// means the package was consumed, expired or revoked since the
		// pre-flight check.
		counter := "listings_remaining"
		if in.IsBonusListing {
			counter = "bonus_listings_remaining"
		}
		res := tx.Model(&domain.UserPackage{}).
			Where("user_package_id = ? AND user_id = ? AND status = ? AND expires_at > ? AND "+counter+" > 0",
				in.UserPackageID, in.SellerID, domain.PackageStatusActive, time.Now()).
			UpdateColumn(counter, gorm.Expr(counter+" - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return packages.ErrNoAvailableListings
		}

		listing := domain.Listing{
			Slug:           newSlug(in.Title),
			SellerID:       in.SellerID,
			CategoryID:     cat.CategoryID,
			Title:          in.Title,
			TitleAr:        in.TitleAr,
			Description:    in.Description,
			DescriptionAr:  in.DescriptionAr,
			Price:          in.Price,
			Currency:       currencyOr(in.Currency),
			Address:        in.Address,
			Latitude:       in.Latitude,
			Longitude:      in.Longitude,
			Images:         domain.NewStringList(imagePaths),
			ContactMethods: domain.NewStringList(in.ContactMethods),
			Status:         "active",
			IsActive:       true,
		}
		if err := tx.Create(&listing).Error; err != nil {
			return fmt.Errorf("Failed to create listing: %w", err)
		}

		var def domain.Package
		if err := tx.Where("package_id = ?", pkg.PackageID).First(&def).Error; err != nil {
			return fmt.Errorf("Failed to load package definition: %w", err)
		}
		durationDays := def.DurationDays
		if in.IsBonusListing {
			durationDays += def.BonusDurationDays
		}
		now := time.Now()
		usage := domain.PackageListing{
			UserPackageID:  pkg.UserPackageID,
			ListingID:      listing.ListingID,
			IsBonusListing: in.IsBonusListing,
			TotalDays:      durationDays,
			RemainingDays:  durationDays,
			ActivatedAt:    now,
			ExpiresAt:      now.AddDate(0, 0, durationDays),
		}
		if err := tx.Create(&usage).Error; err != nil {
			return fmt.Errorf("Failed to create package usage record: %w", err)
		}

		switch rootSlug {
		case domain.CategoryVehicles:
			if in.Vehicle == nil {
				in.Vehicle = &VehicleInput{}
			}
			details := domain.VehicleDetails{
				ListingID:    listing.ListingID,
				Brand:        in.Vehicle.Brand,
				Model:        in.Vehicle.Model,
				Year:         in.Vehicle.Year,
				Mileage:      in.Vehicle.Mileage,
				FuelType:     in.Vehicle.FuelType,
				Transmission: in.Vehicle.Transmission,
				Color:        in.Vehicle.Color,
			}
			if err := tx.Create(&details).Error; err != nil {
				return fmt.Errorf("Failed to create vehicle details: %w", err)
			}
		case domain.CategoryProperties:
			if in.Property == nil {
				in.Property = &PropertyInput{}
			}
			details := domain.PropertyDetails{
				ListingID:    listing.ListingID,
				PropertyType: in.Property.PropertyType,
				Bedrooms:     in.Property.Bedrooms,
				Bathrooms:    in.Property.Bathrooms,
				AreaSqm:      in.Property.AreaSqm,
				Furnished:    in.Property.Furnished,
				FloorNumber:  in.Property.FloorNumber,
			}
			if err := tx.Create(&details).Error; err != nil {
				return fmt.Errorf("Failed to create property details: %w", err)
			}
		}

		recordEvent(tx, listing.ListingID, in.SellerID, domain.ListingEventCreated, map[string]interface{}{
			"user_package_id":  pkg.UserPackageID,
			"is_bonus_listing": in.IsBonusListing,
			"duration_days":    durationDays,
		})

		slug = listing.Slug
		return nil
	})
	if err != nil {
		// Uploaded images are orphaned when the transaction rolls back; they
		// are cheap and a cleanup sweep can reap them, so only log.
		if len(imagePaths) > 0 {
			log.Warn().Int("images", len(imagePaths)).Err(err).Msg("listing creation rolled back after image upload")
		}
		return "", err
	}
	return slug, nil
}

func (s *Service) loadPackage(ctx context.Context, userPackageID uuid.UUID) (*domain.UserPackage, error) {
	var pkg domain.UserPackage
	if err := s.DB.WithContext(ctx).Where("user_package_id = ?", userPackageID).First(&pkg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, packages.ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

// GetAllActiveListings returns active listings, newest first.
func (s *Service) GetAllActiveListings(ctx context.Context) ([]domain.Listing, error) {
	var out []domain.Listing
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND is_active = ?", "active", true).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetBySlug returns one listing with its category detail row attached.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*domain.Listing, interface{}, error) {
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("slug = ?", slug).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrListingNotFound
		}
		return nil, nil, err
	}

	var vehicle domain.VehicleDetails
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listing.ListingID).First(&vehicle).Error; err == nil {
		return &listing, &vehicle, nil
	}
	var property domain.PropertyDetails
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listing.ListingID).First(&property).Error; err == nil {
		return &listing, &property, nil
	}
	return &listing, nil, nil
}

// GetMyListings returns the seller's own listings, newest first.
func (s *Service) GetMyListings(ctx context.Context, sellerID uuid.UUID) ([]domain.Listing, error) {
	if sellerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	var out []domain.Listing
	if err := s.DB.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type EditListingInput struct {
	Slug           string
	Title          *string
	TitleAr        *string
	Description    *string
	DescriptionAr  *string
	Price          *float64
	Address        *string
	ContactMethods []string
}

// EditListing updates mutable fields on a listing owned by the caller.
func (s *Service) EditListing(ctx context.Context, sellerID uuid.UUID, in EditListingInput) (*domain.Listing, error) {
	listing, err := s.ownedBySlug(ctx, sellerID, in.Slug)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		listing.Title = *in.Title
	}
	if in.TitleAr != nil {
		listing.TitleAr = *in.TitleAr
	}
	if in.Description != nil {
		listing.Description = *in.Description
	}
	if in.DescriptionAr != nil {
		listing.DescriptionAr = *in.DescriptionAr
	}
	if in.Price != nil {
		listing.Price = *in.Price
	}
	if in.Address != nil {
		listing.Address = *in.Address
	}
	if in.ContactMethods != nil {
		listing.ContactMethods = domain.NewStringList(in.ContactMethods)
	}
	if err := s.DB.WithContext(ctx).Save(listing).Error; err != nil {
		return nil, err
	}
	recordEvent(s.DB.WithContext(ctx), listing.ListingID, sellerID, domain.ListingEventEdited, nil)
	return listing, nil
}

// DeactivateListing soft-closes a listing owned by the caller. The consumed
// allowance is not refunded.
func (s *Service) DeactivateListing(ctx context.Context, sellerID uuid.UUID, slug string) error {
	listing, err := s.ownedBySlug(ctx, sellerID, slug)
	if err != nil {
		return err
	}
	listing.Status = "inactive"
	listing.IsActive = false
	if err := s.DB.WithContext(ctx).Save(listing).Error; err != nil {
		return err
	}
	recordEvent(s.DB.WithContext(ctx), listing.ListingID, sellerID, domain.ListingEventDeactivated, nil)
	return nil
}

// ListingEvents returns the audit trail for a listing owned by the caller,
// newest first.
func (s *Service) ListingEvents(ctx context.Context, sellerID uuid.UUID, slug string) ([]domain.ListingEvent, error) {
	listing, err := s.ownedBySlug(ctx, sellerID, slug)
	if err != nil {
		return nil, err
	}
	var events []domain.ListingEvent
	if err := s.DB.WithContext(ctx).
		Where("listing_id = ?", listing.ListingID).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// recordEvent appends an audit row. Failures are logged, never surfaced: the
// audit trail does not get to break the operation it describes.
func recordEvent(db *gorm.DB, listingID, actorID uuid.UUID, eventType string, data map[string]interface{}) {
	payload := []byte("{}")
	if data != nil {
		if encoded, err := json.Marshal(data); err == nil {
			payload = encoded
		}
	}
	ev := domain.ListingEvent{
		ListingID: listingID,
		ActorID:   actorID,
		EventType: eventType,
		EventData: datatypes.JSON(payload),
	}
	if err := db.Create(&ev).Error; err != nil {
		log.Warn().Str("listing_id", listingID.String()).Str("event", eventType).Err(err).Msg("listing event not recorded")
	}
}

func (s *Service) ownedBySlug(ctx context.Context, sellerID uuid.UUID, slug string) (*domain.Listing, error) {
	if sellerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("slug = ?", slug).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, ErrNotOwner
	}
	return &listing, nil
}

func currencyOr(c string) string {
	if c == "" {
		return "AED"
	}
	return strings.ToUpper(c)
}

// newSlug builds a URL slug from the title plus a short random suffix so
// identical titles never collide.
func newSlug(title string) string {
	base := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := true
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "listing"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return slug + "-" + uuid.New().String()[:8]
}
