package listings

import (
	"context"
	"errors"
	"testing"
	"time"

	"souq-backend/internal/categories"
	"souq-backend/internal/domain"
	"souq-backend/internal/packages"
	"souq-backend/internal/uploads"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeUploader struct {
	paths []string
	err   error
	calls int
}

func (f *fakeUploader) UploadListingImages(ctx context.Context, ownerID uuid.UUID, files []uploads.File) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.paths, nil
}

type listingFixture struct {
	service  *Service
	db       *gorm.DB
	uploader *fakeUploader
	sellerID uuid.UUID
	vehicles domain.Category
	pkg      domain.Package
	userPkg  domain.UserPackage
}

func setupListingTest(t *testing.T) *listingFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Category{},
		&domain.Listing{},
		&domain.VehicleDetails{},
		&domain.PropertyDetails{},
		&domain.Package{},
		&domain.UserPackage{},
		&domain.PackageListing{},
		&domain.ListingEvent{},
	))

	f := &listingFixture{db: db, uploader: &fakeUploader{paths: []string{"a.jpg", "b.jpg"}}}
	f.sellerID = uuid.New()
	require.NoError(t, db.Create(&domain.User{UserID: f.sellerID, Fullname: "Seller", Email: "seller@example.com", PasswordHash: "x"}).Error)

	f.vehicles = domain.Category{Slug: domain.CategoryVehicles, Name: "Vehicles", NameAr: "مركبات", IsActive: true}
	require.NoError(t, db.Create(&f.vehicles).Error)

	f.pkg = domain.Package{Name: "Basic", ListingsCount: 3, BonusListingsCount: 1, DurationDays: 14, BonusDurationDays: 7, ValidityDays: 30, Price: 50, IsActive: true}
	require.NoError(t, db.Create(&f.pkg).Error)

	f.userPkg = domain.UserPackage{
		UserID:                 f.sellerID,
		PackageID:              f.pkg.PackageID,
		ListingsRemaining:      3,
		BonusListingsRemaining: 1,
		Status:                 domain.PackageStatusActive,
		ExpiresAt:              time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&f.userPkg).Error)

	f.service = &Service{
		DB:         db,
		Categories: &categories.Service{DB: db},
		Uploader:   f.uploader,
	}
	return f
}

func (f *listingFixture) createInput() CreateListingInput {
	return CreateListingInput{
		SellerID:       f.sellerID,
		UserPackageID:  f.userPkg.UserPackageID,
		CategorySlug:   domain.CategoryVehicles,
		Title:          "Toyota Corolla 2020",
		TitleAr:        "تويوتا كورولا",
		Price:          45000,
		Address:        "Dubai, Al Quoz",
		ContactMethods: []string{"phone", "chat"},
		Images:         []uploads.File{{Name: "front.jpg", ContentType: "image/jpeg", Data: []byte("x")}},
		Vehicle:        &VehicleInput{Brand: "Toyota", Model: "Corolla", Year: 2020, Mileage: 30000},
	}
}

func (f *listingFixture) remaining(t *testing.T) (int, int) {
	var up domain.UserPackage
	require.NoError(t, f.db.Where("user_package_id = ?", f.userPkg.UserPackageID).First(&up).Error)
	return up.ListingsRemaining, up.BonusListingsRemaining
}

func TestCreateListing_HappyPath(t *testing.T) {
	f := setupListingTest(t)
	slug, err := f.service.CreateListing(context.Background(), f.createInput())
	require.NoError(t, err)
	require.NotEmpty(t, slug)

	regular, bonus := f.remaining(t)
	assert.Equal(t, 2, regular)
	assert.Equal(t, 1, bonus)

	var listing domain.Listing
	require.NoError(t, f.db.Where("slug = ?", slug).First(&listing).Error)
	assert.Equal(t, "AED", listing.Currency)
	assert.Equal(t, "active", listing.Status)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, listing.Images.Items())

	var usage domain.PackageListing
	require.NoError(t, f.db.Where("listing_id = ?", listing.ListingID).First(&usage).Error)
	assert.False(t, usage.IsBonusListing)
	assert.Equal(t, 14, usage.TotalDays)

	var details domain.VehicleDetails
	require.NoError(t, f.db.Where("listing_id = ?", listing.ListingID).First(&details).Error)
	assert.Equal(t, "Toyota", details.Brand)
}

func TestCreateListing_BonusConsumesBonusCounter(t *testing.T) {
	f := setupListingTest(t)
	in := f.createInput()
	in.IsBonusListing = true

	slug, err := f.service.CreateListing(context.Background(), in)
	require.NoError(t, err)

	regular, bonus := f.remaining(t)
	assert.Equal(t, 3, regular)
	assert.Equal(t, 0, bonus)

	var listing domain.Listing
	require.NoError(t, f.db.Where("slug = ?", slug).First(&listing).Error)
	var usage domain.PackageListing
	require.NoError(t, f.db.Where("listing_id = ?", listing.ListingID).First(&usage).Error)
	assert.True(t, usage.IsBonusListing)
	assert.Equal(t, 21, usage.TotalDays)
}

// With a single allowance left, the second submission must lose: exactly one
// listing exists afterwards and the counter sits at zero, never below.
func TestCreateListing_DoubleSubmitLastAllowance(t *testing.T) {
	f := setupListingTest(t)
	require.NoError(t, f.db.Model(&domain.UserPackage{}).
		Where("user_package_id = ?", f.userPkg.UserPackageID).
		UpdateColumn("listings_remaining", 1).Error)

	_, err := f.service.CreateListing(context.Background(), f.createInput())
	require.NoError(t, err)

	_, err = f.service.CreateListing(context.Background(), f.createInput())
	assert.Equal(t, packages.ErrNoAvailableListings, err)

	var count int64
	require.NoError(t, f.db.Model(&domain.Listing{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	regular, _ := f.remaining(t)
	assert.Equal(t, 0, regular)
}

func TestCreateListing_ExpiredPackage(t *testing.T) {
	f := setupListingTest(t)
	require.NoError(t, f.db.Model(&domain.UserPackage{}).
		Where("user_package_id = ?", f.userPkg.UserPackageID).
		UpdateColumn("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err := f.service.CreateListing(context.Background(), f.createInput())
	assert.Equal(t, packages.ErrPackageExpired, err)
	assert.Equal(t, 0, f.uploader.calls)
}

func TestCreateListing_ForeignPackage(t *testing.T) {
	f := setupListingTest(t)
	in := f.createInput()
	other := domain.UserPackage{UserID: uuid.New(), PackageID: f.pkg.PackageID, ListingsRemaining: 5, Status: domain.PackageStatusActive, ExpiresAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, f.db.Create(&other).Error)
	in.UserPackageID = other.UserPackageID

	_, err := f.service.CreateListing(context.Background(), in)
	assert.Equal(t, packages.ErrPackageNotFound, err)
}

// A failed vehicle-details insert rolls back the whole submission: the quota
// decrement, the listing row and the usage row all disappear together.
func TestCreateListing_DetailFailureRollsBackEverything(t *testing.T) {
	f := setupListingTest(t)
	in := f.createInput()
	in.Vehicle = &VehicleInput{} // missing brand fails the details insert

	_, err := f.service.CreateListing(context.Background(), in)
	require.Error(t, err)

	regular, _ := f.remaining(t)
	assert.Equal(t, 3, regular)
	var listings, usages int64
	require.NoError(t, f.db.Model(&domain.Listing{}).Count(&listings).Error)
	require.NoError(t, f.db.Model(&domain.PackageListing{}).Count(&usages).Error)
	assert.EqualValues(t, 0, listings)
	assert.EqualValues(t, 0, usages)
}

func TestCreateListing_UploadFailureLeavesDatabaseUntouched(t *testing.T) {
	f := setupListingTest(t)
	f.uploader.err = errors.New("storage unavailable")

	_, err := f.service.CreateListing(context.Background(), f.createInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to upload listing images")

	regular, _ := f.remaining(t)
	assert.Equal(t, 3, regular)
	var count int64
	require.NoError(t, f.db.Model(&domain.Listing{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestCreateListing_UnknownCategory(t *testing.T) {
	f := setupListingTest(t)
	in := f.createInput()
	in.CategorySlug = "no-such-category"
	_, err := f.service.CreateListing(context.Background(), in)
	assert.Equal(t, categories.ErrCategoryNotFound, err)
}

func TestEditListing_OwnerOnly(t *testing.T) {
	f := setupListingTest(t)
	slug, err := f.service.CreateListing(context.Background(), f.createInput())
	require.NoError(t, err)

	newTitle := "Toyota Corolla 2020 (reduced)"
	updated, err := f.service.EditListing(context.Background(), f.sellerID, EditListingInput{Slug: slug, Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)

	_, err = f.service.EditListing(context.Background(), uuid.New(), EditListingInput{Slug: slug, Title: &newTitle})
	assert.Equal(t, ErrNotOwner, err)
}

// Deactivation hides the listing; the consumed allowance stays consumed.
func TestDeactivateListing_NoRefund(t *testing.T) {
	f := setupListingTest(t)
	slug, err := f.service.CreateListing(context.Background(), f.createInput())
	require.NoError(t, err)

	require.NoError(t, f.service.DeactivateListing(context.Background(), f.sellerID, slug))

	active, err := f.service.GetAllActiveListings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
	regular, _ := f.remaining(t)
	assert.Equal(t, 2, regular)
}

func TestListingEvents_AuditTrail(t *testing.T) {
	f := setupListingTest(t)
	ctx := context.Background()
	slug, err := f.service.CreateListing(ctx, f.createInput())
	require.NoError(t, err)

	newTitle := "updated"
	_, err = f.service.EditListing(ctx, f.sellerID, EditListingInput{Slug: slug, Title: &newTitle})
	require.NoError(t, err)
	require.NoError(t, f.service.DeactivateListing(ctx, f.sellerID, slug))

	events, err := f.service.ListingEvents(ctx, f.sellerID, slug)
	require.NoError(t, err)
	require.Len(t, events, 3)
	types := []string{events[0].EventType, events[1].EventType, events[2].EventType}
	assert.Contains(t, types, domain.ListingEventCreated)
	assert.Contains(t, types, domain.ListingEventEdited)
	assert.Contains(t, types, domain.ListingEventDeactivated)

	// Only the owner can read the trail.
	_, err = f.service.ListingEvents(ctx, uuid.New(), slug)
	assert.Equal(t, ErrNotOwner, err)
}

func TestGetBySlug_AttachesDetailRow(t *testing.T) {
	f := setupListingTest(t)
	slug, err := f.service.CreateListing(context.Background(), f.createInput())
	require.NoError(t, err)

	listing, details, err := f.service.GetBySlug(context.Background(), slug)
	require.NoError(t, err)
	require.NotNil(t, listing)
	vehicle, ok := details.(*domain.VehicleDetails)
	require.True(t, ok)
	assert.Equal(t, "Toyota", vehicle.Brand)

	_, _, err = f.service.GetBySlug(context.Background(), "missing-slug")
	assert.Equal(t, ErrListingNotFound, err)
}
