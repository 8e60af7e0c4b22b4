package packages

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"souq-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPackagesApp(t *testing.T, userID uuid.UUID) (*fiber.App, *gorm.DB) {
	s, db := setupPackagesTest(t)
	h := &Handlers{Service: s}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != uuid.Nil {
			c.Locals("user", map[string]interface{}{"user_id": userID.String()})
		}
		return c.Next()
	})
	app.Get("/api/v1/packages/check-availability", h.CheckAvailability)
	app.Get("/api/v1/packages/my-packages", h.MyPackages)
	return app, db
}

func TestCheckAvailabilityHandler_Unauthenticated(t *testing.T) {
	app, _ := newPackagesApp(t, uuid.Nil)
	req := httptest.NewRequest("GET", "/api/v1/packages/check-availability?package_id="+uuid.New().String(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCheckAvailabilityHandler_UnknownPackage(t *testing.T) {
	app, _ := newPackagesApp(t, uuid.New())
	req := httptest.NewRequest("GET", "/api/v1/packages/check-availability?package_id="+uuid.New().String(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCheckAvailabilityHandler_Expired(t *testing.T) {
	userID := uuid.New()
	app, db := newPackagesApp(t, userID)
	up := domain.UserPackage{UserID: userID, PackageID: uuid.New(), ListingsRemaining: 5, Status: domain.PackageStatusActive, ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(&up).Error)

	req := httptest.NewRequest("GET", "/api/v1/packages/check-availability?package_id="+up.UserPackageID.String(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
}

// An exhausted package is a 200 with available=false, not an error status.
func TestCheckAvailabilityHandler_ExhaustedIsOK(t *testing.T) {
	userID := uuid.New()
	app, db := newPackagesApp(t, userID)
	up := domain.UserPackage{UserID: userID, PackageID: uuid.New(), ListingsRemaining: 0, Status: domain.PackageStatusActive, ExpiresAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(&up).Error)

	req := httptest.NewRequest("GET", "/api/v1/packages/check-availability?package_id="+up.UserPackageID.String(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Data Availability `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Data.Available)
	assert.Equal(t, 0, out.Data.Count)
}

func TestCheckAvailabilityHandler_BonusQuery(t *testing.T) {
	userID := uuid.New()
	app, db := newPackagesApp(t, userID)
	up := domain.UserPackage{UserID: userID, PackageID: uuid.New(), BonusListingsRemaining: 1, Status: domain.PackageStatusActive, ExpiresAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(&up).Error)

	req := httptest.NewRequest("GET", "/api/v1/packages/check-availability?package_id="+up.UserPackageID.String()+"&is_bonus=true", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Data Availability `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Data.Available)
	assert.Equal(t, 1, out.Data.Count)
}
