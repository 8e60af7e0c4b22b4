package packages

import (
	"souq-backend/internal/middleware"
	"souq-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// Catalog GET /api/v1/packages/catalog
func (h *Handlers) Catalog(c *fiber.Ctx) error {
	defs, err := h.Service.Catalog(c.Context())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Packages fetched successfully", defs, nil)
}

// MyPackages GET /api/v1/packages/my-packages
func (h *Handlers) MyPackages(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	pkgs, err := h.Service.MyPackages(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Packages fetched successfully", pkgs, nil)
}

// Purchase POST /api/v1/packages/purchase
func (h *Handlers) Purchase(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body struct {
		PackageID string `json:"package_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.PackageID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	packageID, err := uuid.Parse(body.PackageID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for package_id", 400, nil)
	}

	up, err := h.Service.Purchase(c.Context(), userID, packageID)
	if err != nil {
		if err == ErrPackageNotFound {
			return response.Error(c, err.Error(), 404, nil)
		}
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.SuccessCreated(c, "Package purchased successfully", up, nil)
}

// CheckAvailability GET /api/v1/packages/check-availability?package_id=&is_bonus=
func (h *Handlers) CheckAvailability(c *fiber.Ctx) error {
	userID := middleware.ActorID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	rawID := c.Query("package_id")
	if rawID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	userPackageID, err := uuid.Parse(rawID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for package_id", 400, nil)
	}
	isBonus := c.QueryBool("is_bonus", false)

	avail, err := h.Service.CheckAvailability(c.Context(), userID, userPackageID, isBonus)
	if err != nil {
		statusMap := map[string]int{
			ErrPackageNotFound.Error(): 404,
			ErrPackageExpired.Error():  410,
		}
		if code, ok := statusMap[err.Error()]; ok {
			return response.Error(c, err.Error(), code, nil)
		}
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Availability checked", avail, nil)
}
