package listings

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"souq-backend/internal/categories"
	"souq-backend/internal/middleware"
	"souq-backend/internal/packages"
	"souq-backend/internal/pkg/response"
	"souq-backend/internal/uploads"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// CreateListing POST /api/v1/listings/create-listing (multipart form).
// Text fields come as form values, the category-specific sub-object as a JSON
// field ("vehicle" / "property"), images as file parts named "images".
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	sellerID := middleware.ActorID(c)
	if sellerID == uuid.Nil {
		return response.Unauthorized(c, ErrUnauthenticated.Error())
	}

	userPackageID, err := uuid.Parse(c.FormValue("package_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for package_id", 400, nil)
	}
	title := strings.TrimSpace(c.FormValue("title"))
	categorySlug := c.FormValue("category_slug")
	if title == "" || categorySlug == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	price, err := strconv.ParseFloat(c.FormValue("price"), 64)
	if err != nil || price < 0 {
		return response.Error(c, "Invalid price", 400, nil)
	}

	in := CreateListingInput{
		SellerID:       sellerID,
		UserPackageID:  userPackageID,
		IsBonusListing: c.FormValue("is_bonus_listing") == "true",
		CategorySlug:   categorySlug,
		Title:          title,
		TitleAr:        c.FormValue("title_ar"),
		Description:    c.FormValue("description"),
		DescriptionAr:  c.FormValue("description_ar"),
		Price:          price,
		Currency:       c.FormValue("currency"),
		Address:        c.FormValue("address"),
		ContactMethods: splitCSV(c.FormValue("contact_methods")),
	}
	if v := c.FormValue("latitude"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			in.Latitude = &lat
		}
	}
	if v := c.FormValue("longitude"); v != "" {
		if lng, err := strconv.ParseFloat(v, 64); err == nil {
			in.Longitude = &lng
		}
	}
	if raw := c.FormValue("vehicle"); raw != "" {
		var vi VehicleInput
		if err := json.Unmarshal([]byte(raw), &vi); err != nil {
			return response.Error(c, "Invalid vehicle details", 400, nil)
		}
		in.Vehicle = &vi
	}
	if raw := c.FormValue("property"); raw != "" {
		var pi PropertyInput
		if err := json.Unmarshal([]byte(raw), &pi); err != nil {
			return response.Error(c, "Invalid property details", 400, nil)
		}
		in.Property = &pi
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["images"] {
			f, err := fh.Open()
			if err != nil {
				return response.Error(c, "Failed to read image upload", 400, nil)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return response.Error(c, "Failed to read image upload", 400, nil)
			}
			in.Images = append(in.Images, uploads.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}

	slug, err := h.Service.CreateListing(c.Context(), in)
	if err != nil {
		statusMap := map[string]int{
			ErrUnauthenticated.Error():              401,
			packages.ErrPackageNotFound.Error():     404,
			packages.ErrPackageExpired.Error():      410,
			packages.ErrNoAvailableListings.Error(): 409,
			categories.ErrCategoryNotFound.Error():  404,
		}
		if code, ok := statusMap[err.Error()]; ok {
			return response.Error(c, err.Error(), code, nil)
		}
		if strings.Contains(err.Error(), "Failed to upload listing images") {
			return response.Error(c, err.Error(), 502, nil)
		}
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.SuccessCreated(c, "Listing created successfully", fiber.Map{"slug": slug}, nil)
}

// GetAllActiveListings GET /api/v1/listings/get-all-active-listings
func (h *Handlers) GetAllActiveListings(c *fiber.Ctx) error {
	out, err := h.Service.GetAllActiveListings(c.Context())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Listings fetched successfully", out, nil)
}

// GetListingBySlug GET /api/v1/listings/get-listing/:slug
func (h *Handlers) GetListingBySlug(c *fiber.Ctx) error {
	listing, details, err := h.Service.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		if err == ErrListingNotFound {
			return response.Error(c, err.Error(), 404, nil)
		}
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Listing fetched successfully", fiber.Map{
		"listing": listing,
		"details": details,
	}, nil)
}

// GetMyListings GET /api/v1/listings/get-my-listings
func (h *Handlers) GetMyListings(c *fiber.Ctx) error {
	out, err := h.Service.GetMyListings(c.Context(), middleware.ActorID(c))
	if err != nil {
		if err == ErrUnauthenticated {
			return response.Unauthorized(c, err.Error())
		}
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Listings fetched successfully", out, nil)
}

// EditListing PUT /api/v1/listings/edit-listing
func (h *Handlers) EditListing(c *fiber.Ctx) error {
	var body struct {
		Slug           string   `json:"slug"`
		Title          *string  `json:"title"`
		TitleAr        *string  `json:"title_ar"`
		Description    *string  `json:"description"`
		DescriptionAr  *string  `json:"description_ar"`
		Price          *float64 `json:"price"`
		Address        *string  `json:"address"`
		ContactMethods []string `json:"contact_methods"`
	}
	if err := c.BodyParser(&body); err != nil || body.Slug == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	listing, err := h.Service.EditListing(c.Context(), middleware.ActorID(c), EditListingInput{
		Slug:           body.Slug,
		Title:          body.Title,
		TitleAr:        body.TitleAr,
		Description:    body.Description,
		DescriptionAr:  body.DescriptionAr,
		Price:          body.Price,
		Address:        body.Address,
		ContactMethods: body.ContactMethods,
	})
	if err != nil {
		return h.mutationError(c, err)
	}
	return response.Success(c, "Listing updated successfully", listing, nil)
}

// DeactivateListing POST /api/v1/listings/deactivate-listing
func (h *Handlers) DeactivateListing(c *fiber.Ctx) error {
	var body struct {
		Slug string `json:"slug"`
	}
	if err := c.BodyParser(&body); err != nil || body.Slug == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if err := h.Service.DeactivateListing(c.Context(), middleware.ActorID(c), body.Slug); err != nil {
		return h.mutationError(c, err)
	}
	return response.Success(c, "Listing deactivated successfully", fiber.Map{}, nil)
}

// GetListingEvents GET /api/v1/listings/get-listing-events/:slug
func (h *Handlers) GetListingEvents(c *fiber.Ctx) error {
	events, err := h.Service.ListingEvents(c.Context(), middleware.ActorID(c), c.Params("slug"))
	if err != nil {
		return h.mutationError(c, err)
	}
	return response.Success(c, "Listing events fetched successfully", events, nil)
}

func (h *Handlers) mutationError(c *fiber.Ctx, err error) error {
	statusMap := map[string]int{
		ErrUnauthenticated.Error(): 401,
		ErrListingNotFound.Error(): 404,
		ErrNotOwner.Error():        403,
	}
	if code, ok := statusMap[err.Error()]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
