package categories

import (
	"souq-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Tree GET /api/v1/categories/tree
func (h *Handlers) Tree(c *fiber.Ctx) error {
	tree, err := h.Service.Tree(c.Context())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Categories fetched successfully", tree, nil)
}
