package categories

import (
	"context"
	"errors"

	"souq-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrCategoryNotFound = errors.New("Category not found")

type Service struct {
	DB *gorm.DB
}

// Node is a category with its direct children, for the tree endpoint.
type Node struct {
	domain.Category
	Children []Node `json:"children"`
}

// Tree returns active root categories with their active children, ordered by
// sort_order then name.
func (s *Service) Tree(ctx context.Context) ([]Node, error) {
	var all []domain.Category
	if err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&all).Error; err != nil {
		return nil, err
	}

	byParent := make(map[uuid.UUID][]domain.Category)
	var roots []domain.Category
	for _, c := range all {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
		}
	}

	out := make([]Node, 0, len(roots))
	for _, r := range roots {
		node := Node{Category: r, Children: []Node{}}
		for _, ch := range byParent[r.CategoryID] {
			node.Children = append(node.Children, Node{Category: ch, Children: []Node{}})
		}
		out = append(out, node)
	}
	return out, nil
}

// BySlug resolves an active category by its slug.
func (s *Service) BySlug(ctx context.Context, slug string) (*domain.Category, error) {
	var cat domain.Category
	if err := s.DB.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&cat).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &cat, nil
}

// RootSlug walks up the parent chain and returns the root category's slug.
// Listing creation uses it to decide which detail row a category carries.
func (s *Service) RootSlug(ctx context.Context, cat *domain.Category) (string, error) {
	cur := cat
	for cur.ParentID != nil {
		var parent domain.Category
		if err := s.DB.WithContext(ctx).Where("category_id = ?", *cur.ParentID).First(&parent).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return "", ErrCategoryNotFound
			}
			return "", err
		}
		cur = &parent
	}
	return cur.Slug, nil
}
