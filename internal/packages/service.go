package packages

import (
	"context"
	"time"

	"souq-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Catalog returns the purchasable package definitions.
func (s *Service) Catalog(ctx context.Context) ([]domain.Package, error) {
	var defs []domain.Package
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("price ASC").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

// MyPackages returns the caller's packages that can still pay for a listing:
// active, unexpired, and with either counter above zero.
func (s *Service) MyPackages(ctx context.Context, userID uuid.UUID) ([]domain.UserPackage, error) {
	var pkgs []domain.UserPackage
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, domain.PackageStatusActive, time.Now()).
		Where("listings_remaining > 0 OR bonus_listings_remaining > 0").
		Order("expires_at ASC").
		Find(&pkgs).Error
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

// Purchase grants a UserPackage from a package definition. Payment shaping is
// an external collaborator; this only records the grant.
func (s *Service) Purchase(ctx context.Context, userID, packageID uuid.UUID) (*domain.UserPackage, error) {
	var def domain.Package
	if err := s.DB.WithContext(ctx).Where("package_id = ? AND is_active = ?", packageID, true).First(&def).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	up := &domain.UserPackage{
		UserID:                 userID,
		PackageID:              def.PackageID,
		ListingsRemaining:      def.ListingsCount,
		BonusListingsRemaining: def.BonusListingsCount,
		Status:                 domain.PackageStatusActive,
		ExpiresAt:              time.Now().AddDate(0, 0, def.ValidityDays),
	}
	if err := s.DB.WithContext(ctx).Create(up).Error; err != nil {
		return nil, err
	}
	return up, nil
}

// CheckAvailability loads the package and applies the shared rule. Pure read.
func (s *Service) CheckAvailability(ctx context.Context, userID, userPackageID uuid.UUID, isBonus bool) (Availability, error) {
	pkg, err := s.Load(ctx, userPackageID)
	if err != nil {
		return Availability{}, err
	}
	return Evaluate(pkg, userID, isBonus, time.Now())
}

// Load fetches a UserPackage row by id. Ownership is checked by Evaluate,
// not here, so both call sites go through the same gate.
func (s *Service) Load(ctx context.Context, userPackageID uuid.UUID) (*domain.UserPackage, error) {
	var pkg domain.UserPackage
	if err := s.DB.WithContext(ctx).Where("user_package_id = ?", userPackageID).First(&pkg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}
