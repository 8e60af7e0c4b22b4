package packages

import (
	"time"

	"souq-backend/internal/domain"

	"github.com/google/uuid"
)

// Availability is the result of the package availability check.
type Availability struct {
	Available bool `json:"available"`
	Count     int  `json:"count"`
}

// Evaluate is the single source of truth for whether a user package can pay
// for one more listing. The pre-flight check endpoint and the listing-creation
// transaction both call it, so the two paths can never disagree on the rules:
// ownership, active status, expiry, then the relevant counter.
//
// A zero counter is not an error: the contract is {available:false, count:0}.
// Missing/foreign and expired packages are errors because the caller asked
// about a package it cannot use at all.
func Evaluate(pkg *domain.UserPackage, ownerID uuid.UUID, isBonus bool, now time.Time) (Availability, error) {
	if pkg == nil || pkg.UserID != ownerID {
		return Availability{}, ErrPackageNotFound
	}
	if pkg.Status != domain.PackageStatusActive {
		return Availability{}, ErrPackageNotFound
	}
	if pkg.ExpiresAt.Before(now) {
		return Availability{}, ErrPackageExpired
	}
	count := pkg.ListingsRemaining
	if isBonus {
		count = pkg.BonusListingsRemaining
	}
	return Availability{Available: count > 0, Count: count}, nil
}
