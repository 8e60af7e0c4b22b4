package packages

import "errors"

// Error messages double as the API-facing strings, mapped to status codes in
// the handlers (same convention as the rest of the service layer).
var (
	ErrPackageNotFound     = errors.New("Package not found")
	ErrPackageExpired      = errors.New("Package has expired")
	ErrNoAvailableListings = errors.New("No available listings in package")
)
