package listings

import "errors"

var (
	ErrUnauthenticated = errors.New("Not authenticated")
	ErrListingNotFound = errors.New("Listing not found")
	ErrNotOwner        = errors.New("Listing does not belong to user")
)
