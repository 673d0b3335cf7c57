package exchange

import "errors"

var (
	ErrNotFound        = errors.New("exchange not found")
	ErrForbidden       = errors.New("not a participant of this exchange")
	ErrNotProvider     = errors.New("only the provider can perform this action")
	ErrInvalidState    = errors.New("action not allowed in current exchange state")
	ErrConflict        = errors.New("exchange was modified concurrently")
	ErrOwnListing      = errors.New("cannot request an exchange on your own listing")
	ErrInvalidHours    = errors.New("hours must be positive with at most two decimal places")
	ErrAdjustmentOff   = errors.New("hour adjustment is disabled for this tenant")
	ErrListingNotFound = errors.New("listing not found")
)
