package courier

import "errors"

// Error taxonomy for the courier core. Every failure leaves the store
// untouched; callers match with errors.Is since most errors come back
// wrapped with context.
var (
	// ErrValidation covers malformed input: length limits, empty
	// content, zero address, self-reference.
	ErrValidation = errors.New("validation failed")

	// ErrNotActive means the address has no active profile.
	ErrNotActive = errors.New("profile not active")

	// ErrForbidden covers authorization failures, including delivery
	// attempts between blocked participants.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// State-conflict errors on idempotency-sensitive operations.
	ErrAlreadyDeleted  = errors.New("message already deleted")
	ErrAlreadyReported = errors.New("message already reported")
	ErrNotBlocked      = errors.New("not blocked")
	ErrNotFollowing    = errors.New("not following")
	ErrInvalidTarget   = errors.New("invalid target")

	// ErrEmptyVault means a withdrawal found nothing to withdraw.
	ErrEmptyVault = errors.New("vault is empty")
)
