package cart

import "errors"

var (
	// ErrUnauthenticated is returned when a mutation is attempted without a session.
	// The session guard has already prompted the user to sign in.
	ErrUnauthenticated = errors.New("cart: sign-in required")

	// ErrSyncFailed wraps a remote failure that was rolled back locally.
	ErrSyncFailed = errors.New("cart: remote update failed")

	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	ErrInvalidItem     = errors.New("cart: item id is required")
)
