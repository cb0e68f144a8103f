package remote

import "errors"

var (
	// ErrUnauthorized is returned when the backend rejects the bearer token
	ErrUnauthorized = errors.New("remote cart: unauthorized")

	// ErrRemoteStatus is returned for any other non-2xx response
	ErrRemoteStatus = errors.New("remote cart: unexpected status")

	// ErrNetworkError is returned when the request never got a response
	ErrNetworkError = errors.New("remote cart: network error")

	// ErrInvalidResponse is returned when the cart payload cannot be read
	ErrInvalidResponse = errors.New("remote cart: invalid response")
)
