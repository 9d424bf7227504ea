package auth

import "errors"

// Errors for token handling. Check with errors.Is.
var (
	// ErrTokenInvalid indicates the token failed signature, expiry or
	// shape validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrForbidden indicates the token is valid but its role does not
	// permit the operation.
	ErrForbidden = errors.New("auth: forbidden")
)
