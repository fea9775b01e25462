package utils

import "errors"

// Common application errors used across services.
var (
	ErrInvalidCredentials   = errors.New("INVALID_CREDENTIALS")
	ErrUnauthorized         = errors.New("UNAUTHORIZED")
	ErrInvalidTwoFactorCode = errors.New("INVALID_TWO_FACTOR_CODE")
	ErrUnauthenticated      = errors.New("UNAUTHENTICATED")
	ErrSessionExpired       = errors.New("SESSION_EXPIRED")
	ErrForbidden            = errors.New("FORBIDDEN")
	ErrTooManyAttempts      = errors.New("TOO_MANY_ATTEMPTS")
	ErrServiceUnavailable   = errors.New("SERVICE_UNAVAILABLE")
)
