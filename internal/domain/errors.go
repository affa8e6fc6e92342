package domain

import "errors"

var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("resource conflict")
	ErrInternalError = errors.New("internal server error")
)

// Boundary errors: raised while reading request headers, before any lookup.
var (
	ErrMissingDevice       = errors.New("missing X-Device-Id header")
	ErrInvalidDevice       = errors.New("X-Device-Id must be a UUID")
	ErrMissingRefreshToken = errors.New("missing X-Refresh-Token header")
	ErrInvalidRefreshToken = errors.New("X-Refresh-Token must be a UUID")
)

// Session errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrDeviceMismatch  = errors.New("refresh token was issued to another device")
)

// Credential errors.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("credential expired")
	ErrScopeNotAllowed   = errors.New("credential scope not allowed")
	ErrMissingSigningKey = errors.New("credential signing key is not configured")
)

// Identity errors.
var (
	ErrFederationFailed = errors.New("identity provider rejected the login")
	ErrMissingEmail     = errors.New("identity provider returned no email")
	ErrEmailConflict    = errors.New("email already bound to another account")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrHostNotAllowed   = errors.New("operation not allowed for this account host")
	ErrBadCredentials   = errors.New("invalid username or password")
	ErrInactiveAccount  = errors.New("account email not confirmed")
	ErrAlreadyActive    = errors.New("account already active")
)
