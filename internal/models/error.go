package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrAccountNotApproved = errors.New("account is awaiting validation")
	ErrProfileMissing     = errors.New("user profile not found")

	// Request lifecycle errors
	ErrDuplicateRequest  = errors.New("user already has a pending or approved request")
	ErrInvalidTransition = errors.New("request is no longer pending")
	ErrInvalidPIN        = errors.New("verification code not recognised")
	ErrPINExpired        = errors.New("verification code has expired")
	ErrLinkNotConfigured = errors.New("access link not configured")
)
