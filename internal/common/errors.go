// Package common holds sentinel errors and small helpers shared by every
// crosspost component. Match errors with errors.Is.
package common

import "errors"

var (
	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// Input errors: no variants selected, missing credential fields, bad ids.
	ErrValidation = errors.New("validation error")

	// Credential blob could not be decrypted for this owner.
	ErrCredential = errors.New("invalid credentials")

	// External network rejected the request or the publisher failed.
	ErrPlatform = errors.New("platform error")

	// Deployment is missing something the operation needs (vault secret, OAuth app keys).
	ErrConfiguration = errors.New("configuration error")

	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrPublishInProgress = errors.New("publish already in progress")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
