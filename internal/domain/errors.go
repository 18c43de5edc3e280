package domain

import "errors"

// Sentinel errors for the engine. The WS boundary maps these onto
// structured error events; everything else surfaces as ErrOperationFailed.
var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrNotFound        = errors.New("not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrOperationFailed = errors.New("operation failed")
)
