// Package common defines shared constants and sentinel errors used across
// the redeem and sweep flows. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Configuration errors.
	ErrorInvalidConfig = errors.New("invalid config")
)
