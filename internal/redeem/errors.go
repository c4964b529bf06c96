package redeem

import "errors"

// Outcomes other than success. Every error returned by Service.Redeem wraps
// exactly one of these.
var (
	ErrInvalidInput      = errors.New("missing username, hwid or code")
	ErrStoreUnavailable  = errors.New("code store unavailable")
	ErrCodeInvalidOrUsed = errors.New("invalid or already used code")
	ErrCodeExpired       = errors.New("code expired")
	// ErrConflict means another run changed the codes first; nothing was
	// granted and the request can be repeated.
	ErrConflict = errors.New("concurrent update")
	// ErrPartialGrant means the code was consumed but the user record could
	// not be written. The pending grant stays behind for reconciliation.
	ErrPartialGrant = errors.New("code consumed but grant not recorded")
	// ErrOutcomeUnknown means the code consumption write failed without a
	// definite answer from the store, so the code may or may not be
	// consumed. The pending grant stays behind and reconciliation decides.
	ErrOutcomeUnknown = errors.New("code consumption not confirmed")
)
