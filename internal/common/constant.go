package common

// Default document paths inside the codes and users repositories.
const (
	DefaultActiveCodesPath   = "active_codes.json"
	DefaultExpiredCodesPath  = "expired_codes.json"
	DefaultUsersPath         = "users.json"
	DefaultRevokedPath       = "revoked.json"
	DefaultPendingGrantsPath = "pending_grants.json"
)

// DefaultDurationDays is the grant length for codes that carry neither an
// absolute expiry nor duration_days.
const DefaultDurationDays = 30

// DefaultProcessedLabel is attached to an issue once it has been handled.
const DefaultProcessedLabel = "processed"
