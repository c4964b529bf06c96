package redeem

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/codekeeper/internal/timex"
)

const (
	MsgUnsupportedAction = "❌ Unsupported action."
	MsgInvalidInput      = "❌ Missing username, hwid or code."
	MsgStoreUnavailable  = "❌ Error reading codes."
	MsgCodeInvalidOrUsed = "❌ Invalid or already used code."
	MsgCodeExpired       = "❌ Code expired."
	MsgConflict          = "⚠️ The code store was busy and nothing was redeemed, please retry."
	MsgPartialGrant      = "❌ Your code was accepted but your account could not be updated. A maintainer has been notified; please do not redeem again."
	MsgOutcomeUnknown    = "⚠️ Your redeem could not be confirmed. If the code was accepted it will be applied to your account automatically; please do not redeem again."
	MsgInternal          = "❌ Internal error, please try again later."
)

// Message renders the reply for the outcome of Redeem.
func Message(g *Grant, err error) string {
	switch {
	case err == nil && g != nil:
		return fmt.Sprintf("✅ Redeem OK for %s — expires: %s", g.Username, timex.DateOnly(g.GrantedExpiry))
	case errors.Is(err, ErrInvalidInput):
		return MsgInvalidInput
	case errors.Is(err, ErrStoreUnavailable):
		return MsgStoreUnavailable
	case errors.Is(err, ErrCodeInvalidOrUsed):
		return MsgCodeInvalidOrUsed
	case errors.Is(err, ErrCodeExpired):
		return MsgCodeExpired
	case errors.Is(err, ErrConflict):
		return MsgConflict
	case errors.Is(err, ErrPartialGrant):
		return MsgPartialGrant
	case errors.Is(err, ErrOutcomeUnknown):
		return MsgOutcomeUnknown
	default:
		return MsgInternal
	}
}
