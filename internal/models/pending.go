package models

import "time"

// PendingGrant is the intent recorded before a code is consumed. It is
// removed once the user record has been written; anything left behind is
// replayed by the reconciliation pass.
type PendingGrant struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	HWID          string    `json:"hwid,omitempty"`
	Code          string    `json:"code"`
	RedeemedAt    time.Time `json:"redeemed_at"`
	GrantedExpiry time.Time `json:"granted_expiry"`
}

// Token returns the token the grant would add to the user.
func (p *PendingGrant) Token() Token {
	return Token{Code: p.Code, RedeemedAt: p.RedeemedAt, GrantedExpiry: p.GrantedExpiry}
}

// PendingGrantsDocument is pending_grants.json.
type PendingGrantsDocument struct {
	Pending []PendingGrant
}

func (d *PendingGrantsDocument) UnmarshalJSON(b []byte) error {
	list, err := decodeList[PendingGrant](b, "pending")
	d.Pending = list
	return err
}

func (d PendingGrantsDocument) MarshalJSON() ([]byte, error) {
	return encodeList("pending", d.Pending)
}

// Remove drops the grant with id. It reports whether anything was removed.
func (d *PendingGrantsDocument) Remove(id string) bool {
	for i := range d.Pending {
		if d.Pending[i].ID == id {
			d.Pending = append(d.Pending[:i:i], d.Pending[i+1:]...)
			return true
		}
	}
	return false
}

// Add appends p unless a grant with the same id is already logged.
func (d *PendingGrantsDocument) Add(p PendingGrant) {
	for i := range d.Pending {
		if d.Pending[i].ID == p.ID {
			return
		}
	}
	d.Pending = append(d.Pending, p)
}

// ApplyTo writes the grant into users: the user is created if needed, the
// hwid is adopted only when none is stored, and the token is added once.
// It reports whether users changed.
func (p *PendingGrant) ApplyTo(users *UsersDocument) bool {
	u := users.Upsert(p.Username)
	changed := false
	if u.HWID == "" && p.HWID != "" {
		u.HWID = p.HWID
		changed = true
	}
	if !u.HasToken(p.Code) {
		u.AddToken(p.Token())
		changed = true
	}
	return changed
}
