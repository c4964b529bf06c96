package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Token is one successful redemption held by a user.
type Token struct {
	Code          string    `json:"code"`
	RedeemedAt    time.Time `json:"redeemed_at"`
	GrantedExpiry time.Time `json:"granted_expiry"`
}

type tokenJSON Token

func (t *Token) UnmarshalJSON(b []byte) error {
	var w struct {
		tokenJSON
		RedeemedAt    looseTime `json:"redeemed_at"`
		GrantedExpiry looseTime `json:"granted_expiry"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	*t = Token(w.tokenJSON)
	if w.RedeemedAt.t != nil {
		t.RedeemedAt = *w.RedeemedAt.t
	}
	if w.GrantedExpiry.t != nil {
		t.GrantedExpiry = *w.GrantedExpiry.t
	}
	return nil
}

// UserRecord is one provisioned user in users.json.
type UserRecord struct {
	Username string `json:"username"`
	// HWID is a cryptox hash; legacy plaintext values are left as found.
	HWID        string     `json:"hwid,omitempty"`
	Tokens      []Token    `json:"tokens,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	Revoked     bool       `json:"revoked,omitempty"`

	Extra Extra `json:"-"`
}

type userRecordJSON UserRecord

// userRecordWire adds the spellings written by earlier handlers.
type userRecordWire struct {
	userRecordJSON
	Expiry      looseTime `json:"expiry"`
	ActivatedAt looseTime `json:"activated_at"`

	ExpiryUtc  looseTime `json:"expiryUtc"`
	ExpiryUTC2 looseTime `json:"expiry_utc"`
	Code       *string   `json:"code"`
}

func (u *UserRecord) UnmarshalJSON(b []byte) error {
	var w userRecordWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("user record: %w", err)
	}
	raw := w.userRecordJSON
	raw.ActivatedAt = w.ActivatedAt.t
	raw.Expiry = w.Expiry.t
	if raw.Expiry == nil {
		raw.Expiry = w.ExpiryUtc.t
	}
	if raw.Expiry == nil {
		raw.Expiry = w.ExpiryUTC2.t
	}

	if len(raw.Tokens) == 0 && w.Code != nil && *w.Code != "" {
		tok := Token{Code: *w.Code}
		if raw.Expiry != nil {
			tok.GrantedExpiry = *raw.Expiry
		}
		if raw.ActivatedAt != nil {
			tok.RedeemedAt = *raw.ActivatedAt
		}
		raw.Tokens = []Token{tok}
	}

	extra, err := splitExtra(b, raw, "expiryUtc", "expiry_utc", "code")
	if err != nil {
		return err
	}
	*u = UserRecord(raw)
	u.Extra = extra
	return nil
}

func (u UserRecord) MarshalJSON() ([]byte, error) {
	return mergeExtra(userRecordJSON(u), u.Extra)
}

// SameUser compares usernames case-insensitively.
func SameUser(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// AddToken records a redemption and moves Expiry to the latest granted
// expiry the user holds.
func (u *UserRecord) AddToken(t Token) {
	t.RedeemedAt = t.RedeemedAt.UTC()
	t.GrantedExpiry = t.GrantedExpiry.UTC()
	u.Tokens = append(u.Tokens, t)

	if u.ActivatedAt == nil {
		u.ActivatedAt = timePtr(t.RedeemedAt)
	}
	if u.Expiry == nil || t.GrantedExpiry.After(*u.Expiry) {
		u.Expiry = timePtr(t.GrantedExpiry)
	}
}

// HasToken reports whether code was already granted to the user.
func (u *UserRecord) HasToken(code string) bool {
	for i := range u.Tokens {
		if NormalizeCode(u.Tokens[i].Code) == NormalizeCode(code) {
			return true
		}
	}
	return false
}

// EffectiveExpiry returns Expiry, or the latest token expiry when Expiry is
// unset. nil means the user never expires.
func (u *UserRecord) EffectiveExpiry() *time.Time {
	if u.Expiry != nil {
		return u.Expiry
	}
	var latest *time.Time
	for i := range u.Tokens {
		exp := u.Tokens[i].GrantedExpiry
		if exp.IsZero() {
			continue
		}
		if latest == nil || exp.After(*latest) {
			latest = &exp
		}
	}
	return latest
}

// ExpiredAt reports whether the user's access has ended at now.
func (u *UserRecord) ExpiredAt(now time.Time) bool {
	exp := u.EffectiveExpiry()
	return exp != nil && !exp.After(now)
}

// Codes lists the codes the user has redeemed, in redemption order.
func (u *UserRecord) Codes() []string {
	codes := make([]string, 0, len(u.Tokens))
	for _, t := range u.Tokens {
		if t.Code != "" {
			codes = append(codes, t.Code)
		}
	}
	return codes
}

// UsersDocument is users.json.
type UsersDocument struct {
	Users []UserRecord
}

func (d *UsersDocument) UnmarshalJSON(b []byte) error {
	list, err := decodeList[UserRecord](b, "users")
	d.Users = list
	return err
}

func (d UsersDocument) MarshalJSON() ([]byte, error) {
	return encodeList("users", d.Users)
}

// Find returns the index of username, or -1.
func (d *UsersDocument) Find(username string) int {
	for i := range d.Users {
		if SameUser(d.Users[i].Username, username) {
			return i
		}
	}
	return -1
}

// Upsert returns the record for username, appending a new one when absent.
func (d *UsersDocument) Upsert(username string) *UserRecord {
	if i := d.Find(username); i >= 0 {
		return &d.Users[i]
	}
	d.Users = append(d.Users, UserRecord{Username: strings.TrimSpace(username)})
	return &d.Users[len(d.Users)-1]
}

// Partition splits users into those still active at now and those whose
// expiry is at or before now. Order is preserved in both halves.
func (d *UsersDocument) Partition(now time.Time) (active, expired []UserRecord) {
	for _, u := range d.Users {
		if u.ExpiredAt(now) {
			expired = append(expired, u)
		} else {
			active = append(active, u)
		}
	}
	return active, expired
}

// RevokedRecord is a user moved out of users.json by the sweep.
type RevokedRecord struct {
	User      UserRecord
	RevokedAt time.Time
}

func (r RevokedRecord) MarshalJSON() ([]byte, error) {
	u := r.User
	u.Revoked = true
	extra := Extra{}
	for k, v := range u.Extra {
		extra[k] = v
	}
	at, err := json.Marshal(r.RevokedAt.UTC())
	if err != nil {
		return nil, err
	}
	extra["revoked_at"] = at
	u.Extra = extra
	return u.MarshalJSON()
}

func (r *RevokedRecord) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &r.User); err != nil {
		return err
	}
	if raw, ok := r.User.Extra["revoked_at"]; ok {
		if err := json.Unmarshal(raw, &r.RevokedAt); err != nil {
			return err
		}
		delete(r.User.Extra, "revoked_at")
		if len(r.User.Extra) == 0 {
			r.User.Extra = nil
		}
	}
	return nil
}

// RevokedDocument is revoked.json.
type RevokedDocument struct {
	Revoked []RevokedRecord
}

func (d *RevokedDocument) UnmarshalJSON(b []byte) error {
	list, err := decodeList[RevokedRecord](b, "revoked")
	d.Revoked = list
	return err
}

func (d RevokedDocument) MarshalJSON() ([]byte, error) {
	return encodeList("revoked", d.Revoked)
}
