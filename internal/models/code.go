// Package models defines the JSON documents kept in the codes and users
// repositories. Every document accepts the older layouts on read and is
// always written back in the canonical one.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NormalizeCode folds a code for case-insensitive comparison.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CodeRecord is one redeemable code in the active codes document.
type CodeRecord struct {
	Code string `json:"code"`
	Used bool   `json:"used"`
	// Expiry, when set, is the absolute end of any grant made from this code.
	Expiry *time.Time `json:"expiry,omitempty"`
	// DurationDays is used when Expiry is unset; zero means the default.
	DurationDays int `json:"duration_days,omitempty"`

	Extra Extra `json:"-"`
}

type codeRecordJSON CodeRecord

// codeRecordWire reads the expiry and duration spellings of hand-written
// code lists.
type codeRecordWire struct {
	codeRecordJSON
	Expiry       looseTime `json:"expiry"`
	DurationDays looseDays `json:"duration_days"`
}

func (c *CodeRecord) UnmarshalJSON(b []byte) error {
	var w codeRecordWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("code record: %w", err)
	}
	raw := w.codeRecordJSON
	raw.Expiry = w.Expiry.t
	raw.DurationDays = int(w.DurationDays)

	extra, err := splitExtra(b, raw)
	if err != nil {
		return err
	}
	*c = CodeRecord(raw)
	c.Extra = extra
	return nil
}

func (c CodeRecord) MarshalJSON() ([]byte, error) {
	return mergeExtra(codeRecordJSON(c), c.Extra)
}

// Matches reports whether the record holds code, ignoring case and
// surrounding whitespace.
func (c *CodeRecord) Matches(code string) bool {
	return NormalizeCode(c.Code) == NormalizeCode(code)
}

// GrantExpiry computes when a grant made at now from this code ends.
// ok is false when the code carries an absolute expiry that has already
// passed.
func (c *CodeRecord) GrantExpiry(now time.Time, defaultDays int) (expiry time.Time, ok bool) {
	if c.Expiry != nil {
		if c.Expiry.Before(now) {
			return *c.Expiry, false
		}
		return *c.Expiry, true
	}

	days := c.DurationDays
	if days <= 0 {
		days = defaultDays
	}
	return now.Add(time.Duration(days) * 24 * time.Hour), true
}

// Consume turns the record into its used form.
func (c *CodeRecord) Consume(username, hwidHash string, usedAt, grantedExpiry time.Time) UsedCode {
	return UsedCode{
		Code:          c.Code,
		Used:          true,
		Expiry:        c.Expiry,
		DurationDays:  c.DurationDays,
		UsedBy:        username,
		UsedByHWID:    hwidHash,
		UsedAt:        timePtr(usedAt),
		GrantedExpiry: timePtr(grantedExpiry),
		Extra:         c.Extra,
	}
}

// UsedCode is a consumed code as kept in the expired codes document.
type UsedCode struct {
	Code          string     `json:"code"`
	Used          bool       `json:"used"`
	Expiry        *time.Time `json:"expiry,omitempty"`
	DurationDays  int        `json:"duration_days,omitempty"`
	UsedBy        string     `json:"used_by,omitempty"`
	UsedByHWID    string     `json:"used_by_hwid,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	GrantedExpiry *time.Time `json:"granted_expiry,omitempty"`
	// MovedAt is set when the sweep mirrored the code after its user expired.
	MovedAt *time.Time `json:"moved_at,omitempty"`

	Extra Extra `json:"-"`
}

type usedCodeJSON UsedCode

type usedCodeWire struct {
	usedCodeJSON
	Expiry        looseTime `json:"expiry"`
	DurationDays  looseDays `json:"duration_days"`
	UsedAt        looseTime `json:"used_at"`
	GrantedExpiry looseTime `json:"granted_expiry"`
	MovedAt       looseTime `json:"moved_at"`
	// older sweeps wrote movedAt
	LegacyMovedAt looseTime `json:"movedAt"`
}

func (u *UsedCode) UnmarshalJSON(b []byte) error {
	var w usedCodeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("used code record: %w", err)
	}
	raw := w.usedCodeJSON
	raw.Expiry = w.Expiry.t
	raw.DurationDays = int(w.DurationDays)
	raw.UsedAt = w.UsedAt.t
	raw.GrantedExpiry = w.GrantedExpiry.t
	raw.MovedAt = w.MovedAt.t
	if raw.MovedAt == nil {
		raw.MovedAt = w.LegacyMovedAt.t
	}

	extra, err := splitExtra(b, raw, "movedAt")
	if err != nil {
		return err
	}
	*u = UsedCode(raw)
	u.Extra = extra
	return nil
}

func (u UsedCode) MarshalJSON() ([]byte, error) {
	return mergeExtra(usedCodeJSON(u), u.Extra)
}

// CodesDocument is active_codes.json.
type CodesDocument struct {
	Codes []CodeRecord
}

func (d *CodesDocument) UnmarshalJSON(b []byte) error {
	list, err := decodeList[CodeRecord](b, "codes")
	d.Codes = list
	return err
}

func (d CodesDocument) MarshalJSON() ([]byte, error) {
	return encodeList("codes", d.Codes)
}

// FindUnused returns the index of the first unused record matching code, or
// -1.
func (d *CodesDocument) FindUnused(code string) int {
	for i := range d.Codes {
		if !d.Codes[i].Used && d.Codes[i].Matches(code) {
			return i
		}
	}
	return -1
}

// Remove deletes the record at i, keeping order.
func (d *CodesDocument) Remove(i int) {
	d.Codes = append(d.Codes[:i:i], d.Codes[i+1:]...)
}

// ExpiredCodesDocument is expired_codes.json: every code that has been
// consumed or mirrored by the sweep.
type ExpiredCodesDocument struct {
	Expired []UsedCode
}

func (d *ExpiredCodesDocument) UnmarshalJSON(b []byte) error {
	list, err := decodeList[UsedCode](b, "expired")
	d.Expired = list
	return err
}

func (d ExpiredCodesDocument) MarshalJSON() ([]byte, error) {
	return encodeList("expired", d.Expired)
}

// Find returns the entry for code, or nil.
func (d *ExpiredCodesDocument) Find(code string) *UsedCode {
	norm := NormalizeCode(code)
	for i := range d.Expired {
		if NormalizeCode(d.Expired[i].Code) == norm {
			return &d.Expired[i]
		}
	}
	return nil
}

// Contains reports whether code is already listed.
func (d *ExpiredCodesDocument) Contains(code string) bool {
	return d.Find(code) != nil
}

// Add appends u unless the code is already listed. It reports whether u was
// added.
func (d *ExpiredCodesDocument) Add(u UsedCode) bool {
	if d.Contains(u.Code) {
		return false
	}
	d.Expired = append(d.Expired, u)
	return true
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
