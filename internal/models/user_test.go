package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersDocument_RoundTrip(t *testing.T) {
	in := `{"users":[
		{"username":"alice","hwid":"b3:x","tokens":[{"code":"A","redeemed_at":"2026-10-01T00:00:00Z","granted_expiry":"2026-10-31T00:00:00Z"}],
		 "activated_at":"2026-10-01T00:00:00Z","expiry":"2026-10-31T00:00:00Z","discord":"alice#1"},
		{"username":"bob","expiry":"2027-01-01T00:00:00Z"}
	]}`

	var d UsersDocument
	require.NoError(t, json.Unmarshal([]byte(in), &d))
	require.Len(t, d.Users, 2)

	out, err := json.Marshal(d)
	require.NoError(t, err)

	var back UsersDocument
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Empty(t, cmp.Diff(d, back))
	assert.JSONEq(t, in, string(out))
}

func TestUserRecord_LegacyFields(t *testing.T) {
	in := `{"username":"carol","code":"OLD-1","expiryUtc":"2026-01-01T00:00:00Z","activated_at":"2025-12-01T00:00:00Z"}`

	var u UserRecord
	require.NoError(t, json.Unmarshal([]byte(in), &u))

	require.NotNil(t, u.Expiry)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), u.Expiry.UTC())
	require.Len(t, u.Tokens, 1)
	assert.Equal(t, "OLD-1", u.Tokens[0].Code)
	assert.True(t, u.Tokens[0].GrantedExpiry.Equal(*u.Expiry))
	assert.Nil(t, u.Extra, "legacy keys are migrated, not carried")

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "expiryUtc")
}

func TestUserRecord_LegacySnakeExpiry(t *testing.T) {
	var u UserRecord
	require.NoError(t, json.Unmarshal([]byte(`{"username":"d","expiry_utc":"2026-02-01T00:00:00Z"}`), &u))
	require.NotNil(t, u.Expiry)
	assert.Equal(t, time.February, u.Expiry.Month())
}

func TestUserRecord_LegacyBadExpiry(t *testing.T) {
	var u UserRecord
	require.Error(t, json.Unmarshal([]byte(`{"username":"d","expiryUtc":"tomorrow"}`), &u))
}

func TestUserRecord_AddToken(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	u := UserRecord{Username: "alice"}

	u.AddToken(Token{Code: "A", RedeemedAt: t0, GrantedExpiry: t0.AddDate(0, 0, 30)})
	u.AddToken(Token{Code: "B", RedeemedAt: t0.AddDate(0, 0, 1), GrantedExpiry: t0.AddDate(0, 0, 10)})

	require.NotNil(t, u.ActivatedAt)
	assert.True(t, t0.Equal(*u.ActivatedAt))
	assert.True(t, t0.AddDate(0, 0, 30).Equal(*u.Expiry), "expiry never moves backwards")
	assert.Equal(t, []string{"A", "B"}, u.Codes())
	assert.True(t, u.HasToken("b"))
	assert.False(t, u.HasToken("C"))
}

func TestUserRecord_EffectiveExpiry(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	none := UserRecord{Username: "x"}
	assert.Nil(t, none.EffectiveExpiry())
	assert.False(t, none.ExpiredAt(t0))

	fromTokens := UserRecord{Tokens: []Token{{Code: "A", GrantedExpiry: t0}, {Code: "B", GrantedExpiry: t0.Add(time.Hour)}}}
	require.NotNil(t, fromTokens.EffectiveExpiry())
	assert.True(t, t0.Add(time.Hour).Equal(*fromTokens.EffectiveExpiry()))

	assert.True(t, fromTokens.ExpiredAt(t0.Add(time.Hour)), "expiry equal to now counts as expired")
	assert.False(t, fromTokens.ExpiredAt(t0))
}

func TestUsersDocument_FindUpsertPartition(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	d := UsersDocument{Users: []UserRecord{
		{Username: "Alice", Expiry: &past},
		{Username: "bob", Expiry: &future},
		{Username: "carol"},
	}}

	assert.Equal(t, 0, d.Find("alice"))
	assert.Equal(t, -1, d.Find("dave"))

	u := d.Upsert(" dave ")
	assert.Equal(t, "dave", u.Username)
	assert.Len(t, d.Users, 4)
	assert.Same(t, &d.Users[1], d.Upsert("BOB"))

	active, expired := d.Partition(now)
	require.Len(t, expired, 1)
	assert.Equal(t, "Alice", expired[0].Username)
	assert.Len(t, active, 3)
}

func TestRevokedRecord_RoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	r := RevokedRecord{
		User:      UserRecord{Username: "alice", Extra: Extra{"discord": json.RawMessage(`"a#1"`)}},
		RevokedAt: at,
	}

	b, err := json.Marshal(RevokedDocument{Revoked: []RevokedRecord{r}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"revoked_at":"2026-10-16T00:00:00Z"`)
	assert.Contains(t, string(b), `"revoked":true`)
	assert.NotContains(t, r.User.Extra, "revoked_at", "marshal must not mutate the record")

	var back RevokedDocument
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back.Revoked, 1)
	assert.True(t, at.Equal(back.Revoked[0].RevokedAt))
	assert.True(t, back.Revoked[0].User.Revoked)
	assert.Equal(t, json.RawMessage(`"a#1"`), back.Revoked[0].User.Extra["discord"])
}

func TestPendingGrantsDocument_Remove(t *testing.T) {
	d := PendingGrantsDocument{Pending: []PendingGrant{{ID: "1"}, {ID: "2"}}}
	assert.True(t, d.Remove("1"))
	assert.False(t, d.Remove("1"))
	assert.Len(t, d.Pending, 1)

	b, err := json.Marshal(PendingGrantsDocument{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pending":[]}`, string(b))
}
