package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/codekeeper/internal/config"
	"github.com/dmitrijs2005/codekeeper/internal/docstore"
	"github.com/dmitrijs2005/codekeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	layout  = config.DefaultLayout()
	testNow = time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)
)

type hookedStore struct {
	*docstore.MemoryStore
	beforePut func(loc docstore.Location)
	failPut   map[docstore.Location]error
}

func (s *hookedStore) Put(ctx context.Context, loc docstore.Location, data []byte, version, message string) (string, error) {
	if s.beforePut != nil {
		s.beforePut(loc)
	}
	if err, ok := s.failPut[loc]; ok {
		return "", err
	}
	return s.MemoryStore.Put(ctx, loc, data, version, message)
}

func newService(store docstore.Store) *Service {
	return NewService(store, layout,
		WithClock(func() time.Time { return testNow }),
		WithBackoff(docstore.NewBackoff(time.Millisecond, 2)),
	)
}

func load[T any](t *testing.T, s docstore.Store, loc docstore.Location) T {
	t.Helper()
	d, err := docstore.Load[T](context.Background(), s, loc, false)
	require.NoError(t, err)
	return d.Value
}

const twoUsers = `{"users":[
  {"username":"alice","hwid":"b3:a","tokens":[{"code":"ABC-123","redeemed_at":"2026-09-15T03:00:00Z","granted_expiry":"2026-10-15T03:00:00Z"}],
   "activated_at":"2026-09-15T03:00:00Z","expiry":"2026-10-15T03:00:00Z","discord":"alice#1"},
  {"username":"bob","tokens":[{"code":"B-1","redeemed_at":"2026-10-01T00:00:00Z","granted_expiry":"2026-10-31T00:00:00Z"}],
   "expiry":"2026-10-31T00:00:00Z"}
]}`

func TestSweep_MovesUserExpiredYesterday(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Set(layout.Users, []byte(twoUsers))

	res, err := newService(mem).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, res.Moved)
	assert.Equal(t, 1, res.CodesMirrored)

	users := load[models.UsersDocument](t, mem, layout.Users)
	require.Len(t, users.Users, 1)
	assert.Equal(t, "bob", users.Users[0].Username)

	revoked := load[models.RevokedDocument](t, mem, layout.Revoked)
	require.Len(t, revoked.Revoked, 1)
	r := revoked.Revoked[0]
	assert.Equal(t, "alice", r.User.Username)
	assert.True(t, r.User.Revoked)
	assert.Equal(t, testNow, r.RevokedAt)
	assert.Contains(t, r.User.Extra, "discord", "moved verbatim")

	expired := load[models.ExpiredCodesDocument](t, mem, layout.ExpiredCodes)
	require.Len(t, expired.Expired, 1)
	c := expired.Expired[0]
	assert.Equal(t, "ABC-123", c.Code)
	assert.Equal(t, "alice", c.UsedBy)
	assert.Equal(t, "b3:a", c.UsedByHWID)
	require.NotNil(t, c.MovedAt)
	assert.Equal(t, testNow, *c.MovedAt)

	assert.Equal(t, []string{"Remove expired users", "Revoke expired users", "Mirror codes of expired users"}, mem.Messages())
}

func TestSweep_IsIdempotent(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Set(layout.Users, []byte(twoUsers))
	svc := newService(mem)

	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	writes := mem.Puts()

	res, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Moved)
	assert.Equal(t, writes, mem.Puts())
}

func TestSweep_NothingExpiredWritesNothing(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Set(layout.Users, []byte(`{"users":[{"username":"bob","expiry":"2027-01-01T00:00:00Z"},{"username":"forever"}]}`))

	res, err := newService(mem).Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Moved)
	assert.Equal(t, 0, mem.Puts())

	// missing users document
	res, err = newService(docstore.NewMemoryStore()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Moved)
}

func TestSweep_ExpiryAtNowCounts(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Set(layout.Users, []byte(`{"users":[{"username":"edge","expiry":"2026-10-16T03:00:00Z"}]}`))

	res, err := newService(mem).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, res.Moved)
	assert.Equal(t, 0, res.CodesMirrored)

	users := load[models.UsersDocument](t, mem, layout.Users)
	assert.Empty(t, users.Users)

	_, err = mem.Get(context.Background(), layout.ExpiredCodes)
	assert.Error(t, err, "no codes to mirror, nothing written")
}

func TestSweep_DeduplicatesCodesIgnoringCase(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Set(layout.Users, []byte(`{"users":[{"username":"alice","tokens":[
		{"code":"abc-123","redeemed_at":"2026-09-01T00:00:00Z","granted_expiry":"2026-10-01T00:00:00Z"},
		{"code":"DEF-456","redeemed_at":"2026-09-02T00:00:00Z","granted_expiry":"2026-10-02T00:00:00Z"}]}]}`))
	mem.Set(layout.ExpiredCodes, []byte(`{"expired":[{"code":"ABC-123","used":true,"used_by":"alice"}]}`))

	res, err := newService(mem).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, res.Moved, "expiry derived from tokens")
	assert.Equal(t, 1, res.CodesMirrored)

	expired := load[models.ExpiredCodesDocument](t, mem, layout.ExpiredCodes)
	require.Len(t, expired.Expired, 2)
	assert.Nil(t, expired.Expired[0].MovedAt, "existing entry untouched")
	assert.Equal(t, "DEF-456", expired.Expired[1].Code)
}

func TestSweep_RebasesUsersOnConflict(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Set(layout.Users, []byte(twoUsers))

	store := &hookedStore{MemoryStore: mem}
	interfered := false
	store.beforePut = func(loc docstore.Location) {
		if loc != layout.Users || interfered {
			return
		}
		interfered = true
		// a redeem adds carol between our read and write
		var d models.UsersDocument
		obj, _ := mem.Get(context.Background(), layout.Users)
		_ = json.Unmarshal(obj.Data, &d)
		d.Users = append(d.Users, models.UserRecord{Username: "carol"})
		b, _ := docstore.Encode(d)
		mem.Set(layout.Users, b)
	}

	res, err := newService(store).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, res.Moved)

	users := load[models.UsersDocument](t, mem, layout.Users)
	require.Len(t, users.Users, 2)
	assert.Equal(t, "bob", users.Users[0].Username)
	assert.Equal(t, "carol", users.Users[1].Username)
}

func TestSweep_RevokedFailureIsReported(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Set(layout.Users, []byte(twoUsers))
	store := &hookedStore{MemoryStore: mem, failPut: map[docstore.Location]error{
		layout.Revoked: errors.New("forbidden"),
	}}

	res, err := newService(store).Sweep(context.Background())
	require.Error(t, err)

	var ce *docstore.CommitError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StepAppendRevoked, ce.Step)
	assert.Equal(t, []string{"alice"}, res.Moved)

	_, err = mem.Get(context.Background(), layout.ExpiredCodes)
	assert.Error(t, err, "later steps skipped")
}

func TestSweep_LegacyUserLayout(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mem.Set(layout.Users, []byte(`[{"username":"old","code":"LEGACY-1","expiryUtc":"2026-01-01T00:00:00Z"}]`))

	res, err := newService(mem).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, res.Moved)

	expired := load[models.ExpiredCodesDocument](t, mem, layout.ExpiredCodes)
	require.Len(t, expired.Expired, 1)
	assert.Equal(t, "LEGACY-1", expired.Expired[0].Code)

	obj, err := mem.Get(context.Background(), layout.Users)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[]}`, string(obj.Data))
}
