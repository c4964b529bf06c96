package githubstore

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/codekeeper/internal/config"
	"github.com/dmitrijs2005/codekeeper/internal/cryptox"
	"github.com/dmitrijs2005/codekeeper/internal/docstore"
	"github.com/dmitrijs2005/codekeeper/internal/github"
	"github.com/dmitrijs2005/codekeeper/internal/models"
	"github.com/dmitrijs2005/codekeeper/internal/redeem"
	"github.com/dmitrijs2005/codekeeper/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A consume commit whose response is lost must leave the grant recoverable.
func TestRedeem_LostConsumeResponseIsReconciled(t *testing.T) {
	ctx := context.Background()
	fake := &fakeContents{files: map[string][]byte{}, large: map[string]bool{}, badGateway: map[string]bool{}, puts: map[string]int{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := github.NewClient(srv.URL, github.StaticToken("t"), github.WithBackoff(docstore.NewBackoff(time.Millisecond, 3)))
	store := New(client, "acme", "")
	layout := config.DefaultLayout()
	codesKey := layout.ActiveCodes.Repo + "/" + layout.ActiveCodes.Path

	fake.mu.Lock()
	fake.files[codesKey] = []byte(`{"codes":[{"code":"ABC-123","used":false}]}`)
	fake.badGateway[codesKey] = true
	fake.mu.Unlock()

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc := redeem.NewService(store, layout, cryptox.NewHWIDHasher("pepper"),
		redeem.WithClock(func() time.Time { return now }),
		redeem.WithBackoff(docstore.NewBackoff(time.Millisecond, 2)),
	)

	_, err := svc.Redeem(ctx, redeem.Request{Username: "alice", HWID: "HW1", Code: "ABC-123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, redeem.ErrOutcomeUnknown)
	assert.NotEqual(t, redeem.MsgCodeInvalidOrUsed, redeem.Message(nil, err))

	fake.mu.Lock()
	assert.Equal(t, 1, fake.puts[codesKey], "consume write sent once")
	fake.mu.Unlock()

	codes, err := docstore.Load[models.CodesDocument](ctx, store, layout.ActiveCodes, false)
	require.NoError(t, err)
	assert.Empty(t, codes.Value.Codes)

	pending, err := docstore.Load[models.PendingGrantsDocument](ctx, store, layout.PendingGrants, false)
	require.NoError(t, err)
	require.Len(t, pending.Value.Pending, 1)

	res, err := sweep.NewService(store, layout, sweep.WithClock(func() time.Time { return now })).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	users, err := docstore.Load[models.UsersDocument](ctx, store, layout.Users, false)
	require.NoError(t, err)
	require.Len(t, users.Value.Users, 1)
	assert.Equal(t, "alice", users.Value.Users[0].Username)
	assert.True(t, users.Value.Users[0].HasToken("ABC-123"))
}
