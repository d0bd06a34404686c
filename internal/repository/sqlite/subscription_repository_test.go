package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vidstream/internal/repository"
)

func testSubscriptionRepos(t *testing.T) (repository.SubscriptionRepository, []int64) {
	t.Helper()
	ctx := context.Background()
	db := testDB(t)

	users := NewUserRepository(db)
	require.NoError(t, users.Init(ctx))
	subs := NewSubscriptionRepository(db)
	require.NoError(t, subs.Init(ctx))

	var ids []int64
	for _, name := range []string{"alice", "bob", "carol"} {
		id, err := users.Create(ctx, sampleUser(name, name+"@x.com"))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return subs, ids
}

func TestSubscriptionRepository_Counts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	subs, ids := testSubscriptionRepos(t)
	alice, bob, carol := ids[0], ids[1], ids[2]

	require.NoError(t, subs.Subscribe(ctx, bob, alice))
	require.NoError(t, subs.Subscribe(ctx, carol, alice))
	require.NoError(t, subs.Subscribe(ctx, alice, bob))

	n, err := subs.CountSubscribers(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = subs.CountSubscribedTo(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	ok, err := subs.IsSubscribed(ctx, bob, alice)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = subs.IsSubscribed(ctx, carol, bob)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubscriptionRepository_SubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	subs, ids := testSubscriptionRepos(t)
	alice, bob := ids[0], ids[1]

	require.NoError(t, subs.Subscribe(ctx, bob, alice))
	require.NoError(t, subs.Subscribe(ctx, bob, alice))

	n, err := subs.CountSubscribers(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, subs.Unsubscribe(ctx, bob, alice))
	n, err = subs.CountSubscribers(ctx, alice)
	require.NoError(t, err)
	require.Zero(t, n)
}
