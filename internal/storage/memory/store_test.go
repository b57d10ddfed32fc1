package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelbot/internal/storage"
)

func TestEnsureUserIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, 100)
	require.NoError(t, err)
	assert.False(t, u.Registered())

	require.NoError(t, s.SaveUser(ctx, &storage.User{ID: 100, Handle: "alice", SecretHash: "h"}))

	again, err := s.EnsureUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Handle, "ensure must not reset an existing row")
}

func TestSaveUserHandleConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _ = s.EnsureUser(ctx, 1)
	_, _ = s.EnsureUser(ctx, 2)
	require.NoError(t, s.SaveUser(ctx, &storage.User{ID: 1, Handle: "bob"}))

	err := s.SaveUser(ctx, &storage.User{ID: 2, Handle: "bob"})
	assert.ErrorIs(t, err, storage.ErrHandleTaken)
}

func TestInsertParcelDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.EnsureUser(ctx, 1)

	require.NoError(t, s.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: "TRACK-0001"}))
	err := s.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: "TRACK-0001"})
	assert.ErrorIs(t, err, storage.ErrDuplicateParcel)

	// the same code under another owner is fine
	_, _ = s.EnsureUser(ctx, 2)
	assert.NoError(t, s.InsertParcel(ctx, &storage.Parcel{OwnerID: 2, Code: "TRACK-0001"}))
}

func TestParcelsByOwnerInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.EnsureUser(ctx, 1)

	for _, code := range []string{"CCCC1111", "AAAA2222", "BBBB3333"} {
		require.NoError(t, s.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: code}))
	}

	list, err := s.ParcelsByOwner(ctx, 1)
	require.NoError(t, err)
	codes := make([]string, 0, len(list))
	for _, p := range list {
		codes = append(codes, p.Code)
	}
	assert.Equal(t, []string{"CCCC1111", "AAAA2222", "BBBB3333"}, codes)
}

func TestRebindIdentityMovesParcels(t *testing.T) {
	s := New()
	ctx := context.Background()

	// account registered under platform id 1 with two parcels
	_, _ = s.EnsureUser(ctx, 1)
	require.NoError(t, s.SaveUser(ctx, &storage.User{ID: 1, Handle: "carol", SecretHash: "h"}))
	require.NoError(t, s.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: "XXXX0001"}))
	require.NoError(t, s.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: "YYYY0002"}))

	// guest on platform id 2 with a parcel of their own
	_, _ = s.EnsureUser(ctx, 2)
	require.NoError(t, s.InsertParcel(ctx, &storage.Parcel{OwnerID: 2, Code: "ZZZZ0003"}))

	require.NoError(t, s.RebindIdentity(ctx, 1, 2))

	_, err := s.GetUser(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	moved, err := s.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "carol", moved.Handle)

	list, err := s.ParcelsByOwner(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	old, err := s.ParcelsByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestRebindIdentitySameID(t *testing.T) {
	s := New()
	assert.NoError(t, s.RebindIdentity(context.Background(), 5, 5))
}

func TestDeleteParcels(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.EnsureUser(ctx, 1)
	require.NoError(t, s.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: "AAAA1111"}))
	require.NoError(t, s.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: "BBBB2222"}))

	ok, err := s.DeleteParcel(ctx, 1, "AAAA1111")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteParcel(ctx, 1, "AAAA1111")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.DeleteAllParcels(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := s.CountParcels(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}
