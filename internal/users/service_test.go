package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelbot/internal/storage"
	"parcelbot/internal/storage/memory"
)

// plainHasher keeps secrets readable in tests.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "hash:" + secret, nil }
func (plainHasher) Compare(hash, secret string) bool   { return hash == "hash:"+secret }

func newTestService() (*Service, *memory.Store) {
	st := memory.New()
	return NewService(st, plainHasher{}, Policy{HandleMinLength: 3, SecretMinLength: 6}), st
}

func TestNormalizeHandleIdempotent(t *testing.T) {
	inputs := []string{"Alice", " bob_42 ", "ca​rol", "DÄve"}
	for _, in := range inputs {
		once := NormalizeHandle(in)
		assert.Equal(t, once, NormalizeHandle(once), "input %q", in)
	}
}

func TestNormalizeHandleStripsInvisibles(t *testing.T) {
	assert.Equal(t, "alice", NormalizeHandle(" A​LI­CE\t"))
	assert.Equal(t, "bob_42", NormalizeHandle("Bob_42"))
}

func TestValidateHandle(t *testing.T) {
	s, _ := newTestService()

	h, err := s.ValidateHandle("  Carol_7 ")
	require.NoError(t, err)
	assert.Equal(t, "carol_7", h)

	_, err = s.ValidateHandle("ab")
	assert.ErrorIs(t, err, ErrHandleTooShort)

	_, err = s.ValidateHandle("名前です")
	assert.ErrorIs(t, err, ErrHandleInvalid)

	_, err = s.ValidateHandle("has-dash")
	assert.ErrorIs(t, err, ErrHandleInvalid)
}

func TestValidateSecret(t *testing.T) {
	s, _ := newTestService()
	assert.ErrorIs(t, s.ValidateSecret("12345"), ErrSecretTooShort)
	assert.NoError(t, s.ValidateSecret("123456"))
}

func TestRegisterAndDuplicateHandle(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, 1, "alice", "secret1", "Alice", "A"))

	// the same normalized handle from another user is rejected
	err := s.Register(ctx, 2, "alice", "secret2", "Other", "O")
	assert.ErrorIs(t, err, ErrHandleTaken)

	// an already registered user cannot register again
	err = s.Register(ctx, 1, "alice2", "secret3", "", "")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestHandleAvailable(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	free, err := s.HandleAvailable(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, free)

	require.NoError(t, s.Register(ctx, 1, "ghost", "secret1", "", ""))
	free, err = s.HandleAvailable(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestLoginRebindsIdentityAndParcels(t *testing.T) {
	s, st := newTestService()
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, 1, "carol", "secret1", "Carol", "C"))
	require.NoError(t, st.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: "XXXX0001"}))
	require.NoError(t, st.InsertParcel(ctx, &storage.Parcel{OwnerID: 1, Code: "YYYY0002"}))

	// new device, new platform identity
	_, err := s.Profile(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, s.Login(ctx, 2, "carol", "secret1"))

	moved, err := st.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "carol", moved.Handle)

	_, err = st.GetUser(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := st.ParcelsByOwner(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	old, err := st.ParcelsByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestLoginSameIdentityIsNoop(t *testing.T) {
	s, st := newTestService()
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, 1, "dave", "secret1", "", ""))
	require.NoError(t, s.Login(ctx, 1, "dave", "secret1"))

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "dave", u.Handle)
}

func TestLoginBadCredentials(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, 1, "erin", "secret1", "", ""))

	assert.ErrorIs(t, s.Login(ctx, 2, "erin", "wrong"), ErrBadCredentials)
	assert.ErrorIs(t, s.Login(ctx, 2, "nobody", "secret1"), ErrBadCredentials)
}

func TestChangeSecret(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, 1, "frank", "oldsecret", "", ""))

	assert.ErrorIs(t, s.ChangeSecret(ctx, 1, "wrong", "newsecret"), ErrBadCredentials)
	require.NoError(t, s.ChangeSecret(ctx, 1, "oldsecret", "newsecret"))

	assert.ErrorIs(t, s.Login(ctx, 1, "frank", "oldsecret"), ErrBadCredentials)
	assert.NoError(t, s.Login(ctx, 1, "frank", "newsecret"))
}

func TestChangeSecretRequiresRegistration(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	_, err := s.Profile(ctx, 5)
	require.NoError(t, err)

	assert.ErrorIs(t, s.ChangeSecret(ctx, 5, "x", "newsecret"), ErrNotRegistered)
}
