package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"vidstream/internal/apperr"
	"vidstream/internal/repository"
	"vidstream/internal/repository/sqlite"
	"vidstream/internal/storage"
	"vidstream/internal/token"
)

type fakeStorage struct {
	mu       sync.Mutex
	uploads  int
	deleted  []string
	failNext bool
}

func (f *fakeStorage) UploadFile(_ context.Context, body io.Reader, opts storage.UploadOptions) (storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return storage.UploadResult{}, fmt.Errorf("media store unavailable")
	}
	_, _ = io.Copy(io.Discard, body)
	f.uploads++
	key := fmt.Sprintf("%s/object-%d%s", opts.KeyPrefix, f.uploads, filepath.Ext(opts.Filename))
	return storage.UploadResult{Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, _, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type fixture struct {
	svc   UserService
	users repository.UserRepository
	store *fakeStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(ctx))
	subs := sqlite.NewSubscriptionRepository(db)
	require.NoError(t, subs.Init(ctx))

	issuer, err := token.NewIssuer(token.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	store := &fakeStorage{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := NewUserService(users, subs, issuer, store, MediaConfig{
		Bucket:    "media-bucket",
		KeyPrefix: "media",
	}, logger)

	return &fixture{svc: svc, users: users, store: store}
}

func registerInput(username, email, password string) RegisterInput {
	return RegisterInput{
		FullName: "Test User",
		Email:    email,
		Username: username,
		Password: password,
		Avatar:   &MediaFile{Body: strings.NewReader("png-bytes"), Filename: "avatar.png", ContentType: "image/png"},
	}
}

func (f *fixture) register(t *testing.T, username, email, password string) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), registerInput(username, email, password))
	require.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	in := registerInput("alice", "alice@x.com", "p1")
	in.FullName = "   "
	_, err := f.svc.Register(ctx, in)
	require.ErrorIs(t, err, apperr.ErrValidation)

	in = registerInput("alice", "alice@x.com", "p1")
	in.Avatar = nil
	_, err = f.svc.Register(ctx, in)
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Contains(t, err.Error(), "avatar")
}

func TestRegister_StripsCredentialFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	user, err := f.svc.Register(context.Background(), registerInput("alice", "alice@x.com", "p1"))
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.Empty(t, user.PasswordHash)
	require.Empty(t, user.RefreshToken)
	require.NotEmpty(t, user.AvatarURL)
}

func TestRegister_DuplicateFailsWithConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "p1")

	_, err := f.svc.Register(ctx, registerInput("alice", "fresh@x.com", "p1"))
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.Register(ctx, registerInput("fresh", "alice@x.com", "p1"))
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegister_UploadFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.failNext = true

	_, err := f.svc.Register(context.Background(), registerInput("alice", "alice@x.com", "p1"))
	require.ErrorIs(t, err, apperr.ErrUpload)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "p1")

	_, _, err := f.svc.Login(ctx, "", "", "p1")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = f.svc.Login(ctx, "nobody", "", "p1")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = f.svc.Login(ctx, "alice", "", "wrong")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	user, pair, err := f.svc.Login(ctx, "alice", "", "p1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	require.Empty(t, user.PasswordHash)
	require.Empty(t, user.RefreshToken)

	// login by email works too
	_, _, err = f.svc.Login(ctx, "", "alice@x.com", "p1")
	require.NoError(t, err)

	stored, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, stored.RefreshToken)
}

func TestLogin_TrimsPasswordLikeRegister(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// registration trims before hashing, so login must trim before comparing
	f.register(t, "alice", "alice@x.com", "  p1  ")

	_, _, err := f.svc.Login(ctx, "alice", "", "p1")
	require.NoError(t, err)

	_, _, err = f.svc.Login(ctx, "alice", "", "  p1  ")
	require.NoError(t, err)

	user, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	// same symmetry for the old password on change
	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "  p1  ", " p2 "))
	_, _, err = f.svc.Login(ctx, "alice", "", "p2")
	require.NoError(t, err)
}

func TestRefresh_RotatesTokens(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "p1")

	_, pair, err := f.svc.Login(ctx, "alice", "", "p1")
	require.NoError(t, err)

	// immediately: same-second rotation must still yield a fresh pair
	next, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, next.AccessToken)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// replaying the rotated token must fail
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRefresh_RejectsMissingAndInvalid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, "")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Refresh(ctx, "garbage")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestLogout_InvalidatesRefreshToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "p1")

	user, pair, err := f.svc.Login(ctx, "alice", "", "p1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, user.ID))

	stored, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, stored.RefreshToken)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "p1")

	user, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	originalHash := user.PasswordHash

	err = f.svc.ChangePassword(ctx, user.ID, "wrong", "p2")
	require.ErrorIs(t, err, apperr.ErrValidation)

	// failed attempt must not alter the stored hash
	unchanged, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, originalHash, unchanged.PasswordHash)

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "p1", "p2"))

	_, _, err = f.svc.Login(ctx, "alice", "", "p1")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, _, err = f.svc.Login(ctx, "alice", "", "p2")
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "p1")

	user, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, user.ID, "", "alice@x.com")
	require.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := f.svc.UpdateProfile(ctx, user.ID, "Alice Cooper", "cooper@x.com")
	require.NoError(t, err)
	require.Equal(t, "Alice Cooper", updated.FullName)
	require.Equal(t, "cooper@x.com", updated.Email)
	require.Empty(t, updated.PasswordHash)
}

func TestUpdateAvatar_ReplacesAndDeletesOldObject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "p1")

	user, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	oldURL := user.AvatarURL

	updated, err := f.svc.UpdateAvatar(ctx, user.ID, MediaFile{
		Body:     strings.NewReader("new-png"),
		Filename: "new.png",
	})
	require.NoError(t, err)
	require.NotEqual(t, oldURL, updated.AvatarURL)
	require.Len(t, f.store.deleted, 1)
}

func TestChannelProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "p1")
	f.register(t, "bob", "bob@x.com", "p1")

	bob, err := f.users.GetByUsername(ctx, "bob")
	require.NoError(t, err)

	subscribed, err := f.svc.ToggleSubscription(ctx, bob.ID, "alice")
	require.NoError(t, err)
	require.True(t, subscribed)

	profile, err := f.svc.ChannelProfile(ctx, "alice", bob.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), profile.SubscriberCount)
	require.True(t, profile.IsSubscribed)

	// anonymous viewer sees counts but no subscription flag
	profile, err = f.svc.ChannelProfile(ctx, "alice", 0)
	require.NoError(t, err)
	require.False(t, profile.IsSubscribed)

	_, err = f.svc.ChannelProfile(ctx, "ghost", bob.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// toggling again unsubscribes
	subscribed, err = f.svc.ToggleSubscription(ctx, bob.ID, "alice")
	require.NoError(t, err)
	require.False(t, subscribed)

	_, err = f.svc.ToggleSubscription(ctx, bob.ID, "bob")
	require.ErrorIs(t, err, apperr.ErrValidation)
}
