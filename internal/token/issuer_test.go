package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vidstream/internal/apperr"
	"vidstream/internal/domain"
)

func testIssuer(t *testing.T, accessTTL, refreshTTL time.Duration) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	})
	require.NoError(t, err)
	return issuer
}

func TestNewIssuer_RequiresSecretsAndTTLs(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer(Config{AccessSecret: []byte("a"), RefreshSecret: nil, AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.Error(t, err)

	_, err = NewIssuer(Config{AccessSecret: []byte("a"), RefreshSecret: []byte("r"), AccessTTL: 0, RefreshTTL: time.Hour})
	require.Error(t, err)
}

func TestMintAndVerify_AccessToken(t *testing.T) {
	t.Parallel()

	issuer := testIssuer(t, time.Minute, time.Hour)
	user := &domain.User{ID: 42, Username: "alice", Email: "alice@x.com"}

	raw, err := issuer.MintAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := issuer.VerifyAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "alice@x.com", claims.Email)

	id, err := UserID(claims)
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestMintAndVerify_RefreshToken(t *testing.T) {
	t.Parallel()

	issuer := testIssuer(t, time.Minute, time.Hour)

	raw, err := issuer.MintRefreshToken(7)
	require.NoError(t, err)

	claims, err := issuer.VerifyRefreshToken(raw)
	require.NoError(t, err)

	id, err := UserID(claims)
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
}

func TestMint_BackToBackMintsAreDistinct(t *testing.T) {
	t.Parallel()

	issuer := testIssuer(t, time.Minute, time.Hour)
	user := &domain.User{ID: 1, Username: "alice", Email: "alice@x.com"}

	// identical claims minted within the same second must still produce
	// different tokens, or rotation degenerates into a no-op
	a1, err := issuer.MintAccessToken(user)
	require.NoError(t, err)
	a2, err := issuer.MintAccessToken(user)
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)

	r1, err := issuer.MintRefreshToken(user.ID)
	require.NoError(t, err)
	r2, err := issuer.MintRefreshToken(user.ID)
	require.NoError(t, err)
	require.NotEqual(t, r1, r2)
}

func TestVerify_SecretsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	issuer := testIssuer(t, time.Minute, time.Hour)

	access, err := issuer.MintAccessToken(&domain.User{ID: 1, Username: "u"})
	require.NoError(t, err)
	refresh, err := issuer.MintRefreshToken(1)
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(access)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = issuer.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuer := testIssuer(t, time.Millisecond, time.Millisecond)

	raw, err := issuer.MintRefreshToken(1)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = issuer.VerifyRefreshToken(raw)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.Contains(t, err.Error(), "expired")
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	issuer := testIssuer(t, time.Minute, time.Hour)

	_, err := issuer.VerifyAccessToken("not.a.jwt")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer := testIssuer(t, time.Minute, time.Hour)
	other, err := NewIssuer(Config{
		AccessSecret:  []byte("other-access"),
		RefreshSecret: []byte("other-refresh"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	raw, err := other.MintAccessToken(&domain.User{ID: 5, Username: "eve"})
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(raw)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}
