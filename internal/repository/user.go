package repository

import (
	"context"
	"errors"

	"vidstream/internal/domain"
)

// ErrStaleRefreshToken is returned by RotateRefreshToken when the stored
// refresh token no longer matches the presented one.
var ErrStaleRefreshToken = errors.New("stored refresh token does not match")

// UserRepository defines persistence operations for User entities.
// Update methods return the post-update record so callers never work
// from a stale copy.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, fullName, email string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, id int64, avatarURL string) (*domain.User, error)
	UpdateCoverImage(ctx context.Context, id int64, coverImageURL string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetRefreshToken(ctx context.Context, id int64, token string) error
	// RotateRefreshToken swaps the stored refresh token for a new one as a
	// single conditional update: it succeeds only if the stored value still
	// equals current. Returns ErrStaleRefreshToken otherwise.
	RotateRefreshToken(ctx context.Context, id int64, current, next string) error
	ClearRefreshToken(ctx context.Context, id int64) error
}
