package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidstream/internal/domain"
	"vidstream/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	cover_image_url TEXT NOT NULL DEFAULT '',
	refresh_token TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AvatarURL,
		user.CoverImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, fmt.Errorf("user already exists: %w", err)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

const selectUserColumns = `
SELECT id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at
FROM users`

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+` WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+` WHERE username = ?`, username)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+` WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+` WHERE username = ? OR email = ? LIMIT 1`, username, email)
	return scanUser(row)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, fullName, email string) (*domain.User, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?`,
		fullName, email, time.Now().UTC(), id,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, fmt.Errorf("email already taken: %w", err)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := requireRow(res, "update profile"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id int64, avatarURL string) (*domain.User, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET avatar_url = ?, updated_at = ? WHERE id = ?`,
		avatarURL, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update avatar: %w", err)
	}
	if err := requireRow(res, "update avatar"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id int64, coverImageURL string) (*domain.User, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET cover_image_url = ?, updated_at = ? WHERE id = ?`,
		coverImageURL, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update cover image: %w", err)
	}
	if err := requireRow(res, "update cover image"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res, "update password")
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id int64, token string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return requireRow(res, "set refresh token")
}

// RotateRefreshToken performs the compare-and-swap in a single UPDATE so
// two concurrent refresh calls with the same token cannot both succeed.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id int64, current, next string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ? AND refresh_token = ?`,
		next, time.Now().UTC(), id, current,
	)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate refresh token rows: %w", err)
	}
	if n == 0 {
		return repository.ErrStaleRefreshToken
	}
	return nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET refresh_token = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return requireRow(res, "clear refresh token")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	var refreshToken sql.NullString
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CoverImageURL,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.RefreshToken = refreshToken.String
	return &user, nil
}
