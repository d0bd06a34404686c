package domain

import "time"

// User represents a registered account. PasswordHash and RefreshToken are
// persistence-only fields and must never appear in API responses.
type User struct {
	ID            int64
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicView returns a copy of the user with credential fields stripped,
// safe to hand to the API layer.
func (u *User) PublicView() *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
