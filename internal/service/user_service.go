package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"vidstream/internal/apperr"
	"vidstream/internal/domain"
	"vidstream/internal/repository"
	"vidstream/internal/storage"
	"vidstream/internal/token"
)

// MediaFile is an uploaded file handed down from the HTTP layer.
type MediaFile struct {
	Body        io.Reader
	Filename    string
	ContentType string
}

// TokenPair is an access/refresh token pair minted for a session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput carries the registration form fields and files.
type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *MediaFile
	CoverImage *MediaFile
}

// UserService describes account lifecycle and session operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, email, password string) (*domain.User, TokenPair, error)
	Logout(ctx context.Context, userID int64) error
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID int64, fullName, email string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, userID int64, file MediaFile) (*domain.User, error)
	UpdateCoverImage(ctx context.Context, userID int64, file MediaFile) (*domain.User, error)
	GetByID(ctx context.Context, userID int64) (*domain.User, error)
	ChannelProfile(ctx context.Context, username string, viewerID int64) (*domain.ChannelProfile, error)
	ToggleSubscription(ctx context.Context, subscriberID int64, channelUsername string) (bool, error)
}

// MediaConfig tells the service where uploaded media objects live.
type MediaConfig struct {
	Bucket    string
	KeyPrefix string
}

type userService struct {
	users  repository.UserRepository
	subs   repository.SubscriptionRepository
	issuer *token.Issuer
	store  storage.Service
	media  MediaConfig
	logger *logrus.Logger
}

func NewUserService(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	issuer *token.Issuer,
	store storage.Service,
	media MediaConfig,
	logger *logrus.Logger,
) UserService {
	return &userService{
		users:  users,
		subs:   subs,
		issuer: issuer,
		store:  store,
		media:  media,
		logger: logger,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Password = strings.TrimSpace(in.Password)

	switch {
	case in.FullName == "":
		return nil, apperr.Validation("fullname is required")
	case in.Email == "":
		return nil, apperr.Validation("email is required")
	case in.Username == "":
		return nil, apperr.Validation("username is required")
	case in.Password == "":
		return nil, apperr.Validation("password is required")
	}
	if in.Avatar == nil {
		return nil, apperr.Validation("avatar file is required")
	}

	if existing, err := s.users.GetByUsernameOrEmail(ctx, in.Username, in.Email); err == nil && existing != nil {
		return nil, apperr.Conflict("user with this email or username exists")
	}

	avatar, err := s.store.UploadFile(ctx, in.Avatar.Body, storage.UploadOptions{
		Bucket:      s.media.Bucket,
		KeyPrefix:   s.media.KeyPrefix,
		Filename:    in.Avatar.Filename,
		ContentType: in.Avatar.ContentType,
	})
	if err != nil {
		return nil, apperr.WrapUpload(err, "upload avatar")
	}

	var coverURL string
	if in.CoverImage != nil {
		cover, err := s.store.UploadFile(ctx, in.CoverImage.Body, storage.UploadOptions{
			Bucket:      s.media.Bucket,
			KeyPrefix:   s.media.KeyPrefix,
			Filename:    in.CoverImage.Filename,
			ContentType: in.CoverImage.ContentType,
		})
		if err != nil {
			return nil, apperr.WrapUpload(err, "upload cover image")
		}
		coverURL = cover.URL
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.WrapInternal(err, "hash password")
	}

	user := &domain.User{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  string(hash),
		AvatarURL:     avatar.URL,
		CoverImageURL: coverURL,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil, apperr.Conflict("user with this email or username exists")
		}
		return nil, apperr.WrapInternal(err, "create user")
	}

	return user.PublicView(), nil
}

func (s *userService) Login(ctx context.Context, username, email, password string) (*domain.User, TokenPair, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	if username == "" && email == "" {
		return nil, TokenPair{}, apperr.Validation("username or email is required")
	}

	user, err := s.users.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if isNotFound(err) {
			return nil, TokenPair{}, apperr.NotFound("user does not exist")
		}
		return nil, TokenPair{}, apperr.WrapInternal(err, "lookup user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, TokenPair{}, apperr.Unauthorized("invalid credentials")
	}

	pair, err := s.mintPair(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, TokenPair{}, apperr.WrapInternal(err, "persist refresh token")
	}

	return user.PublicView(), pair, nil
}

func (s *userService) Logout(ctx context.Context, userID int64) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		if isNotFound(err) {
			return apperr.NotFound("user does not exist")
		}
		return apperr.WrapInternal(err, "clear refresh token")
	}
	return nil
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, apperr.Unauthorized("refresh token is required")
	}

	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	userID, err := token.UserID(claims)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return TokenPair{}, apperr.NotFound("user does not exist")
		}
		return TokenPair{}, apperr.WrapInternal(err, "lookup user")
	}

	pair, err := s.mintPair(user)
	if err != nil {
		return TokenPair{}, err
	}

	// Single conditional update: a rotated or reused token fails here even
	// under concurrent refresh attempts.
	if err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, repository.ErrStaleRefreshToken) {
			return TokenPair{}, apperr.Unauthorized("refresh token is expired or already used")
		}
		return TokenPair{}, apperr.WrapInternal(err, "rotate refresh token")
	}

	return pair, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	oldPassword = strings.TrimSpace(oldPassword)
	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return apperr.Validation("new password is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return apperr.NotFound("user does not exist")
		}
		return apperr.WrapInternal(err, "lookup user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return apperr.Validation("old password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperr.WrapInternal(err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return apperr.WrapInternal(err, "update password")
	}
	return nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int64, fullName, email string) (*domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" {
		return nil, apperr.Validation("fullname and email are required")
	}

	user, err := s.users.UpdateProfile(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, apperr.NotFound("user does not exist")
		case strings.Contains(strings.ToLower(err.Error()), "already taken"):
			return nil, apperr.Conflict("email already taken")
		}
		return nil, apperr.WrapInternal(err, "update profile")
	}
	return user.PublicView(), nil
}

func (s *userService) UpdateAvatar(ctx context.Context, userID int64, file MediaFile) (*domain.User, error) {
	return s.replaceMedia(ctx, userID, file,
		func(u *domain.User) string { return u.AvatarURL },
		s.users.UpdateAvatar,
	)
}

func (s *userService) UpdateCoverImage(ctx context.Context, userID int64, file MediaFile) (*domain.User, error) {
	return s.replaceMedia(ctx, userID, file,
		func(u *domain.User) string { return u.CoverImageURL },
		s.users.UpdateCoverImage,
	)
}

func (s *userService) replaceMedia(
	ctx context.Context,
	userID int64,
	file MediaFile,
	currentURL func(*domain.User) string,
	persist func(context.Context, int64, string) (*domain.User, error),
) (*domain.User, error) {
	if file.Body == nil {
		return nil, apperr.Validation("file is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("user does not exist")
		}
		return nil, apperr.WrapInternal(err, "lookup user")
	}
	oldURL := currentURL(user)

	uploaded, err := s.store.UploadFile(ctx, file.Body, storage.UploadOptions{
		Bucket:      s.media.Bucket,
		KeyPrefix:   s.media.KeyPrefix,
		Filename:    file.Filename,
		ContentType: file.ContentType,
	})
	if err != nil {
		return nil, apperr.WrapUpload(err, "upload file")
	}

	updated, err := persist(ctx, userID, uploaded.URL)
	if err != nil {
		return nil, apperr.WrapInternal(err, "persist media url")
	}

	// Best effort: the replaced object is garbage once the new URL is
	// persisted.
	if key := keyFromURL(oldURL); key != "" {
		if err := s.store.DeleteObject(ctx, s.media.Bucket, key); err != nil {
			s.logger.Warnf("delete replaced media %s: %v", key, err)
		}
	}

	return updated.PublicView(), nil
}

func (s *userService) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("user does not exist")
		}
		return nil, apperr.WrapInternal(err, "lookup user")
	}
	return user.PublicView(), nil
}

func (s *userService) ChannelProfile(ctx context.Context, username string, viewerID int64) (*domain.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, apperr.Validation("username is required")
	}

	channel, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("channel does not exist")
		}
		return nil, apperr.WrapInternal(err, "lookup channel")
	}

	subscribers, err := s.subs.CountSubscribers(ctx, channel.ID)
	if err != nil {
		return nil, apperr.WrapInternal(err, "count subscribers")
	}
	subscribedTo, err := s.subs.CountSubscribedTo(ctx, channel.ID)
	if err != nil {
		return nil, apperr.WrapInternal(err, "count subscribed-to channels")
	}

	var isSubscribed bool
	if viewerID > 0 {
		isSubscribed, err = s.subs.IsSubscribed(ctx, viewerID, channel.ID)
		if err != nil {
			return nil, apperr.WrapInternal(err, "check subscription")
		}
	}

	return &domain.ChannelProfile{
		ID:                channel.ID,
		Username:          channel.Username,
		Email:             channel.Email,
		FullName:          channel.FullName,
		AvatarURL:         channel.AvatarURL,
		CoverImageURL:     channel.CoverImageURL,
		SubscriberCount:   subscribers,
		SubscribedToCount: subscribedTo,
		IsSubscribed:      isSubscribed,
	}, nil
}

func (s *userService) ToggleSubscription(ctx context.Context, subscriberID int64, channelUsername string) (bool, error) {
	channel, err := s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(channelUsername)))
	if err != nil {
		if isNotFound(err) {
			return false, apperr.NotFound("channel does not exist")
		}
		return false, apperr.WrapInternal(err, "lookup channel")
	}
	if channel.ID == subscriberID {
		return false, apperr.Validation("cannot subscribe to own channel")
	}

	subscribed, err := s.subs.IsSubscribed(ctx, subscriberID, channel.ID)
	if err != nil {
		return false, apperr.WrapInternal(err, "check subscription")
	}
	if subscribed {
		if err := s.subs.Unsubscribe(ctx, subscriberID, channel.ID); err != nil {
			return false, apperr.WrapInternal(err, "unsubscribe")
		}
		return false, nil
	}
	if err := s.subs.Subscribe(ctx, subscriberID, channel.ID); err != nil {
		return false, apperr.WrapInternal(err, "subscribe")
	}
	return true, nil
}

func (s *userService) mintPair(user *domain.User) (TokenPair, error) {
	access, err := s.issuer.MintAccessToken(user)
	if err != nil {
		return TokenPair{}, apperr.WrapInternal(err, "mint access token")
	}
	refresh, err := s.issuer.MintRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, apperr.WrapInternal(err, "mint refresh token")
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}

// keyFromURL recovers the object key from a stored media URL.
func keyFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Path, "/")
}
