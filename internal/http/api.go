package http

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vidstream/internal/apperr"
	"vidstream/internal/domain"
	"vidstream/internal/service"
	"vidstream/internal/token"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"

	ctxUserIDKey = "userID"
)

// CookieConfig controls how session cookies are written.
type CookieConfig struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users   service.UserService
	issuer  *token.Issuer
	cookies CookieConfig
	logger  *logrus.Logger
}

func NewHandler(users service.UserService, issuer *token.Issuer, cookies CookieConfig, logger *logrus.Logger) *Handler {
	return &Handler{
		users:   users,
		issuer:  issuer,
		cookies: cookies,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(h.requestLogger())

	api := router.Group("/api/v1")
	{
		users := api.Group("/users")
		{
			users.POST("/register", h.register)
			users.POST("/login", h.login)
			users.POST("/refresh-token", h.refresh)
			users.POST("/logout", h.requireAuth(), h.logout)
			users.POST("/change-password", h.requireAuth(), h.changePassword)
			users.GET("/me", h.requireAuth(), h.currentUser)
			users.PATCH("/update-account", h.requireAuth(), h.updateAccount)
			users.PATCH("/avatar", h.requireAuth(), h.updateAvatar)
			users.PATCH("/cover-image", h.requireAuth(), h.updateCoverImage)
			users.GET("/c/:username", h.optionalAuth(), h.channelProfile)
		}
		api.POST("/subscriptions/c/:username", h.requireAuth(), h.toggleSubscription)
		api.GET("/health", func(ctx *gin.Context) {
			respond(ctx, http.StatusOK, gin.H{"status": "ok"}, "healthy")
		})
	}
}

// envelope is the uniform response body for both success and failure.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// fail is the single boundary translator: error kind decides the status.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.StatusCode(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, envelope{
		StatusCode: status,
		Message:    err.Error(),
		Success:    false,
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

// requireAuth verifies the access token from the cookie or the
// Authorization header and stores the user id on the context.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := h.authenticate(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(ctxUserIDKey, userID)
		c.Next()
	}
}

// optionalAuth resolves the viewer identity when a valid access token is
// present, and lets anonymous requests through.
func (h *Handler) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := h.authenticate(c); err == nil {
			c.Set(ctxUserIDKey, userID)
		}
		c.Next()
	}
}

func (h *Handler) authenticate(c *gin.Context) (int64, error) {
	raw, _ := c.Cookie(accessCookie)
	if raw == "" {
		header := c.GetHeader("Authorization")
		raw = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if raw == "" {
		return 0, apperr.Unauthorized("access token is required")
	}
	claims, err := h.issuer.VerifyAccessToken(raw)
	if err != nil {
		return 0, err
	}
	return token.UserID(claims)
}

func authedUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserIDKey)
}

func (h *Handler) setSessionCookies(c *gin.Context, pair service.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, pair.AccessToken, int(h.cookies.AccessTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshCookie, pair.RefreshToken, int(h.cookies.RefreshTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *Handler) register(c *gin.Context) {
	in := service.RegisterInput{
		FullName: c.PostForm("fullname"),
		Email:    c.PostForm("email"),
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}

	avatar, avatarClose, err := formMediaFile(c, "avatar")
	if err != nil {
		h.fail(c, apperr.Validation("avatar file is required"))
		return
	}
	defer avatarClose()
	in.Avatar = avatar

	cover, coverClose, err := formMediaFile(c, "coverImage")
	switch {
	case err == nil:
		defer coverClose()
		in.CoverImage = cover
	case !errors.Is(err, http.ErrMissingFile):
		// the part was sent but is unreadable
		h.fail(c, apperr.Validation("coverImage file is invalid"))
		return
	}

	user, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, userToResponse(user), "user registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation(err.Error()))
		return
	}

	user, pair, err := h.users.Login(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	respond(c, http.StatusOK, loginResponse{
		User:         userToResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "logged in successfully")
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), authedUserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.clearSessionCookies(c)
	respond(c, http.StatusOK, nil, "logged out successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) refresh(c *gin.Context) {
	raw, _ := c.Cookie(refreshCookie)
	if raw == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			raw = req.RefreshToken
		}
	}

	pair, err := h.users.Refresh(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	respond(c, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "access token refreshed")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation(err.Error()))
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), authedUserID(c), req.OldPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "password changed successfully")
}

func (h *Handler) currentUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), authedUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, userToResponse(user), "current user fetched")
}

type updateAccountRequest struct {
	FullName string `json:"fullname" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

func (h *Handler) updateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation(err.Error()))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), authedUserID(c), req.FullName, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, userToResponse(user), "account updated successfully")
}

func (h *Handler) updateAvatar(c *gin.Context) {
	h.updateMedia(c, "avatar", h.users.UpdateAvatar)
}

func (h *Handler) updateCoverImage(c *gin.Context) {
	h.updateMedia(c, "coverImage", h.users.UpdateCoverImage)
}

func (h *Handler) updateMedia(
	c *gin.Context,
	field string,
	update func(ctx context.Context, userID int64, file service.MediaFile) (*domain.User, error),
) {
	file, closeFile, err := formMediaFile(c, field)
	if err != nil {
		h.fail(c, apperr.Validation(field+" file is required"))
		return
	}
	defer closeFile()

	user, err := update(c.Request.Context(), authedUserID(c), *file)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, userToResponse(user), field+" updated successfully")
}

func (h *Handler) channelProfile(c *gin.Context) {
	profile, err := h.users.ChannelProfile(c.Request.Context(), c.Param("username"), authedUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, channelToResponse(profile), "channel profile fetched")
}

func (h *Handler) toggleSubscription(c *gin.Context) {
	subscribed, err := h.users.ToggleSubscription(c.Request.Context(), authedUserID(c), c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscribed": subscribed}, "subscription toggled")
}

func formMediaFile(c *gin.Context, field string) (*service.MediaFile, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.MediaFile{
		Body:        f,
		Filename:    header.Filename,
		ContentType: contentType(header),
	}, func() { _ = f.Close() }, nil
}

func contentType(header *multipart.FileHeader) string {
	return header.Header.Get("Content-Type")
}

type UserResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullname"`
	AvatarURL     string `json:"avatarUrl"`
	CoverImageURL string `json:"coverImageUrl,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type ChannelResponse struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	FullName          string `json:"fullname"`
	AvatarURL         string `json:"avatarUrl"`
	CoverImageURL     string `json:"coverImageUrl,omitempty"`
	SubscriberCount   int64  `json:"subscriberCount"`
	SubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}
}

func channelToResponse(p *domain.ChannelProfile) ChannelResponse {
	return ChannelResponse{
		ID:                p.ID,
		Username:          p.Username,
		Email:             p.Email,
		FullName:          p.FullName,
		AvatarURL:         p.AvatarURL,
		CoverImageURL:     p.CoverImageURL,
		SubscriberCount:   p.SubscriberCount,
		SubscribedToCount: p.SubscribedToCount,
		IsSubscribed:      p.IsSubscribed,
	}
}
