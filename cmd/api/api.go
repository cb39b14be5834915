package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/camagru/camagru/internal/auth"
	"github.com/camagru/camagru/internal/compositor"
	"github.com/camagru/camagru/internal/config"
	"github.com/camagru/camagru/internal/editing"
	"github.com/camagru/camagru/internal/gallery"
	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/metrics"
	"github.com/camagru/camagru/internal/middleware"
	"github.com/camagru/camagru/internal/profile"
	"github.com/camagru/camagru/internal/storage"
	"github.com/camagru/camagru/pkg/models"
	"github.com/gin-gonic/gin"
)

type authService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Verify(ctx context.Context, token string) error
	Login(ctx context.Context, login, password string) (*auth.Session, error)
	Logout(ctx context.Context, claims *middleware.Claims) error
	ForgotPassword(ctx context.Context, email string) error
	ResetTokenValid(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, password string) error
	Status(ctx context.Context, userID int64) (*auth.Status, error)
}

type profileService interface {
	GetProfile(ctx context.Context, userID int64) (*models.Profile, error)
	ListAvatars(ctx context.Context) ([]*models.Avatar, error)
	UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) (*models.Profile, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	DeleteAccount(ctx context.Context, userID int64, username, password string) error
}

type editingService interface {
	ListStickers(ctx context.Context) ([]*models.Sticker, error)
	ListUserPhotos(ctx context.Context, userID int64) ([]*models.Photo, error)
	SavePhoto(ctx context.Context, userID int64, req editing.SaveRequest) (*models.Photo, error)
	Preview(ctx context.Context, userID int64, req editing.SaveRequest) (string, error)
	CreateGIF(ctx context.Context, userID int64, req editing.GIFRequest) (*models.Photo, error)
	DeletePhoto(ctx context.Context, userID, photoID int64) error
}

type galleryService interface {
	ListPhotos(ctx context.Context, viewerID int64, page, limit int) (*gallery.Page, error)
	ListComments(ctx context.Context, photoID int64, page, limit int) (*models.CommentPage, error)
	Like(ctx context.Context, userID, photoID int64) (*models.LikeState, error)
	Unlike(ctx context.Context, userID, photoID int64) (*models.LikeState, error)
	AddComment(ctx context.Context, userID, photoID int64, text string) (*models.Comment, error)
}

type healthChecker interface {
	Ping(ctx context.Context) error
}

// API bundles the HTTP handlers and their dependencies
type API struct {
	auth        authService
	profile     profileService
	editing     editingService
	gallery     galleryService
	sink        storage.Sink
	health      healthChecker
	jwt         *middleware.JWTAuth
	rateLimiter *middleware.RateLimiter
	windows     middleware.WindowCounter
	cfg         *config.Config
	logger      *logging.Logger
}

// errorStatus maps service errors to a status code and a message safe for
// the client. ok is false for unexpected errors.
func errorStatus(err error) (status int, message string, ok bool) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message, true
	case errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict, "Username already taken", true
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, "Email already in use", true
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password", true
	case errors.Is(err, auth.ErrNotVerified):
		return http.StatusForbidden, "Please verify your e-mail before logging in", true
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusBadRequest, "Invalid or expired link", true
	case errors.Is(err, auth.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests, please try again later", true
	case errors.Is(err, profile.ErrWrongPassword):
		return http.StatusBadRequest, "Current password is incorrect", true
	case errors.Is(err, profile.ErrConfirmation):
		return http.StatusBadRequest, "Username or password confirmation does not match", true
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound, "User not found", true
	case errors.Is(err, editing.ErrNotFound), errors.Is(err, gallery.ErrNotFound):
		return http.StatusNotFound, "Photo not found", true
	case errors.Is(err, gallery.ErrAlreadyLiked):
		return http.StatusBadRequest, "You already liked this photo", true
	case errors.Is(err, gallery.ErrNotLiked):
		return http.StatusBadRequest, "You have not liked this photo", true
	case errors.Is(err, compositor.ErrAssetNotFound):
		return http.StatusBadRequest, "Unknown sticker", true
	case errors.Is(err, compositor.ErrDecode):
		return http.StatusBadRequest, "Invalid image data", true
	case errors.Is(err, compositor.ErrInvalidInput):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, compositor.ErrTimeout):
		return http.StatusServiceUnavailable, "Image processing took too long", true
	}
	return http.StatusInternalServerError, "Internal server error", false
}

func (api *API) respondError(c *gin.Context, component string, err error) {
	status, message, ok := errorStatus(err)
	if !ok {
		metrics.RecordError(component, "internal")
		l := api.logger.WithComponent(component).WithError(err).
			WithField("path", c.FullPath()).
			WithField("request_id", c.GetString(middleware.RequestIDKey))
		if userID, exists := middleware.GetUserID(c); exists {
			l = l.WithUserID(userID)
		}
		l.Error("Request failed")
	}
	fail(c, status, message)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// paramID reads a positive integer path parameter
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// currentUser returns the authenticated user id. Routes using it sit behind
// RequireAuth, so a miss is answered with 401.
func currentUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Authentication required")
	}
	return userID, ok
}
