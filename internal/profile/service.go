package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/camagru/camagru/internal/auth"
	"github.com/camagru/camagru/internal/database"
	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/storage"
	"github.com/camagru/camagru/pkg/models"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrWrongPassword = errors.New("current password is incorrect")
	ErrConfirmation  = errors.New("username or password confirmation does not match")
)

// Repository is the persistence the profile service needs
type Repository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListAvatars(ctx context.Context) ([]*models.Avatar, error)
	AvatarExists(ctx context.Context, id int64) (bool, error)
	FindConflicts(ctx context.Context, username, email string, excludeID int64) (bool, bool, error)
	UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	ListUserFilePaths(ctx context.Context, userID int64) ([]string, error)
	DeleteUser(ctx context.Context, userID int64) error
}

// Service manages a user's own account
type Service struct {
	repo   Repository
	sink   storage.Sink
	logger *logging.Logger
}

// NewService creates a profile service
func NewService(repo Repository, sink storage.Sink, logger *logging.Logger) *Service {
	return &Service{repo: repo, sink: sink, logger: logger.WithComponent("profile")}
}

func (s *Service) user(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

// GetProfile returns the caller's profile
func (s *Service) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.ToProfile(), nil
}

// ListAvatars returns the selectable avatars
func (s *Service) ListAvatars(ctx context.Context) ([]*models.Avatar, error) {
	return s.repo.ListAvatars(ctx)
}

// UpdateProfile checks the avatar and uniqueness and stores new profile
// fields. Field formats are checked when the request is bound.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) (*models.Profile, error) {
	upd.Username = strings.TrimSpace(upd.Username)
	upd.Email = strings.TrimSpace(upd.Email)

	if upd.AvatarID != nil {
		ok, err := s.repo.AvatarExists(ctx, *upd.AvatarID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &auth.ValidationError{Message: "Unknown avatar"}
		}
	}

	usernameTaken, emailTaken, err := s.repo.FindConflicts(ctx, upd.Username, upd.Email, userID)
	if err != nil {
		return nil, err
	}
	if usernameTaken {
		return nil, auth.ErrUsernameTaken
	}
	if emailTaken {
		return nil, auth.ErrEmailTaken
	}

	err = s.repo.UpdateProfile(ctx, userID, upd)
	switch {
	case errors.Is(err, database.ErrConflict):
		return nil, auth.ErrUsernameTaken
	case errors.Is(err, database.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}

	s.logger.WithUserID(userID).Info("Profile updated")
	return s.GetProfile(ctx, userID)
}

// ChangePassword replaces the password after checking the current one
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, current)
	if err != nil || !ok {
		return ErrWrongPassword
	}
	if current == next {
		return &auth.ValidationError{Message: "The new password must differ from the current one"}
	}
	if err := auth.ValidatePassword(next); err != nil {
		return err
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.WithUserID(userID).Info("Password changed")
	return nil
}

// DeleteAccount removes the caller's account and then its files once the
// username and password have been confirmed. Likes and comments go with the
// account.
func (s *Service) DeleteAccount(ctx context.Context, userID int64, username, password string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}

	if !strings.EqualFold(strings.TrimSpace(username), user.Username) {
		return ErrConfirmation
	}
	ok, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil || !ok {
		return ErrConfirmation
	}

	paths, err := s.repo.ListUserFilePaths(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	// files only go once the rows are gone
	for _, p := range paths {
		key, ok := storage.KeyFromPath(p)
		if !ok {
			continue
		}
		if err := s.sink.Delete(ctx, key); err != nil {
			s.logger.WithUserID(userID).WithError(err).WithField("key", key).Warn("Failed to remove photo file")
		}
	}

	s.logger.WithUserID(userID).WithField("files", len(paths)).Info("Account deleted")
	return nil
}
