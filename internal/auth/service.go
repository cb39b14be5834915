package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camagru/camagru/internal/database"
	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/metrics"
	"github.com/camagru/camagru/internal/middleware"
	"github.com/camagru/camagru/pkg/models"
	"github.com/google/uuid"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrRateLimited        = errors.New("too many requests")
)

// Repository is the account persistence the auth service needs
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindConflicts(ctx context.Context, username, email string, excludeID int64) (bool, bool, error)
	VerifyUser(ctx context.Context, token string, notBefore time.Time) (int64, error)
	SetResetToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	ResetTokenValid(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, passwordHash string) (int64, error)
	TouchActivity(ctx context.Context, userID int64) error
}

// EmailQueue hands e-mails to the worker
type EmailQueue interface {
	PublishEmail(ctx context.Context, job *models.EmailJob) error
}

// SessionStore revokes session tokens and counts rate limited actions
type SessionStore interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// Config holds auth service settings
type Config struct {
	TokenTTL        time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	// ResetRequestsPerHour caps forgot-password requests per address
	ResetRequestsPerHour int64
}

// Session is the result of a successful login
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Status describes the caller's session
type Status struct {
	IsAuthenticated bool        `json:"isAuthenticated"`
	User            *StatusUser `json:"user,omitempty"`
}

// StatusUser is the public part of the logged in user
type StatusUser struct {
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
}

// Service implements account registration and sessions
type Service struct {
	repo     Repository
	queue    EmailQueue
	sessions SessionStore
	jwt      *middleware.JWTAuth
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time

	// compared against when the login is unknown so both paths cost one hash
	dummyHash string
}

// NewService creates an auth service
func NewService(repo Repository, queue EmailQueue, sessions SessionStore, jwt *middleware.JWTAuth, cfg Config, logger *logging.Logger) *Service {
	if cfg.ResetRequestsPerHour <= 0 {
		cfg.ResetRequestsPerHour = 3
	}
	dummy, _ := HashPassword(uuid.NewString())
	return &Service{
		repo:      repo,
		queue:     queue,
		sessions:  sessions,
		jwt:       jwt,
		cfg:       cfg,
		logger:    logger.WithComponent("auth"),
		now:       time.Now,
		dummyHash: dummy,
	}
}

// Register creates an unverified account and sends the verification e-mail
func (s *Service) Register(ctx context.Context, username, email, password string) (user *models.User, err error) {
	defer func() { metrics.RecordAuthEvent("register", err) }()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	usernameTaken, emailTaken, err := s.repo.FindConflicts(ctx, username, email, 0)
	if err != nil {
		return nil, err
	}
	if err := conflictError(usernameTaken, emailTaken); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	user = &models.User{
		Username:           username,
		Email:              email,
		PasswordHash:       hash,
		VerificationToken:  &token,
		EmailNotifications: true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			// Lost a race with a concurrent registration
			return nil, s.raceConflict(ctx, username, email)
		}
		return nil, err
	}

	s.sendEmail(ctx, &models.EmailJob{
		Kind:     models.EmailVerification,
		To:       user.Email,
		Username: user.Username,
		Token:    token,
	})

	s.logger.WithUserID(user.ID).Info("User registered")
	return user, nil
}

// raceConflict reports which field a concurrent registration took
func (s *Service) raceConflict(ctx context.Context, username, email string) error {
	usernameTaken, emailTaken, err := s.repo.FindConflicts(ctx, username, email, 0)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to recheck registration conflict")
		return ErrUsernameTaken
	}
	if err := conflictError(usernameTaken, emailTaken); err != nil {
		return err
	}
	return ErrUsernameTaken
}

func conflictError(usernameTaken, emailTaken bool) error {
	switch {
	case usernameTaken:
		return ErrUsernameTaken
	case emailTaken:
		return ErrEmailTaken
	}
	return nil
}

// Verify activates the account holding token
func (s *Service) Verify(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	id, err := s.repo.VerifyUser(ctx, token, s.now().Add(-s.cfg.VerificationTTL))
	metrics.RecordAuthEvent("verify", err)
	if errors.Is(err, database.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	s.logger.WithUserID(id).Info("User verified")
	return nil
}

// Login checks credentials given as username or e-mail and issues a session
func (s *Service) Login(ctx context.Context, login, password string) (session *Session, err error) {
	defer func() { metrics.RecordAuthEvent("login", err) }()

	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByLogin(ctx, login)
	if errors.Is(err, database.ErrNotFound) {
		VerifyPassword(s.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := VerifyPassword(user.PasswordHash, password)
	if err != nil {
		s.logger.WithUserID(user.ID).WithError(err).Error("Stored password hash is unreadable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	token, claims, err := s.jwt.GenerateToken(user.ID, user.Username, s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TouchActivity(ctx, user.ID); err != nil {
		s.logger.WithUserID(user.ID).WithError(err).Warn("Failed to record activity")
	}

	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Logout revokes the session until it would have expired
func (s *Service) Logout(ctx context.Context, claims *middleware.Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.sessions.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time.Sub(s.now())); err != nil {
		return err
	}
	metrics.RecordAuthEvent("logout", nil)
	return nil
}

// ForgotPassword sends a reset link. Unknown addresses succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	allowed, err := s.sessions.CheckRateLimit(ctx, "forgot:"+strings.ToLower(email), s.cfg.ResetRequestsPerHour, time.Hour)
	if err != nil {
		s.logger.WithError(err).Warn("Reset rate limit unavailable")
	} else if !allowed {
		return ErrRateLimited
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := s.repo.SetResetToken(ctx, user.ID, token, s.now().Add(s.cfg.ResetTTL)); err != nil {
		return err
	}

	s.sendEmail(ctx, &models.EmailJob{
		Kind:     models.EmailPasswordReset,
		To:       user.Email,
		Username: user.Username,
		Token:    token,
	})
	metrics.RecordAuthEvent("forgot_password", nil)
	return nil
}

// ResetTokenValid reports whether a reset link can still be used
func (s *Service) ResetTokenValid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.repo.ResetTokenValid(ctx, token)
}

// ResetPassword replaces the password of the account holding token
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	id, err := s.repo.ResetPassword(ctx, token, hash)
	metrics.RecordAuthEvent("reset_password", err)
	if errors.Is(err, database.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	s.logger.WithUserID(id).Info("Password reset")
	return nil
}

// Status describes the session of userID; zero means anonymous
func (s *Service) Status(ctx context.Context, userID int64) (*Status, error) {
	if userID == 0 {
		return &Status{}, nil
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	return &Status{
		IsAuthenticated: true,
		User:            &StatusUser{Username: user.Username, Avatar: user.AvatarPath},
	}, nil
}

// sendEmail queues a job. The account change it belongs to has already been
// stored, so failures are logged rather than returned.
func (s *Service) sendEmail(ctx context.Context, job *models.EmailJob) {
	if err := s.queue.PublishEmail(ctx, job); err != nil {
		metrics.RecordError("auth", "email_queue")
		s.logger.WithError(err).WithField("kind", string(job.Kind)).Error("Failed to queue e-mail")
		return
	}
	metrics.RecordEmailQueued(string(job.Kind))
}
