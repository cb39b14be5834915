package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camagru/camagru/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated
	ErrConflict = errors.New("already exists")
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Health(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Users

const userColumns = `
	u.id, u.username, u.email, u.password_hash, u.is_verified,
	u.verification_token, u.reset_token, u.reset_token_expires_at,
	u.email_notifications, u.avatar_id, a.file_path, u.last_activity,
	u.created_at, u.updated_at
`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsVerified,
		&u.VerificationToken, &u.ResetToken, &u.ResetTokenExpires,
		&u.EmailNotifications, &u.AvatarID, &u.AvatarPath, &u.LastActivity,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new unverified user
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, verification_token, email_notifications)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.VerificationToken, user.EmailNotifications,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user with their avatar path
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN avatars a ON u.avatar_id = a.id
		WHERE u.id = $1
	`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, err
}

// GetUserByLogin retrieves a user by username or e-mail, ignoring case
func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN avatars a ON u.avatar_id = a.id
		WHERE LOWER(u.username) = LOWER($1) OR LOWER(u.email) = LOWER($1)
		LIMIT 1
	`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, login))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, err
}

// GetUserByEmail retrieves a user by e-mail, ignoring case
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN avatars a ON u.avatar_id = a.id
		WHERE LOWER(u.email) = LOWER($1)
	`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, err
}

// FindConflicts reports whether username or email are used by another user
func (r *Repository) FindConflicts(ctx context.Context, username, email string, excludeID int64) (usernameTaken, emailTaken bool, err error) {
	query := `
		SELECT
			EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) AND id <> $3),
			EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($2) AND id <> $3)
	`

	err = r.db.Pool.QueryRow(ctx, query, username, email, excludeID).Scan(&usernameTaken, &emailTaken)
	if err != nil {
		return false, false, fmt.Errorf("failed to check user conflicts: %w", err)
	}
	return usernameTaken, emailTaken, nil
}

// VerifyUser marks the account holding token as verified. Tokens issued
// before notBefore are rejected.
func (r *Repository) VerifyUser(ctx context.Context, token string, notBefore time.Time) (int64, error) {
	query := `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL, updated_at = NOW()
		WHERE verification_token = $1 AND is_verified = FALSE AND created_at > $2
		RETURNING id
	`

	var id int64
	err := r.db.Pool.QueryRow(ctx, query, token, notBefore).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to verify user: %w", err)
	}
	return id, nil
}

// SetResetToken stores a password reset token
func (r *Repository) SetResetToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_token = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetTokenValid reports whether token exists and has not expired
func (r *Repository) ResetTokenValid(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE reset_token = $1 AND reset_token_expires_at > NOW())`

	var ok bool
	if err := r.db.Pool.QueryRow(ctx, query, token).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check reset token: %w", err)
	}
	return ok, nil
}

// ResetPassword replaces the password of the account holding a live reset token
func (r *Repository) ResetPassword(ctx context.Context, token, passwordHash string) (int64, error) {
	query := `
		UPDATE users
		SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		WHERE reset_token = $1 AND reset_token_expires_at > NOW()
		RETURNING id
	`

	var id int64
	err := r.db.Pool.QueryRow(ctx, query, token, passwordHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reset password: %w", err)
	}
	return id, nil
}

// UpdateProfile updates the editable profile fields
func (r *Repository) UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, email_notifications = $4, avatar_id = $5, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, userID, upd.Username, upd.Email, upd.EmailNotifications, upd.AvatarID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchActivity records the time of the user's last authenticated request
func (r *Repository) TouchActivity(ctx context.Context, userID int64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE users SET last_activity = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return nil
}

// DeleteUser removes a user; photos, likes and comments cascade
func (r *Repository) DeleteUser(ctx context.Context, userID int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
