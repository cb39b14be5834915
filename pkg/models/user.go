package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID                 int64      `json:"id" db:"id"`
	Username           string     `json:"username" db:"username"`
	Email              string     `json:"email" db:"email"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	IsVerified         bool       `json:"is_verified" db:"is_verified"`
	VerificationToken  *string    `json:"-" db:"verification_token"`
	ResetToken         *string    `json:"-" db:"reset_token"`
	ResetTokenExpires  *time.Time `json:"-" db:"reset_token_expires_at"`
	EmailNotifications bool       `json:"email_notifications" db:"email_notifications"`
	AvatarID           *int64     `json:"avatar_id,omitempty" db:"avatar_id"`
	AvatarPath         *string    `json:"avatar,omitempty" db:"avatar_path"`
	LastActivity       *time.Time `json:"last_activity,omitempty" db:"last_activity"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Profile is the public view of a user returned by the profile endpoints
type Profile struct {
	ID                 int64   `json:"id"`
	Username           string  `json:"username"`
	Email              string  `json:"email"`
	EmailNotifications bool    `json:"emailNotifications"`
	AvatarID           *int64  `json:"avatarId"`
	Avatar             *string `json:"avatar"`
}

// ToProfile converts a user into its profile view
func (u *User) ToProfile() *Profile {
	return &Profile{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		EmailNotifications: u.EmailNotifications,
		AvatarID:           u.AvatarID,
		Avatar:             u.AvatarPath,
	}
}

// ProfileUpdate holds the editable profile fields
type ProfileUpdate struct {
	Username           string
	Email              string
	EmailNotifications bool
	AvatarID           *int64
}
