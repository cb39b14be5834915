package models

import "time"

// Photo represents a published image or animation
type Photo struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	FilePath      string    `json:"file_path" db:"file_path"`
	ThumbnailPath string    `json:"thumbnail_path" db:"thumbnail_path"`
	IsGIF         bool      `json:"is_gif" db:"is_gif"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// GalleryPhoto is a photo as shown in the public gallery
type GalleryPhoto struct {
	ID           int64      `json:"id"`
	FilePath     string     `json:"file_path"`
	IsGIF        bool       `json:"is_gif"`
	CreatedAt    time.Time  `json:"created_at"`
	UserID       int64      `json:"user_id"`
	Username     string     `json:"username"`
	AvatarPath   *string    `json:"avatar_path"`
	LikeCount    int        `json:"like_count"`
	CommentCount int        `json:"comment_count"`
	IsLiked      bool       `json:"is_liked"`
	Comments     []*Comment `json:"comments"`
}

// PhotoOwner carries the owner details needed for comment notifications
type PhotoOwner struct {
	PhotoID            int64
	OwnerID            int64
	Username           string
	Email              string
	EmailNotifications bool
}
