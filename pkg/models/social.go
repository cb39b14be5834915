package models

import "time"

// Comment represents a comment on a photo
type Comment struct {
	ID          int64     `json:"id" db:"id"`
	PhotoID     int64     `json:"-" db:"photo_id"`
	CommentText string    `json:"comment_text" db:"comment_text"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Username    string    `json:"username" db:"username"`
	AvatarPath  *string   `json:"avatar_path" db:"avatar_path"`
}

// CommentPage is one page of a photo's comments
type CommentPage struct {
	Comments      []*Comment `json:"comments"`
	HasMore       bool       `json:"hasMore"`
	Page          int        `json:"page"`
	TotalComments int        `json:"totalComments"`
}

// LikeState is returned after a like or unlike
type LikeState struct {
	IsLiked   bool `json:"is_liked"`
	LikeCount int  `json:"like_count"`
}
