package gallery

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/camagru/camagru/internal/auth"
	"github.com/camagru/camagru/internal/database"
	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/metrics"
	"github.com/camagru/camagru/pkg/models"
)

const (
	DefaultPageSize  = 5
	MaxPageSize      = 50
	PreviewComments  = 5
	MaxCommentLength = 1000
)

var (
	ErrNotFound     = errors.New("photo not found")
	ErrAlreadyLiked = errors.New("photo already liked")
	ErrNotLiked     = errors.New("photo not liked")
)

// Repository is the persistence the gallery needs
type Repository interface {
	ListGallery(ctx context.Context, viewerID int64, limit, offset, previewComments int) ([]*models.GalleryPhoto, error)
	PhotoExists(ctx context.Context, photoID int64) (bool, error)
	ListComments(ctx context.Context, photoID int64, limit, offset int) ([]*models.Comment, int, error)
	GetPhotoOwner(ctx context.Context, photoID int64) (*models.PhotoOwner, error)
	AddLike(ctx context.Context, photoID, userID int64) error
	RemoveLike(ctx context.Context, photoID, userID int64) error
	CountLikes(ctx context.Context, photoID int64) (int, error)
	CreateComment(ctx context.Context, photoID, userID int64, text string) (*models.Comment, error)
}

// EmailQueue hands e-mails to the worker
type EmailQueue interface {
	PublishEmail(ctx context.Context, job *models.EmailJob) error
}

// Page is one page of the public gallery
type Page struct {
	Photos  []*models.GalleryPhoto `json:"photos"`
	Page    int                    `json:"page"`
	HasMore bool                   `json:"hasMore"`
}

// Service serves the public gallery and its likes and comments
type Service struct {
	repo   Repository
	queue  EmailQueue
	logger *logging.Logger
}

// NewService creates a gallery service
func NewService(repo Repository, queue EmailQueue, logger *logging.Logger) *Service {
	return &Service{repo: repo, queue: queue, logger: logger.WithComponent("gallery")}
}

// paging normalises 1-based page numbers and page sizes
func paging(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

// ListPhotos returns a page of photos, newest first. viewerID 0 is anonymous.
func (s *Service) ListPhotos(ctx context.Context, viewerID int64, page, limit int) (*Page, error) {
	page, limit, offset := paging(page, limit)

	photos, err := s.repo.ListGallery(ctx, viewerID, limit+1, offset, PreviewComments)
	if err != nil {
		return nil, err
	}

	hasMore := len(photos) > limit
	if hasMore {
		photos = photos[:limit]
	}
	return &Page{Photos: photos, Page: page, HasMore: hasMore}, nil
}

// ListComments returns a page of a photo's comments, oldest first
func (s *Service) ListComments(ctx context.Context, photoID int64, page, limit int) (*models.CommentPage, error) {
	if err := s.requirePhoto(ctx, photoID); err != nil {
		return nil, err
	}

	page, limit, offset := paging(page, limit)
	comments, total, err := s.repo.ListComments(ctx, photoID, limit, offset)
	if err != nil {
		return nil, err
	}

	return &models.CommentPage{
		Comments:      comments,
		HasMore:       offset+len(comments) < total,
		Page:          page,
		TotalComments: total,
	}, nil
}

// Like records the caller's like and returns the new state
func (s *Service) Like(ctx context.Context, userID, photoID int64) (*models.LikeState, error) {
	if err := s.requirePhoto(ctx, photoID); err != nil {
		return nil, err
	}

	if err := s.repo.AddLike(ctx, photoID, userID); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrAlreadyLiked
		}
		return nil, err
	}
	metrics.RecordLike("like")

	return s.likeState(ctx, photoID, true)
}

// Unlike removes the caller's like and returns the new state
func (s *Service) Unlike(ctx context.Context, userID, photoID int64) (*models.LikeState, error) {
	if err := s.requirePhoto(ctx, photoID); err != nil {
		return nil, err
	}

	if err := s.repo.RemoveLike(ctx, photoID, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotLiked
		}
		return nil, err
	}
	metrics.RecordLike("unlike")

	return s.likeState(ctx, photoID, false)
}

func (s *Service) likeState(ctx context.Context, photoID int64, liked bool) (*models.LikeState, error) {
	n, err := s.repo.CountLikes(ctx, photoID)
	if err != nil {
		return nil, err
	}
	return &models.LikeState{IsLiked: liked, LikeCount: n}, nil
}

// AddComment posts a comment and notifies the photo owner by e-mail when
// someone else commented and the owner accepts notifications
func (s *Service) AddComment(ctx context.Context, userID, photoID int64, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &auth.ValidationError{Message: "Comment cannot be empty"}
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, &auth.ValidationError{Message: "Comment is too long"}
	}

	owner, err := s.repo.GetPhotoOwner(ctx, photoID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	comment, err := s.repo.CreateComment(ctx, photoID, userID, text)
	if err != nil {
		return nil, err
	}
	metrics.RecordComment()

	if owner.OwnerID != userID && owner.EmailNotifications {
		s.notify(ctx, owner, comment.Username)
	}
	return comment, nil
}

func (s *Service) notify(ctx context.Context, owner *models.PhotoOwner, actor string) {
	job := &models.EmailJob{
		Kind:     models.EmailCommentNotification,
		To:       owner.Email,
		Username: owner.Username,
		Actor:    actor,
	}
	if err := s.queue.PublishEmail(ctx, job); err != nil {
		metrics.RecordError("gallery", "email_queue")
		s.logger.WithPhotoID(owner.PhotoID).WithError(err).Warn("Failed to queue comment notification")
		return
	}
	metrics.RecordEmailQueued(string(job.Kind))
}

func (s *Service) requirePhoto(ctx context.Context, photoID int64) error {
	ok, err := s.repo.PhotoExists(ctx, photoID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
