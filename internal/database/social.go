package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/camagru/camagru/pkg/models"
	"github.com/jackc/pgx/v5"
)

// ListGallery retrieves a page of photos, newest first. viewerID 0 means an
// anonymous viewer. Each photo carries up to previewComments oldest comments.
func (r *Repository) ListGallery(ctx context.Context, viewerID int64, limit, offset, previewComments int) ([]*models.GalleryPhoto, error) {
	query := `
		SELECT
			p.id, p.file_path, p.is_gif, p.created_at,
			u.id, u.username, a.file_path,
			(SELECT COUNT(*) FROM likes l WHERE l.photo_id = p.id),
			(SELECT COUNT(*) FROM comments c WHERE c.photo_id = p.id),
			EXISTS(SELECT 1 FROM likes l WHERE l.photo_id = p.id AND l.user_id = $3)
		FROM photos p
		JOIN users u ON p.user_id = u.id
		LEFT JOIN avatars a ON u.avatar_id = a.id
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery: %w", err)
	}
	defer rows.Close()

	photos := []*models.GalleryPhoto{}
	byID := make(map[int64]*models.GalleryPhoto)
	ids := []int64{}
	for rows.Next() {
		var p models.GalleryPhoto
		err := rows.Scan(
			&p.ID, &p.FilePath, &p.IsGIF, &p.CreatedAt,
			&p.UserID, &p.Username, &p.AvatarPath,
			&p.LikeCount, &p.CommentCount, &p.IsLiked,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gallery photo: %w", err)
		}
		p.Comments = []*models.Comment{}
		photos = append(photos, &p)
		byID[p.ID] = &p
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list gallery: %w", err)
	}

	if len(ids) == 0 || previewComments <= 0 {
		return photos, nil
	}

	previews, err := r.commentPreviews(ctx, ids, previewComments)
	if err != nil {
		return nil, err
	}
	for _, c := range previews {
		if p, ok := byID[c.PhotoID]; ok {
			p.Comments = append(p.Comments, c)
		}
	}

	return photos, nil
}

// commentPreviews loads the oldest perPhoto comments of each photo in one query
func (r *Repository) commentPreviews(ctx context.Context, photoIDs []int64, perPhoto int) ([]*models.Comment, error) {
	query := `
		SELECT id, photo_id, comment_text, created_at, username, avatar_path
		FROM (
			SELECT
				c.id, c.photo_id, c.comment_text, c.created_at,
				u.username, a.file_path AS avatar_path,
				ROW_NUMBER() OVER (PARTITION BY c.photo_id ORDER BY c.created_at ASC, c.id ASC) AS rn
			FROM comments c
			JOIN users u ON c.user_id = u.id
			LEFT JOIN avatars a ON u.avatar_id = a.id
			WHERE c.photo_id = ANY($1)
		) ranked
		WHERE rn <= $2
		ORDER BY photo_id, created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, photoIDs, perPhoto)
	if err != nil {
		return nil, fmt.Errorf("failed to load comment previews: %w", err)
	}
	defer rows.Close()

	return scanComments(rows)
}

func scanComments(rows pgx.Rows) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PhotoID, &c.CommentText, &c.CreatedAt, &c.Username, &c.AvatarPath); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// PhotoExists reports whether a photo exists
func (r *Repository) PhotoExists(ctx context.Context, photoID int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM photos WHERE id = $1)`, photoID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check photo: %w", err)
	}
	return ok, nil
}

// ListComments retrieves a page of a photo's comments, oldest first, and the total count
func (r *Repository) ListComments(ctx context.Context, photoID int64, limit, offset int) ([]*models.Comment, int, error) {
	var total int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE photo_id = $1`, photoID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	query := `
		SELECT c.id, c.photo_id, c.comment_text, c.created_at, u.username, a.file_path
		FROM comments c
		JOIN users u ON c.user_id = u.id
		LEFT JOIN avatars a ON u.avatar_id = a.id
		WHERE c.photo_id = $1
		ORDER BY c.created_at ASC, c.id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, photoID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments, err := scanComments(rows)
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// GetPhotoOwner retrieves the owner of a photo for notifications
func (r *Repository) GetPhotoOwner(ctx context.Context, photoID int64) (*models.PhotoOwner, error) {
	query := `
		SELECT p.id, u.id, u.username, u.email, u.email_notifications
		FROM photos p
		JOIN users u ON p.user_id = u.id
		WHERE p.id = $1
	`

	var o models.PhotoOwner
	err := r.db.Pool.QueryRow(ctx, query, photoID).Scan(
		&o.PhotoID, &o.OwnerID, &o.Username, &o.Email, &o.EmailNotifications,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo owner: %w", err)
	}
	return &o, nil
}

// AddLike records a like. Liking twice returns ErrConflict.
func (r *Repository) AddLike(ctx context.Context, photoID, userID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO likes (photo_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		photoID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// RemoveLike removes a like. Removing a missing like returns ErrNotFound.
func (r *Repository) RemoveLike(ctx context.Context, photoID, userID int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM likes WHERE photo_id = $1 AND user_id = $2`, photoID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountLikes counts a photo's likes
func (r *Repository) CountLikes(ctx context.Context, photoID int64) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE photo_id = $1`, photoID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return n, nil
}

// CreateComment inserts a comment and returns it with the author's details
func (r *Repository) CreateComment(ctx context.Context, photoID, userID int64, text string) (*models.Comment, error) {
	query := `
		WITH inserted AS (
			INSERT INTO comments (photo_id, user_id, comment_text)
			VALUES ($1, $2, $3)
			RETURNING id, photo_id, user_id, comment_text, created_at
		)
		SELECT i.id, i.photo_id, i.comment_text, i.created_at, u.username, a.file_path
		FROM inserted i
		JOIN users u ON i.user_id = u.id
		LEFT JOIN avatars a ON u.avatar_id = a.id
	`

	var c models.Comment
	err := r.db.Pool.QueryRow(ctx, query, photoID, userID, text).Scan(
		&c.ID, &c.PhotoID, &c.CommentText, &c.CreatedAt, &c.Username, &c.AvatarPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return &c, nil
}

// ListUserFilePaths returns the stored paths of every file owned by a user
func (r *Repository) ListUserFilePaths(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT file_path, thumbnail_path FROM photos WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var file, thumb string
		if err := rows.Scan(&file, &thumb); err != nil {
			return nil, fmt.Errorf("failed to scan user files: %w", err)
		}
		paths = append(paths, file, thumb)
	}
	return paths, rows.Err()
}
