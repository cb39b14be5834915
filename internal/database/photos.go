package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/camagru/camagru/pkg/models"
	"github.com/jackc/pgx/v5"
)

// CreatePhoto inserts a photo record
func (r *Repository) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (user_id, file_path, thumbnail_path, is_gif)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		photo.UserID, photo.FilePath, photo.ThumbnailPath, photo.IsGIF,
	).Scan(&photo.ID, &photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}

	return nil
}

// GetUserPhoto retrieves a photo owned by userID
func (r *Repository) GetUserPhoto(ctx context.Context, photoID, userID int64) (*models.Photo, error) {
	query := `
		SELECT id, user_id, file_path, thumbnail_path, is_gif, created_at
		FROM photos
		WHERE id = $1 AND user_id = $2
	`

	var p models.Photo
	err := r.db.Pool.QueryRow(ctx, query, photoID, userID).Scan(
		&p.ID, &p.UserID, &p.FilePath, &p.ThumbnailPath, &p.IsGIF, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}

	return &p, nil
}

// ListUserPhotos retrieves a user's photos, newest first
func (r *Repository) ListUserPhotos(ctx context.Context, userID int64) ([]*models.Photo, error) {
	query := `
		SELECT id, user_id, file_path, thumbnail_path, is_gif, created_at
		FROM photos
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	photos := []*models.Photo{}
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.UserID, &p.FilePath, &p.ThumbnailPath, &p.IsGIF, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, &p)
	}

	return photos, rows.Err()
}

// DeletePhoto removes a photo owned by userID
func (r *Repository) DeletePhoto(ctx context.Context, photoID, userID int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM photos WHERE id = $1 AND user_id = $2`, photoID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
