package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/camagru/camagru/pkg/models"
	"github.com/jackc/pgx/v5"
)

// ListStickers retrieves all stickers
func (r *Repository) ListStickers(ctx context.Context) ([]*models.Sticker, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, name, file_path FROM stickers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stickers: %w", err)
	}
	defer rows.Close()

	stickers := []*models.Sticker{}
	for rows.Next() {
		var s models.Sticker
		if err := rows.Scan(&s.ID, &s.Name, &s.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan sticker: %w", err)
		}
		stickers = append(stickers, &s)
	}

	return stickers, rows.Err()
}

// GetSticker retrieves a sticker by ID
func (r *Repository) GetSticker(ctx context.Context, id int64) (*models.Sticker, error) {
	var s models.Sticker
	err := r.db.Pool.QueryRow(ctx, `SELECT id, name, file_path FROM stickers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.FilePath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sticker: %w", err)
	}
	return &s, nil
}

// ListAvatars retrieves all avatars
func (r *Repository) ListAvatars(ctx context.Context) ([]*models.Avatar, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, name, file_path FROM avatars ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list avatars: %w", err)
	}
	defer rows.Close()

	avatars := []*models.Avatar{}
	for rows.Next() {
		var a models.Avatar
		if err := rows.Scan(&a.ID, &a.Name, &a.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan avatar: %w", err)
		}
		avatars = append(avatars, &a)
	}

	return avatars, rows.Err()
}

// AvatarExists reports whether an avatar with id exists
func (r *Repository) AvatarExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM avatars WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check avatar: %w", err)
	}
	return ok, nil
}
