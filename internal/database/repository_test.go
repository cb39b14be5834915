package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/camagru/camagru/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRepository connects to TEST_DATABASE_URL and applies migrations.
// Tests are skipped when it is not set.
func setupRepository(t *testing.T) *Repository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping integration test - TEST_DATABASE_URL not set")
	}

	db, err := NewFromURL(url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(context.Background()))
	return NewRepository(db)
}

func createTestUser(t *testing.T, repo *Repository) *models.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	token := uuid.NewString()
	user := &models.User{
		Username:           "u_" + suffix,
		Email:              fmt.Sprintf("%s@example.com", suffix),
		PasswordHash:       "hash",
		VerificationToken:  &token,
		EmailNotifications: true,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	t.Cleanup(func() { _ = repo.DeleteUser(context.Background(), user.ID) })
	return user
}

func TestRepository_Users(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	user := createTestUser(t, repo)
	assert.NotZero(t, user.ID)

	t.Run("duplicate username ignores case", func(t *testing.T) {
		dup := &models.User{Username: user.Username, Email: "other-" + user.Email, PasswordHash: "x"}
		dup.Username = "U" + user.Username[1:]
		assert.ErrorIs(t, repo.CreateUser(ctx, dup), ErrConflict)
	})

	t.Run("login by username or email", func(t *testing.T) {
		byName, err := repo.GetUserByLogin(ctx, user.Username)
		require.NoError(t, err)
		byEmail, err := repo.GetUserByLogin(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, byName.ID, byEmail.ID)

		_, err = repo.GetUserByLogin(ctx, "nobody-"+uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("verify", func(t *testing.T) {
		id, err := repo.VerifyUser(ctx, *user.VerificationToken, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)

		_, err = repo.VerifyUser(ctx, *user.VerificationToken, time.Now().Add(-24*time.Hour))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("reset password", func(t *testing.T) {
		token := uuid.NewString()
		require.NoError(t, repo.SetResetToken(ctx, user.ID, token, time.Now().Add(time.Hour)))

		ok, err := repo.ResetTokenValid(ctx, token)
		require.NoError(t, err)
		assert.True(t, ok)

		id, err := repo.ResetPassword(ctx, token, "new-hash")
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)

		_, err = repo.ResetPassword(ctx, token, "again")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("conflicts exclude self", func(t *testing.T) {
		nameTaken, emailTaken, err := repo.FindConflicts(ctx, user.Username, user.Email, user.ID)
		require.NoError(t, err)
		assert.False(t, nameTaken)
		assert.False(t, emailTaken)

		nameTaken, emailTaken, err = repo.FindConflicts(ctx, user.Username, user.Email, 0)
		require.NoError(t, err)
		assert.True(t, nameTaken)
		assert.True(t, emailTaken)
	})
}

func TestRepository_PhotosAndSocial(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	owner := createTestUser(t, repo)
	viewer := createTestUser(t, repo)

	photo := &models.Photo{
		UserID:        owner.ID,
		FilePath:      "/uploads/photos/" + uuid.NewString() + ".png",
		ThumbnailPath: "/uploads/thumbnails/thumb_x.png",
	}
	require.NoError(t, repo.CreatePhoto(ctx, photo))
	assert.NotZero(t, photo.ID)

	photos, err := repo.ListUserPhotos(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, photo.FilePath, photos[0].FilePath)

	_, err = repo.GetUserPhoto(ctx, photo.ID, viewer.ID)
	assert.ErrorIs(t, err, ErrNotFound, "photos are only visible to their owner")

	require.NoError(t, repo.AddLike(ctx, photo.ID, viewer.ID))
	assert.ErrorIs(t, repo.AddLike(ctx, photo.ID, viewer.ID), ErrConflict)

	n, err := repo.CountLikes(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for i := 0; i < 7; i++ {
		_, err := repo.CreateComment(ctx, photo.ID, viewer.ID, fmt.Sprintf("comment %d", i))
		require.NoError(t, err)
	}

	gallery, err := repo.ListGallery(ctx, viewer.ID, 50, 0, 5)
	require.NoError(t, err)
	var found *models.GalleryPhoto
	for _, p := range gallery {
		if p.ID == photo.ID {
			found = p
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.IsLiked)
	assert.Equal(t, 1, found.LikeCount)
	assert.Equal(t, 7, found.CommentCount)
	require.Len(t, found.Comments, 5)
	assert.Equal(t, "comment 0", found.Comments[0].CommentText)

	comments, total, err := repo.ListComments(ctx, photo.ID, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, comments, 2)

	require.NoError(t, repo.RemoveLike(ctx, photo.ID, viewer.ID))
	assert.ErrorIs(t, repo.RemoveLike(ctx, photo.ID, viewer.ID), ErrNotFound)

	require.NoError(t, repo.DeletePhoto(ctx, photo.ID, owner.ID))
	assert.ErrorIs(t, repo.DeletePhoto(ctx, photo.ID, owner.ID), ErrNotFound)
}

func TestRepository_Assets(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	stickers, err := repo.ListStickers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, stickers)

	s, err := repo.GetSticker(ctx, stickers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, stickers[0].FilePath, s.FilePath)

	_, err = repo.GetSticker(ctx, -1)
	assert.ErrorIs(t, err, ErrNotFound)

	avatars, err := repo.ListAvatars(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, avatars)

	ok, err := repo.AvatarExists(ctx, avatars[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
