package main

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/camagru/camagru/internal/editing"
	"github.com/camagru/camagru/internal/storage"
	"github.com/camagru/camagru/pkg/models"
	"github.com/gin-gonic/gin"
)

func (api *API) listStickers(c *gin.Context) {
	stickers, err := api.editing.ListStickers(c.Request.Context())
	if err != nil {
		api.respondError(c, "editing", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stickers": stickers})
}

func (api *API) listUserPhotos(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	photos, err := api.editing.ListUserPhotos(c.Request.Context(), userID)
	if err != nil {
		api.respondError(c, "editing", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "photos": photos})
}

func (api *API) savePhoto(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req editing.SaveRequest
	if !bindJSON(c, &req) {
		return
	}

	photo, err := api.editing.SavePhoto(c.Request.Context(), userID, req)
	if err != nil {
		api.respondError(c, "editing", err)
		return
	}
	created(c, "Photo saved", photo)
}

// previewPhoto returns the composited image without publishing it
func (api *API) previewPhoto(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req editing.SaveRequest
	if !bindJSON(c, &req) {
		return
	}

	imageData, err := api.editing.Preview(c.Request.Context(), userID, req)
	if err != nil {
		api.respondError(c, "editing", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imageData": imageData})
}

func (api *API) createGIF(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req editing.GIFRequest
	if !bindJSON(c, &req) {
		return
	}

	photo, err := api.editing.CreateGIF(c.Request.Context(), userID, req)
	if err != nil {
		api.respondError(c, "editing", err)
		return
	}
	created(c, "GIF created", photo)
}

func created(c *gin.Context, message string, photo *models.Photo) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": message,
		"photoId": photo.ID,
		"path":    photo.FilePath,
	})
}

func (api *API) deletePhoto(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	photoID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := api.editing.DeletePhoto(c.Request.Context(), userID, photoID); err != nil {
		api.respondError(c, "editing", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Photo deleted"})
}

// serveUpload streams a stored photo or thumbnail from the save sink
func (api *API) serveUpload(c *gin.Context) {
	key, ok := storage.KeyFromPath(storage.PublicPrefix + strings.TrimPrefix(c.Param("key"), "/"))
	if !ok {
		fail(c, http.StatusNotFound, "Not found")
		return
	}

	rc, err := api.sink.Get(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		api.respondError(c, "storage", err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", storage.ContentType(key))
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		api.logger.WithError(err).WithField("key", key).Warn("Failed to stream upload")
	}
}
