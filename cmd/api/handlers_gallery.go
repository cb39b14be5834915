package main

import (
	"net/http"

	"github.com/camagru/camagru/internal/gallery"
	"github.com/camagru/camagru/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (api *API) listGallery(c *gin.Context) {
	viewerID, _ := middleware.GetUserID(c)

	page, err := api.gallery.ListPhotos(c.Request.Context(), viewerID,
		queryInt(c, "page", 1), queryInt(c, "limit", gallery.DefaultPageSize))
	if err != nil {
		api.respondError(c, "gallery", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"photos":  page.Photos,
		"page":    page.Page,
		"hasMore": page.HasMore,
	})
}

func (api *API) listComments(c *gin.Context) {
	photoID, ok := paramID(c, "id")
	if !ok {
		return
	}

	cp, err := api.gallery.ListComments(c.Request.Context(), photoID,
		queryInt(c, "page", 1), queryInt(c, "limit", gallery.DefaultPageSize))
	if err != nil {
		api.respondError(c, "gallery", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"comments":      cp.Comments,
		"hasMore":       cp.HasMore,
		"page":          cp.Page,
		"totalComments": cp.TotalComments,
	})
}

func (api *API) likePhoto(c *gin.Context) {
	api.toggleLike(c, true)
}

func (api *API) unlikePhoto(c *gin.Context) {
	api.toggleLike(c, false)
}

func (api *API) toggleLike(c *gin.Context, like bool) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	photoID, ok := paramID(c, "id")
	if !ok {
		return
	}

	update, message := api.gallery.Unlike, "Like removed"
	if like {
		update, message = api.gallery.Like, "Photo liked"
	}

	state, err := update(c.Request.Context(), userID, photoID)
	if err != nil {
		api.respondError(c, "gallery", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    message,
		"is_liked":   state.IsLiked,
		"like_count": state.LikeCount,
	})
}

func (api *API) addComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	photoID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req struct {
		CommentText string `json:"commentText" binding:"required,max=1000"`
	}
	if !bindJSON(c, &req) {
		return
	}

	comment, err := api.gallery.AddComment(c.Request.Context(), userID, photoID, req.CommentText)
	if err != nil {
		api.respondError(c, "gallery", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Comment added", "comment": comment})
}
