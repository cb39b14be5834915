package main

import (
	"net/http"

	"github.com/camagru/camagru/internal/middleware"
	"github.com/camagru/camagru/pkg/models"
	"github.com/gin-gonic/gin"
)

func (api *API) getProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	p, err := api.profile.GetProfile(c.Request.Context(), userID)
	if err != nil {
		api.respondError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": p})
}

func (api *API) listAvatars(c *gin.Context) {
	avatars, err := api.profile.ListAvatars(c.Request.Context())
	if err != nil {
		api.respondError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "avatars": avatars})
}

func (api *API) updateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Username           string `json:"username" binding:"required,username"`
		Email              string `json:"email" binding:"required,email,max=254"`
		EmailNotifications bool   `json:"emailNotifications"`
		AvatarID           *int64 `json:"avatarId" binding:"omitempty,gt=0"`
	}
	if !bindJSON(c, &req) {
		return
	}

	p, err := api.profile.UpdateProfile(c.Request.Context(), userID, models.ProfileUpdate{
		Username:           req.Username,
		Email:              req.Email,
		EmailNotifications: req.EmailNotifications,
		AvatarID:           req.AvatarID,
	})
	if err != nil {
		api.respondError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated", "user": p})
}

func (api *API) changePassword(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required,min=8,max=128"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := api.profile.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		api.respondError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed"})
}

func (api *API) deleteAccount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := api.profile.DeleteAccount(c.Request.Context(), userID, req.Username, req.Password); err != nil {
		api.respondError(c, "profile", err)
		return
	}

	if claims, ok := middleware.GetClaims(c); ok {
		if err := api.auth.Logout(c.Request.Context(), claims); err != nil {
			api.logger.WithError(err).WithUserID(userID).Warn("Failed to revoke session of deleted account")
		}
	}
	api.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Account deleted"})
}
