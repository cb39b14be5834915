package main

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/camagru/camagru/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.health.Ping(ctx); err != nil {
		api.logger.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (api *API) register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,username"`
		Email    string `json:"email" binding:"required,email,max=254"`
		Password string `json:"password" binding:"required,min=8,max=128"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if _, err := api.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password); err != nil {
		api.respondError(c, "auth", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful, check your e-mail to activate your account",
	})
}

// verify is the target of the link in the verification e-mail
func (api *API) verify(c *gin.Context) {
	target := "/login?verified=true"
	if err := api.auth.Verify(c.Request.Context(), c.Param("token")); err != nil {
		if status, _, _ := errorStatus(err); status == http.StatusInternalServerError {
			api.logger.WithError(err).Error("Account verification failed")
		}
		target = "/login?verified=false"
	}
	c.Redirect(http.StatusFound, api.frontendURL(target))
}

func (api *API) login(c *gin.Context) {
	var req struct {
		Login    string `json:"login" binding:"required_without=Username"`
		Username string `json:"username"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Login == "" {
		req.Login = req.Username
	}

	session, err := api.auth.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		api.respondError(c, "auth", err)
		return
	}

	api.setSessionCookie(c, session.Token, time.Until(session.ExpiresAt))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user": gin.H{
			"username": session.User.Username,
			"avatar":   session.User.AvatarPath,
		},
	})
}

func (api *API) logout(c *gin.Context) {
	if claims, ok := middleware.GetClaims(c); ok {
		if err := api.auth.Logout(c.Request.Context(), claims); err != nil {
			api.logger.WithError(err).WithUserID(claims.UserID).Warn("Failed to revoke session")
		}
	}

	api.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (api *API) status(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	status, err := api.auth.Status(c.Request.Context(), userID)
	if err != nil {
		api.respondError(c, "auth", err)
		return
	}
	if !status.IsAuthenticated && userID != 0 {
		api.setSessionCookie(c, "", -1)
	}
	c.JSON(http.StatusOK, status)
}

func (api *API) forgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := api.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		api.respondError(c, "auth", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If an account exists for this address, a reset link has been sent",
	})
}

// resetPasswordRedirect is the target of the link in the reset e-mail. It
// forwards valid tokens to the frontend form.
func (api *API) resetPasswordRedirect(c *gin.Context) {
	token := c.Param("token")
	ok, err := api.auth.ResetTokenValid(c.Request.Context(), token)
	if err != nil {
		api.logger.WithError(err).Error("Failed to check reset token")
	}
	if err != nil || !ok {
		c.Redirect(http.StatusFound, api.frontendURL("/login?reset=expired"))
		return
	}
	c.Redirect(http.StatusFound, api.frontendURL("/reset-password?token="+url.QueryEscape(token)))
}

func (api *API) resetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required,min=8,max=128"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := api.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		api.respondError(c, "auth", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated, you can now log in"})
}

// setSessionCookie writes the session cookie. A negative ttl clears it.
func (api *API) setSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(api.jwt.CookieName(), token, maxAge, "/", "", api.cfg.Auth.CookieSecure, true)
}

func (api *API) frontendURL(path string) string {
	return strings.TrimRight(api.cfg.Auth.FrontendURL, "/") + path
}
