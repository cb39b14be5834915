package main

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/camagru/camagru/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func setupRouter(api *API) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(api.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     api.cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if api.cfg.Server.MaxBodyBytes > 0 {
		router.Use(maxBodyBytes(api.cfg.Server.MaxBodyBytes))
	}

	router.GET("/health", api.healthCheck)

	apiGroup := router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		authLimited := authGroup.Group("", middleware.RateLimit(api.rateLimiter))
		{
			authLimited.POST("/register", api.register)
			authLimited.POST("/login", api.login)
			authLimited.POST("/forgot-password", api.forgotPassword)
			authLimited.POST("/reset-password", api.resetPassword)
		}
		authGroup.GET("/verify/:token", api.verify)
		authGroup.GET("/reset-password-redirect/:token", api.resetPasswordRedirect)
		authGroup.GET("/status", api.jwt.OptionalAuth(), api.status)
		authGroup.POST("/logout", api.jwt.OptionalAuth(), api.logout)

		profileGroup := apiGroup.Group("/profile", api.jwt.RequireAuth())
		{
			profileGroup.GET("/info", api.getProfile)
			profileGroup.GET("/avatars", api.listAvatars)
			profileGroup.POST("/update", api.updateProfile)
			profileGroup.POST("/change-password", api.changePassword)
			profileGroup.POST("/delete", api.deleteAccount)
		}

		editingGroup := apiGroup.Group("/editing")
		{
			editingGroup.GET("/stickers", api.listStickers)

			saves := middleware.WindowLimit(api.windows, "saves", api.cfg.Editing.SavesPerHour, time.Hour)
			private := editingGroup.Group("", api.jwt.RequireAuth())
			private.GET("/photos", api.listUserPhotos)
			private.POST("/save", saves, api.savePhoto)
			private.POST("/preview", api.previewPhoto)
			private.POST("/create-gif", saves, api.createGIF)
			private.DELETE("/photos/:id", api.deletePhoto)
		}

		galleryGroup := apiGroup.Group("/gallery")
		{
			galleryGroup.GET("", api.jwt.OptionalAuth(), api.listGallery)
			galleryGroup.GET("/:id/comments", api.listComments)

			private := galleryGroup.Group("", api.jwt.RequireAuth())
			private.POST("/:id/like", api.likePhoto)
			private.DELETE("/:id/like", api.unlikePhoto)
			private.POST("/:id/comment", api.addComment)
		}
	}

	router.GET("/uploads/*key", api.serveUpload)

	if dir := api.cfg.Server.StaticDir; dir != "" {
		router.NoRoute(staticFiles(dir))
	}

	return router
}

func maxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// staticFiles serves the frontend for unmatched GET requests. Unknown API
// paths still answer with JSON.
func staticFiles(dir string) gin.HandlerFunc {
	fs := http.Dir(dir)
	fileServer := http.FileServer(fs)
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			fail(c, http.StatusNotFound, "Not found")
			return
		}

		if f, err := fs.Open(filepath.Clean(c.Request.URL.Path)); err == nil {
			f.Close()
			fileServer.ServeHTTP(c.Writer, c.Request)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	}
}
