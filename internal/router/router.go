// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/handlers"
	"github.com/furnigo/furnigo-api/internal/middleware"
	"github.com/furnigo/furnigo-api/internal/models"
	"github.com/furnigo/furnigo-api/internal/services"
	"github.com/furnigo/furnigo-api/internal/utils"
)

// Dependencies are the collaborators behind the HTTP surface.
type Dependencies struct {
	Posts    handlers.PostReader
	Workflow handlers.PostCreator
	Runs     services.RunRecorder
	Users    handlers.UserProfiles
	Verifier *utils.TokenVerifier
	// UploadsDir is served under /uploads when objects are stored locally.
	UploadsDir string
}

// Initialize builds the engine. The rate limiters stop their cleanup when
// ctx is done.
func Initialize(ctx context.Context, cfg *config.Config, deps Dependencies) *gin.Engine {
	postHandler := handlers.NewPostHandler(deps.Posts, deps.Workflow, deps.Runs)
	userHandler := handlers.NewUserHandler(deps.Users)

	generalLimiter := middleware.NewGeneralRateLimiter()
	uploadLimiter := middleware.NewUploadRateLimiter()
	go generalLimiter.Run(ctx)
	go uploadLimiter.Run(ctx)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.UploadsDir != "" {
		r.Static("/uploads", deps.UploadsDir)
	}

	auth := middleware.AuthRequired(deps.Verifier)
	optionalAuth := middleware.OptionalAuth(deps.Verifier)

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(generalLimiter.Middleware())
	{
		v1.GET("/categories", getCategoriesHandler)

		posts := v1.Group("/posts")
		{
			posts.GET("", optionalAuth, postHandler.GetPosts)
			posts.GET("/runs", auth, postHandler.GetRuns)
			posts.GET("/runs/orphaned", auth, middleware.ServiceRoleRequired(), postHandler.GetOrphanedRuns)
			posts.GET("/:id", optionalAuth, postHandler.GetPost)
			posts.POST("", auth, uploadLimiter.Middleware(), postHandler.CreatePost)
		}

		users := v1.Group("/users")
		users.Use(auth)
		{
			users.POST("", userHandler.CreateUser)
			users.GET("/me", userHandler.GetProfile)
			users.PUT("/me", userHandler.UpdateProfile)
			users.POST("/me/avatar", uploadLimiter.Middleware(), userHandler.UploadAvatar)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept-Language", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "X-Page", "X-Per-Page", "X-Has-Next-Page"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

// GET /v1/categories lists the values accepted for category and condition.
func getCategoriesHandler(c *gin.Context) {
	utils.SuccessResponse(c, gin.H{
		"categories": models.Categories,
		"conditions": models.Conditions,
	})
}
