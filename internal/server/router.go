package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/adapta-backend/internal/handlers"
	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	StudentHandler  *handlers.StudentHandler
	ActivityHandler *handlers.ActivityHandler
	AuthMiddleware  *middleware.AuthMiddleware
	Log             *logger.Logger
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthcheck", handlers.Healthcheck)

	api := router.Group("/api")
	api.POST("/register", cfg.AuthHandler.Register)
	api.POST("/login", cfg.AuthHandler.Login)
	api.POST("/refresh", cfg.AuthHandler.Refresh)

	protected := api.Group("")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/logout", cfg.AuthHandler.Logout)

		protected.POST("/students", cfg.StudentHandler.Create)
		protected.GET("/students", cfg.StudentHandler.List)
		protected.GET("/students/:id", cfg.StudentHandler.Get)
		protected.PUT("/students/:id", cfg.StudentHandler.Update)
		protected.DELETE("/students/:id", cfg.StudentHandler.Delete)

		protected.POST("/students/:id/activities", cfg.ActivityHandler.Upload)
		protected.GET("/students/:id/activities", cfg.ActivityHandler.List)

		protected.GET("/activities/:id", cfg.ActivityHandler.Get)
		protected.GET("/activities/:id/pages", cfg.ActivityHandler.Pages)
		protected.GET("/activities/:id/status", cfg.ActivityHandler.Status)
		protected.GET("/activities/:id/artifact", cfg.ActivityHandler.Artifact)
		protected.POST("/activities/:id/reprocess", cfg.ActivityHandler.Reprocess)
	}

	return router
}
