package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modern-blog/internal/config"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/service"
	"github.com/modern-blog/pkg/logger"
	"github.com/rs/zerolog"
)

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) (*gin.Engine, error) {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := loadTemplates(router, cfg.Server.TemplatesDir); err != nil {
		return nil, err
	}

	responder := errorResponder{production: cfg.Server.IsProduction()}

	// Middleware
	router.Use(recoveryMiddleware(log, responder))
	router.Use(loggingMiddleware(log))
	router.Use(securityHeaders(cfg.Server.IsProduction()))
	router.Use(corsMiddleware(cfg.Server.CORSOrigin))
	router.Use(rateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateWindow))
	router.Use(timeoutMiddleware(cfg.Server.RequestTimeout))
	router.Use(sessionMiddleware(services.Auth, cfg))

	// Handlers
	authHandler := NewAuthHandler(services, cfg, log)
	articleHandler := NewArticleHandler(services, cfg, log)
	commentHandler := NewCommentHandler(services, cfg, log)
	userHandler := NewUserHandler(services, cfg, log)

	authenticated := requireAuth(responder)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/articles") })

	if cfg.Storage.Backend == "local" && cfg.Storage.UploadDir != "" {
		router.Static(cfg.Storage.PublicPrefix, cfg.Storage.UploadDir)
	}

	auth := router.Group("/auth")
	{
		auth.GET("/login", authHandler.LoginForm)
		auth.POST("/login", authHandler.Login)
		auth.GET("/register", authHandler.RegisterForm)
		auth.POST("/register", authHandler.Register)
		auth.GET("/logout", authHandler.Logout)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/profile", authenticated, authHandler.Profile)
		auth.POST("/profile", authenticated, authHandler.UpdateProfile)
		auth.GET("/api/user", authenticated, authHandler.CurrentUser)
	}

	articles := router.Group("/articles")
	{
		create := authorize(policy.ActionCreateContent, responder)
		modify := authorize(policy.ActionModifyContent, responder)

		articles.GET("", articleHandler.List)
		articles.GET("/my", authorize(policy.ActionListOwnContent, responder), articleHandler.MyArticles)
		articles.GET("/new", create, articleHandler.NewForm)
		articles.POST("/new", create, articleHandler.Create)
		articles.GET("/:id", articleHandler.Show)
		articles.GET("/:id/edit", modify, articleHandler.EditForm)
		articles.POST("/:id/edit", modify, articleHandler.Update)
		articles.POST("/:id/delete", authorize(policy.ActionDeleteContent, responder), articleHandler.Delete)
		articles.POST("/:id/comments", authenticated, commentHandler.Create)
		articles.POST("/:id/comments/:commentId/edit", authenticated, commentHandler.Edit)
	}

	users := router.Group("/users")
	{
		users.GET("/profile", userHandler.ProfileRedirect)
		users.GET("/admin", authorize(policy.ActionViewDashboard, responder), userHandler.Dashboard)
		users.GET("/:id", authenticated, userHandler.Detail)
	}

	router.NoRoute(func(c *gin.Context) {
		responder.respondError(c, errNoRoute, "", nil)
	})

	return router, nil
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   logger.ServiceName,
	})
}
