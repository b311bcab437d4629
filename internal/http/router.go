package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Optional controllers are mounted only when their dependency is set.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.HSTSMaxAge > 0 {
		router.Use(auth.StrictTransportSecurityMiddleware(cfg.HSTSMaxAge))
	}

	// CSRF must run before the session middleware, since it replaces the
	// request and would otherwise drop the session context.
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies, cfg.AuthService))
	}
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.LoadAndSave())
	}
	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", Ping)

	if cfg.AuthConfig.Mode == config.AuthModeLocal && cfg.AuthService != nil {
		authController := auth.NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.LoginAuditor).
			WithRateLimiter(cfg.LoginLimiter)
		authController.RegisterRoutes(router.Group("/api/auth"))
	}

	api := router.Group("/api")
	write := requireWriter(cfg.AuthMiddleware)

	booksController := NewBooksController(cfg.Books, cfg.Authors, cfg.Tags)
	api.GET("/books", booksController.GetAllBooks)
	api.GET("/books/stats", booksController.GetBookStats)
	api.GET("/books/:id", booksController.GetBook)
	api.GET("/authors", booksController.GetAllAuthors)
	api.GET("/authors/:id", booksController.GetAuthor)

	if cfg.Importer != nil {
		importController := NewBookImportController(cfg.Importer, cfg.Users, cfg.MaxUploadBytes)
		api.POST("/books/import", write, importController.Import)
	}

	if cfg.Loans != nil {
		checkoutsController := NewCheckoutsController(cfg.Loans)
		api.POST("/books/:id/checkout", checkoutsController.Checkout)
		api.POST("/checkouts/:id/return", checkoutsController.Return)
		api.GET("/checkouts", checkoutsController.ListMine)

		dashboard := NewDashboardController(cfg.Books, cfg.Tags, cfg.Loans)
		api.GET("/dashboard", dashboard.Show)
	}

	tagsController := NewTagsController(cfg.Tags, cfg.Books, cfg.Authors, cfg.Tasks, cfg.TagAuditor)
	api.GET("/tags", tagsController.GetAllTags)
	api.POST("/books/:id/tags", write, tagsController.AddTagToBook)
	api.DELETE("/books/:id/tags/:name", write, tagsController.RemoveTagFromBook)
	api.POST("/authors/:id/tags", write, tagsController.AddTagToAuthor)
	api.DELETE("/authors/:id/tags/:name", write, tagsController.RemoveTagFromAuthor)
	api.POST("/tags/cleanup", write, tagsController.CleanupOrphanTags)

	if cfg.Deleter != nil {
		deleteController := NewDeleteController(cfg.Books, cfg.Deleter)
		api.DELETE("/books/:id", write, deleteController.DeleteBook)
	}

	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit)
		api.GET("/audit", auditController.GetAuditEvents)
	}

	if cfg.Tasks != nil {
		tasksController := NewTasksController(cfg.Tasks, cfg.Maintenance)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
		api.GET("/maintenance", tasksController.ListMaintenance)
		api.POST("/maintenance/:job/run", requireAdmin(cfg.AuthMiddleware), tasksController.RunMaintenance)
	}

	return router
}

func requireWriter(m *auth.Middleware) gin.HandlerFunc {
	if m == nil {
		return passThrough
	}
	return m.RequireRole(entities.UserRoleAdmin, entities.UserRoleEditor)
}

func requireAdmin(m *auth.Middleware) gin.HandlerFunc {
	if m == nil {
		return passThrough
	}
	return m.RequireRole(entities.UserRoleAdmin)
}

func passThrough(c *gin.Context) { c.Next() }
