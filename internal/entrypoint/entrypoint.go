package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/authors"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/tags"
	"github.com/mrlokans/librarian/internal/database/users"
	http_controllers "github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/logging"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/services"
	"github.com/mrlokans/librarian/internal/tasks"
)

const hstsMaxAge = 365 * 24 * 60 * 60

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill -2 is SIGINT, plain kill is SIGTERM. SIGKILL cannot be caught.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the server so nothing new is enqueued.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Librarian v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	importLog, err := logging.NewBookImportsChannel(cfg.ImportLog)
	if err != nil {
		log.Fatalf("Failed to open book import log: %v", err)
	}
	defer importLog.Close()

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Flush()

	bookRepo := books.NewRepository(db.DB)
	tagRepo := tags.NewRepository(db.DB)

	var delimiter rune
	if cfg.Imports.Delimiter != "" {
		delimiter = []rune(cfg.Imports.Delimiter)[0]
	}
	importer := services.NewBookImportService(
		services.NewGormImportStore(db.DB),
		services.WithImportLogger(importLog.Logger),
		services.WithImportAuditor(auditService),
		services.WithResultArchiver(audit.NewAuditor(cfg.Audit.Dir)),
		services.WithCSVDelimiter(delimiter),
	)
	loans := services.NewCheckoutService(db.DB,
		services.WithLoanPeriod(cfg.Library.LoanPeriod),
		services.WithCheckoutAuditor(auditService),
	)

	authService := auth.NewService(db.DB, cfg.Auth)

	var sessionManager *auth.SessionManager
	var loginLimiter *auth.RateLimiter
	var csrfSecret []byte
	var hsts int
	var defaultUserID uint

	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("Authentication mode: local")

		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatalf("Failed to get SQL DB for sessions: %v", err)
		}
		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize session manager: %v", err)
		}

		csrfSecret, err = auth.CSRFKey(cfg.Auth.SessionSecret)
		if err != nil {
			log.Fatalf("Failed to derive CSRF secret: %v", err)
		}
		if cfg.Auth.SessionSecret == "" {
			log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
		}
		if cfg.Auth.SecureCookies {
			hsts = hstsMaxAge
		}

		loginLimiter = auth.NewRateLimiter(auth.RateLimitConfigFrom(cfg.Auth))
		defer loginLimiter.Stop()

		if hasUsers, _ := authService.HasUsers(); !hasUsers {
			log.Printf("No users found. Create one with '%s user-create'.", os.Args[0])
		}
	} else {
		owner, err := authService.EnsureDefaultUser()
		if err != nil {
			log.Fatalf("Failed to create default user: %v", err)
		}
		defaultUserID = owner.ID
		log.Printf("Authentication mode: none, every request acts as %s [%d]", owner.Username, owner.ID)
	}
	authMiddleware := auth.NewMiddleware(authService, sessionManager, cfg.Auth, defaultUserID)

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Version:        version,
		Books:          bookRepo,
		Authors:        authors.NewRepository(db.DB),
		Tags:           tagRepo,
		Users:          users.NewRepository(db.DB),
		Deleter:        bookRepo,
		Importer:       importer,
		Loans:          loans,
		Audit:          auditService,
		TagAuditor:     auditService,
		MaxUploadBytes: cfg.Imports.MaxUploadKB * 1024,
		AuthConfig:     cfg.Auth,
		AuthService:    authService,
		AuthMiddleware: authMiddleware,
		SessionManager: sessionManager,
		LoginLimiter:   loginLimiter,
		LoginAuditor:   auditService,
		CSRFSecret:     csrfSecret,
		HSTSMaxAge:     hsts,
	}

	var taskClient *tasks.Client
	var maintenance *scheduler.MaintenanceScheduler
	var stopBackground context.CancelFunc = func() {}

	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewCleanupOrphanTagsQueue(tagRepo),
			tasks.NewCleanupAuditEventsQueue(auditService),
			tasks.NewScanOverdueCheckoutsQueue(loans, auditService),
		)

		var bgCtx context.Context
		bgCtx, stopBackground = context.WithCancel(context.Background())
		taskClient.Start(bgCtx)

		if cfg.Scheduler.Enabled {
			maintenance = scheduler.NewMaintenanceScheduler(taskClient, scheduler.MaintenanceJobs(cfg.Scheduler, cfg.Audit)...)
			if err := maintenance.Start(bgCtx); err != nil {
				log.Fatalf("Failed to start maintenance scheduler: %v", err)
			}
			routerCfg.Maintenance = maintenance
		}
		routerCfg.Tasks = taskClient
	} else {
		log.Printf("Task queue disabled, maintenance endpoints are unavailable")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
		stopBackground()
		auditService.Flush()
	}

	Serve(router, cfg, onShutdown)
}
