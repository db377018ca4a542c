package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/kredim-api/docs" // Swagger docs
	"github.com/sjperalta/kredim-api/internal/config"
	"github.com/sjperalta/kredim-api/internal/database"
	"github.com/sjperalta/kredim-api/internal/handlers"
	"github.com/sjperalta/kredim-api/internal/jobs"
	"github.com/sjperalta/kredim-api/internal/middleware"
	"github.com/sjperalta/kredim-api/internal/repository"
	"github.com/sjperalta/kredim-api/internal/services"
	"github.com/sjperalta/kredim-api/internal/storage"
	"github.com/sjperalta/kredim-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Kredim API
// @version 1.0
// @description REST API for tracking personal bank loans and their installment plans

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Sentry (or GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.EnableEmailNotifications && !cfg.EmailEnabled() {
		logger.Warn("Resend email disabled: RESEND_API_KEY or FROM_EMAIL not set")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage", "path", cfg.StoragePath)

	repos := repository.NewRepositories(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	worker.SetLocation(cfg.Location())
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(repos, worker, store, cfg)

	if err := scheduleJobs(worker, svcs, cfg); err != nil {
		logger.Error("Failed to schedule jobs", "error", err)
		os.Exit(1)
	}

	h := handlers.NewHandlers(svcs)
	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // statement PDFs shell out to wkhtmltopdf
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health.Index)

		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			protected.GET("/auth/me", h.Auth.Me)
			protected.GET("/dashboard", h.Loan.Dashboard)

			protected.GET("/loans", h.Loan.Index)
			protected.POST("/loans", h.Loan.Create)

			loan := protected.Group("/loans/:loan_id")
			{
				loan.GET("", h.Loan.Show)
				loan.PATCH("", h.Loan.Update)
				loan.DELETE("", h.Loan.Delete)
				loan.GET("/installments", h.Loan.Installments)
				loan.POST("/early_payoff", h.Loan.EarlyPayoff)

				loan.POST("/payments", h.Payment.Create)
				loan.GET("/payments", h.Payment.Index)
				loan.DELETE("/operations/:operation_id", h.Payment.ReverseOperation)

				loan.GET("/plan.xlsx", h.Report.PaymentPlanXLSX)
				loan.GET("/statement.pdf", h.Report.StatementPDF)
				loan.GET("/payments.csv", h.Report.PaymentHistoryCSV)
				loan.GET("/early_payoff.pdf", h.Report.EarlyPayoffPDF)
			}

			protected.DELETE("/payments/:payment_id", h.Payment.Delete)
			protected.POST("/payments/:payment_id/receipt", h.Payment.UploadReceipt)
			protected.GET("/payments/:payment_id/receipt", h.Payment.DownloadReceipt)

			protected.GET("/notifications", h.Notification.Index)
			protected.POST("/notifications/mark_all_as_read", h.Notification.MarkAllAsRead)
			protected.POST("/notifications/:notification_id/read", h.Notification.MarkAsRead)
			protected.DELETE("/notifications/:notification_id", h.Notification.Delete)

			protected.GET("/audits", h.Audit.Index)
			protected.GET("/jobs/status", h.Job.Status)
		}
	}

	return router
}

// scheduleJobs registers the recurring background jobs
func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) error {
	// Overdue detection runs hourly and once at startup so a restart never leaves stale statuses
	worker.ScheduleEveryImmediate("mark_overdue_installments", time.Hour, svcs.Payment.MarkOverdueInstallments)

	worker.ScheduleEvery("purge_expired_refresh_tokens", 24*time.Hour, svcs.Auth.PurgeExpiredRefreshTokens)

	// Reminders follow the wall clock in the configured timezone
	if err := worker.ScheduleCron("upcoming_installment_reminders", cfg.ReminderCron, svcs.Payment.SendUpcomingReminders); err != nil {
		return err
	}

	logger.Info("Scheduled recurring jobs", "reminder_cron", cfg.ReminderCron, "timezone", cfg.Timezone)
	return nil
}
