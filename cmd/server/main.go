package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sami8890/Sam-pixels/internal"
	"github.com/sami8890/Sam-pixels/internal/billing"
	"github.com/sami8890/Sam-pixels/internal/handler"
	"github.com/sami8890/Sam-pixels/internal/middleware"
	"github.com/sami8890/Sam-pixels/internal/processor"
	"github.com/sami8890/Sam-pixels/internal/repository"
	"github.com/sami8890/Sam-pixels/internal/service"
	"github.com/sami8890/Sam-pixels/internal/storage"
	"github.com/sami8890/Sam-pixels/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	queries := repository.New(db)

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageProvider {
	case "r2":
		store, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		store, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize billing (nil means billing endpoints reject with config errors)
	var billingSvc billing.Service
	if cfg.StripeSecretKey != "" {
		billingSvc = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			StarterMonthlyPriceID:    cfg.StripeStarterMonthlyPriceID,
			StarterYearlyPriceID:     cfg.StripeStarterYearlyPriceID,
			ProMonthlyPriceID:        cfg.StripeProMonthlyPriceID,
			ProYearlyPriceID:         cfg.StripeProYearlyPriceID,
			EnterpriseMonthlyPriceID: cfg.StripeEnterpriseMonthlyPriceID,
			EnterpriseYearlyPriceID:  cfg.StripeEnterpriseYearlyPriceID,
		})
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing not configured; checkout and webhooks are disabled")
	}

	// Initialize services
	userService := service.NewUserService(queries, logger)
	entitlementService := service.NewEntitlementService(queries, logger)
	quotaService := service.NewQuotaService(queries, entitlementService, logger)
	processingService := service.NewProcessingService(queries, quotaService, entitlementService, store, logger)
	libraryService := service.NewLibraryService(queries, store, logger)
	subscriptionService := service.NewSubscriptionService(queries, billingSvc, entitlementService, userService, logger)

	// Initialize the image processing executor
	var removeBG processor.Executor
	if cfg.RemoveBGProvider == "removebg" {
		removeBG = processor.NewRemoveBGClient(cfg.RemoveBGAPIKey, service.NewAPIUsageRecorder(queries, logger))
	} else {
		removeBG = processor.NewPassthroughRemoveBG()
	}
	executor := processor.NewImagingExecutor(removeBG)

	// Initialize and start the background worker
	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		imageHandler := worker.NewImageHandler(queries, executor, store, quotaService, logger)
		jobWorker, err = worker.New(queries, imageHandler, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		jobWorker.Start(ctx)
		logger.Info("Worker started", "concurrency", workerCfg.Concurrency)
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsMw := middleware.NewMetricsMiddleware()
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	authLimiter := middleware.NewAuthRateLimiter(logger)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, authLimiter, logger, isSecure)
	usageHandler := handler.NewUsageHandler(quotaService, logger)
	processingHandler := handler.NewProcessingHandler(processingService, logger)
	libraryHandler := handler.NewLibraryHandler(libraryService, logger)
	billingHandler := handler.NewBillingHandler(subscriptionService, entitlementService, logger)
	webhookHandler := handler.NewWebhookHandler(billingSvc, subscriptionService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (basic-auth protected when credentials are configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Middleware stacks
	public := middleware.Stack(securityMw.Handler, loggingMw.Handler, metricsMw.Handler)
	requireUser := middleware.Stack(
		securityMw.Handler, loggingMw.Handler, metricsMw.Handler,
		authMw.WithUser, authMw.RequireUser,
	)

	// Auth (public, rate limited)
	mux.Handle("POST /api/auth/register", public(authLimiter.LimitRegister(http.HandlerFunc(authHandler.Register))))
	mux.Handle("POST /api/auth/login", public(authLimiter.LimitLogin(http.HandlerFunc(authHandler.Login))))
	mux.Handle("POST /api/auth/logout", public(http.HandlerFunc(authHandler.Logout)))

	// Account (authenticated)
	mux.Handle("GET /api/auth/me", requireUser(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PATCH /api/auth/profile", requireUser(http.HandlerFunc(authHandler.UpdateProfile)))
	mux.Handle("POST /api/auth/password", requireUser(http.HandlerFunc(authHandler.ChangePassword)))

	// Usage limits and history
	mux.Handle("GET /api/usage/limits", requireUser(http.HandlerFunc(usageHandler.Limits)))
	mux.Handle("GET /api/usage/history", requireUser(http.HandlerFunc(usageHandler.History)))

	// Processing jobs
	mux.Handle("POST /api/jobs", requireUser(http.HandlerFunc(processingHandler.Submit)))
	mux.Handle("GET /api/jobs", requireUser(http.HandlerFunc(processingHandler.ListJobs)))
	mux.Handle("GET /api/jobs/{id}", requireUser(http.HandlerFunc(processingHandler.GetJob)))
	mux.Handle("GET /api/jobs/{id}/result", requireUser(http.HandlerFunc(processingHandler.Result)))

	// Library items
	mux.Handle("POST /api/library/items", requireUser(http.HandlerFunc(libraryHandler.SaveItem)))
	mux.Handle("GET /api/library/items", requireUser(http.HandlerFunc(libraryHandler.ListItems)))
	mux.Handle("GET /api/library/items/{id}", requireUser(http.HandlerFunc(libraryHandler.GetItem)))
	mux.Handle("PATCH /api/library/items/{id}", requireUser(http.HandlerFunc(libraryHandler.UpdateItem)))
	mux.Handle("DELETE /api/library/items/{id}", requireUser(http.HandlerFunc(libraryHandler.DeleteItem)))
	mux.Handle("PUT /api/library/items/{id}/folder", requireUser(http.HandlerFunc(libraryHandler.MoveItem)))
	mux.Handle("POST /api/library/items/{id}/share", requireUser(http.HandlerFunc(libraryHandler.ShareItem)))

	// Library folders
	mux.Handle("POST /api/library/folders", requireUser(http.HandlerFunc(libraryHandler.CreateFolder)))
	mux.Handle("GET /api/library/folders", requireUser(http.HandlerFunc(libraryHandler.ListFolders)))
	mux.Handle("DELETE /api/library/folders/{id}", requireUser(http.HandlerFunc(libraryHandler.DeleteFolder)))

	// Shares
	mux.Handle("DELETE /api/library/shares/{id}", requireUser(http.HandlerFunc(libraryHandler.Unshare)))
	mux.Handle("GET /share/{token}", public(http.HandlerFunc(libraryHandler.ViewShare)))

	// Billing
	mux.Handle("GET /api/billing/plans", public(http.HandlerFunc(billingHandler.ListPlans)))
	mux.Handle("GET /api/billing/subscription", requireUser(http.HandlerFunc(billingHandler.Subscription)))
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(billingHandler.Checkout)))
	mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(billingHandler.Portal)))
	mux.Handle("POST /api/billing/cancel", requireUser(http.HandlerFunc(billingHandler.Cancel)))
	mux.Handle("GET /api/billing/history", requireUser(http.HandlerFunc(billingHandler.History)))
	mux.Handle("GET /api/billing/payments", requireUser(http.HandlerFunc(billingHandler.Payments)))

	// Stripe webhooks (public; authenticated by signature)
	mux.Handle("POST /webhooks/stripe", public(http.HandlerFunc(webhookHandler.HandleStripeWebhook)))

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Periodically clear expired sessions
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := userService.DeleteExpiredSessions(ctx); err != nil {
				logger.Error("failed to delete expired sessions", "error", err)
			}
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Stop the worker after the server so in-flight requests can still
	// enqueue jobs; queued jobs persist and are picked up on restart.
	if jobWorker != nil {
		jobWorker.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
