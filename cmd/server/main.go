package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/handler"
	"github.com/hai-soft/license-admin-api/internal/handler/middleware"
	"github.com/hai-soft/license-admin-api/internal/ierr"
	"github.com/hai-soft/license-admin-api/internal/keygen"
	"github.com/hai-soft/license-admin-api/internal/service"
	"github.com/hai-soft/license-admin-api/internal/snapshot"
	"github.com/hai-soft/license-admin-api/internal/storage/memstorage"
	"github.com/hai-soft/license-admin-api/internal/storage/postgres"
	"github.com/hai-soft/license-admin-api/internal/storage/redis"
	"github.com/hai-soft/license-admin-api/internal/worker"
	"github.com/hai-soft/license-admin-api/pkg/logger"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()

	sugarLogger.Info("Starting application...")
	sugarLogger.Infof("Log level set to: %s", cfg.Log.Level)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	licenseRepo := postgres.NewLicenseRepository(dbPool, appLogger)
	agentRepo := postgres.NewAgentRepository(dbPool, appLogger)
	apiKeyRepo := postgres.NewAPIKeyRepository(dbPool, appLogger)
	userRepoMock := memstorage.NewUserRepositoryMock()

	if cfg.JWT.AgentPassword != "" {
		agents, err := agentRepo.List(appCtx)
		if err != nil {
			sugarLogger.Fatalf("Failed to load agents for login seeding: %v", err)
		}
		for _, a := range agents {
			if err := userRepoMock.AddAgent(a.Email, cfg.JWT.AgentPassword); err != nil {
				sugarLogger.Fatalf("Failed to seed agent account %s: %v", a.Email, err)
			}
		}
		sugarLogger.Infof("Seeded %d agent accounts", len(agents))
	}

	notifier := redis.NewChangeNotifier(redisClient, cfg.Redis.Channel, appLogger)

	keyGen, err := keygen.New(cfg.Engine.KeyScheme)
	if err != nil {
		sugarLogger.Fatalf("Invalid key scheme %q: %v", cfg.Engine.KeyScheme, err)
	}

	snapshotProvider := snapshot.NewProvider(licenseRepo, agentRepo, notifier, appLogger)
	if err := snapshotProvider.Refresh(appCtx); err != nil {
		sugarLogger.Fatalf("Initial snapshot load failed: %v", err)
	}

	licenseService := service.NewLicenseService(licenseRepo, keyGen, notifier, cfg.Engine, appLogger)
	authService := service.NewAuthService(userRepoMock, cfg.JWT, appLogger)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, appLogger)

	healthHandler := handler.NewHealthHandler(dbPool, redisClient, appLogger)
	licenseHandler := handler.NewLicenseHandler(licenseService, snapshotProvider, cfg.Engine, appLogger)
	exportHandler := handler.NewExportHandler(snapshotProvider, cfg.Engine, appLogger)
	agentHandler := handler.NewAgentHandler(snapshotProvider, cfg.Engine, appLogger)
	authHandler := handler.NewAuthHandler(authService, appLogger)
	dashboardHandler := handler.NewDashboardHandler(snapshotProvider, cfg.Engine, appLogger)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeyService, appLogger)

	authMiddleware := middleware.AuthMiddleware(authService, appLogger)
	apiKeyAuthMiddleware := middleware.APIKeyAuthMiddleware(apiKeyRepo, appLogger)
	errorMiddleware := middleware.ErrorHandlerMiddleware(appLogger)

	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		appLogger.Error(logMsg, zap.Stack("stack"))

		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	corsConfig := cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-API-Key",
		},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))
	router.Use(errorMiddleware)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := router.Group("/api/v1/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	apiV1 := router.Group("/api/v1")
	{
		licenseRoutes := apiV1.Group("/licenses")
		{
			licenseRoutes.POST("/redeem", apiKeyAuthMiddleware, licenseHandler.Redeem)

			licenseRoutes.Use(authMiddleware, middleware.RequireAdmin())

			licenseRoutes.POST("", licenseHandler.Create)
			licenseRoutes.GET("", licenseHandler.List)
			licenseRoutes.POST("/assign", licenseHandler.Assign)
			licenseRoutes.POST("/assign-batch", licenseHandler.AssignBatch)
			licenseRoutes.POST("/export", exportHandler.Export)
			licenseRoutes.POST("/:id/extend", licenseHandler.Extend)
			licenseRoutes.DELETE("/:id", licenseHandler.Delete)
		}

		batchRoutes := apiV1.Group("/batches")
		batchRoutes.Use(authMiddleware, middleware.RequireAdmin())
		{
			batchRoutes.GET("", licenseHandler.ListBatches)
		}

		agentRoutes := apiV1.Group("/agents")
		agentRoutes.Use(authMiddleware, middleware.RequireAdmin())
		{
			agentRoutes.GET("", licenseHandler.ListAgents)
		}

		dashboardRoutes := apiV1.Group("/dashboard")
		dashboardRoutes.Use(authMiddleware, middleware.RequireAdmin())
		{
			dashboardRoutes.GET("/summary", dashboardHandler.Summary)
			dashboardRoutes.GET("/top-agents", dashboardHandler.TopAgents)
			dashboardRoutes.GET("/batches", dashboardHandler.Batches)
			dashboardRoutes.GET("/created-by-day", dashboardHandler.CreatedByDay)
			dashboardRoutes.GET("/logs", dashboardHandler.RecentLogs)
		}

		apiKeyRoutes := apiV1.Group("/apikeys")
		apiKeyRoutes.Use(authMiddleware, middleware.RequireAdmin())
		{
			apiKeyRoutes.POST("", apiKeyHandler.Create)
			apiKeyRoutes.GET("", apiKeyHandler.List)
			apiKeyRoutes.DELETE("/:id", apiKeyHandler.Revoke)
		}

		meRoutes := apiV1.Group("/me")
		meRoutes.Use(authMiddleware)
		{
			meRoutes.GET("/licenses", agentHandler.MyLicenses)
			meRoutes.GET("/licenses/export", agentHandler.ExportMyLicenses)
		}
	}

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	g.Go(func() error {
		if err := snapshotProvider.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("snapshot provider error: %w", err)
		}
		return nil
	})

	workerErrChan, workerShutdown := worker.RunWorkers(cfg, licenseRepo, notifier, appLogger)

	g.Go(func() error {
		select {
		case err := <-workerErrChan:
			return err
		case <-groupCtx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
			defer cancel()
			workerShutdown(shutdownCtx)
			return nil
		}
	})

	sugarLogger.Info("Application started. Waiting for interrupt signal (Ctrl+C) or component error...")

	waitErr := g.Wait()

	sugarLogger.Info("Shutdown sequence finished.")

	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) {
			sugarLogger.Info("Shutdown reason: Context canceled (likely due to OS signal).")
		} else if errors.Is(waitErr, http.ErrServerClosed) {
			sugarLogger.Info("Shutdown reason: HTTP server closed normally.")
		} else {
			sugarLogger.Errorf("Application shutdown finished with unexpected error: %v", waitErr)
		}
	} else {
		sugarLogger.Info("Application shutdown successfully (all components finished without errors).")
	}

	sugarLogger.Info("Application exiting now.")
}
