package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"facilityops/internal/analytics"
	"facilityops/internal/caching"
	"facilityops/internal/common"
	"facilityops/internal/config"
	"facilityops/internal/docs"
	"facilityops/internal/handlers"
	"facilityops/internal/jobs/background"
	"facilityops/internal/middleware"
	"facilityops/internal/repositories"
	"facilityops/internal/services"
	"facilityops/pkg/database"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server and the background report scheduler.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Database.URL, "up", logger); err != nil {
			return err
		}
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cacheSvc := caching.NewRedisCacheService(redisClient)

	minioSvc, err := services.NewMinioService(cfg.MinIO)
	if err != nil {
		return err
	}
	if err := minioSvc.EnsureBucketExists(ctx, cfg.MinIO.Bucket); err != nil {
		return fmt.Errorf("prepare bucket %s: %w", cfg.MinIO.Bucket, err)
	}

	reportStore, err := services.NewReportStore(afero.NewOsFs(), cfg.Reports.Dir)
	if err != nil {
		return err
	}

	userRepo := repositories.NewUserRepository(pool)
	workOrderRepo := repositories.NewWorkOrderRepository(pool)

	scheduler, err := background.NewJobScheduler(reportStore, workOrderRepo, cfg, logger)
	if err != nil {
		return err
	}

	reportSvc := services.NewReportService()
	authSvc, err := services.NewAuthService(userRepo, cacheSvc, cfg.Auth, logger)
	if err != nil {
		return err
	}
	userSvc := services.NewUserService(userRepo, reportSvc, cfg.Auth.BcryptCost, logger)
	uploader := services.NewImageUploader(minioSvc, cfg.MinIO, logger)
	workOrderSvc := services.NewWorkOrderService(workOrderRepo, uploader, reportSvc, reportStore, cacheSvc, scheduler, cfg.Redis.WorkOrderTTL, logger)
	analyticsSvc := analytics.NewAnalyticsService(workOrderRepo, cacheSvc, cfg.Redis.WorkOrderTTL, logger)

	docs.SwaggerInfo.Version = cfg.App.Version

	e := newServer(cfg, logger)
	handlers.RegisterRoutes(e, handlers.Handlers{
		Auth:       handlers.NewAuthHandlers(authSvc, userSvc, logger),
		Users:      handlers.NewUserHandlers(userSvc),
		WorkOrders: handlers.NewWorkOrderHandlers(workOrderSvc, analyticsSvc, logger),
		Health:     handlers.NewHealthHandlers(pool, cacheSvc, minioSvc, scheduler, cfg.MinIO.Bucket, cfg.App.Version, logger),
	}, authSvc)

	scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Addr()), zap.String("env", cfg.App.Env))
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			_ = scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := scheduler.Stop(); err != nil {
		logger.Error("scheduler shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

func newServer(cfg *config.Config, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = common.HTTPErrorHandler(logger)
	// the login throttle keys on this; only trust X-Forwarded-For from private proxies
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(logger.Named("http")))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders: []string{middleware.HeaderAPIVersion, echo.HeaderContentDisposition, echo.HeaderXRequestID},
	}))
	e.Use(echoMiddleware.BodyLimit(cfg.Server.BodyLimit))
	if cfg.Server.RequestTimeout > 0 {
		e.Use(echoMiddleware.ContextTimeout(cfg.Server.RequestTimeout))
	}
	e.Use(middleware.NewVersionMiddleware(cfg.App.Version).VersionHeader())
	e.Use(middleware.NewAuditMiddleware(logger).AuditRequest())

	if cfg.Server.StaticDir != "" {
		e.Use(echoMiddleware.StaticWithConfig(echoMiddleware.StaticConfig{
			Root:  cfg.Server.StaticDir,
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				p := c.Request().URL.Path
				return strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/swagger/") || strings.HasPrefix(p, "/health")
			},
		}))
	}

	e.Server.ReadHeaderTimeout = 10 * time.Second
	return e
}
