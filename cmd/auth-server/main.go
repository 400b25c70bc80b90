package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/crowdwatch-api/api/swagger"
	"github.com/noah-isme/crowdwatch-api/internal/handler"
	"github.com/noah-isme/crowdwatch-api/internal/middleware"
	"github.com/noah-isme/crowdwatch-api/internal/repository"
	"github.com/noah-isme/crowdwatch-api/internal/service"
	"github.com/noah-isme/crowdwatch-api/pkg/cache"
	"github.com/noah-isme/crowdwatch-api/pkg/config"
	"github.com/noah-isme/crowdwatch-api/pkg/database"
	"github.com/noah-isme/crowdwatch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/crowdwatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/crowdwatch-api/pkg/middleware/requestid"
	"github.com/noah-isme/crowdwatch-api/pkg/observability"
)

// @title CrowdWatch Auth API
// @version 1.0.0
// @description Accounts, tokens and sessions for the crowd-monitoring dashboard
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if !cfg.JWT.SecretFromEnv {
		logr.Warn("JWT_SECRET not set, using the development default secret")
	}

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release); err != nil {
		logr.Warn("sentry init failed", zap.Error(err))
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db := database.NewHandle(cfg.Database)
	defer db.Close() //nolint:errcheck

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, login throttling stays in memory", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	credentials := repository.NewCredentialRepository(db, cfg.Login.MaxAttempts)
	rateLimits := repository.NewRateLimitRepository(redisClient, "ratelimit")

	metrics := service.NewMetricsService()
	tokens := service.NewTokenIssuer(service.TokenConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenExpiry,
	}, credentials)
	authSvc := service.NewAuthService(credentials, tokens, service.NewValidator(), logr, metrics)
	exportSvc := service.NewUserExportService(credentials, logr)

	if cfg.Seed.Enabled {
		if err := authSvc.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed default accounts: %w", err)
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(observability.Recovery(logr))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	system := handler.NewSystemHandler(metrics)
	handler.Routes{
		Auth:          handler.NewAuthHandler(authSvc),
		Admin:         handler.NewAdminHandler(authSvc, exportSvc),
		System:        system,
		Authenticator: authSvc,
		LoginLimiter:  middleware.NewLoginRateLimiter(rateLimits, cfg.Login.RateLimitMax, cfg.Login.RateLimitWindow, logr, metrics),
	}.Register(r.Group(cfg.APIPrefix))

	r.GET("/metrics", system.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	sweeper := service.NewTokenSweeper(credentials, cfg.Sweep.Interval, logr, metrics)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
