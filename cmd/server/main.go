package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	echoapi "go.pilab.hu/kerja/api/echo"
	"go.pilab.hu/kerja/auth"
	"go.pilab.hu/kerja/config"
	"go.pilab.hu/kerja/domain"
	"go.pilab.hu/kerja/internal/metrics"
	"go.pilab.hu/kerja/jobs"
	"go.pilab.hu/kerja/log"
	"go.pilab.hu/kerja/provider"
	"go.pilab.hu/kerja/registry"
	"go.pilab.hu/kerja/sessions"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)
	zerolog.SetGlobalLevel(logLevel)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting kerja server...", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"session_store": cfg.SessionStore,
		"challenge_ttl": cfg.ChallengeTTLMin,
		"log_level":     logLevel.String(),
	})

	// Session store
	store, err := newSessionStore(ctx, cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize session store", err, nil)
	}

	// Challenge registry
	challengeRegistry := registry.New(time.Duration(cfg.ChallengeTTLMin) * time.Minute)

	// Provider gateway
	gateway := provider.NewGateway(provider.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIID:   cfg.ProviderAPIID,
		APIHash: cfg.ProviderAPIHash,
		Retries: cfg.ProviderConnectRetries,
		Timeout: time.Duration(cfg.ProviderTimeoutSec) * time.Second,
	})

	authService := auth.NewService(challengeRegistry, store, gateway)
	catalog := jobs.NewCatalog()

	metrics.Register(prometheus.DefaultRegisterer)
	metrics.ActiveSessionsGauge.Set(float64(store.Count(ctx)))

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			event := zlog.Info()
			if v.Error != nil {
				event = zlog.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("http request")
			return nil
		},
	}))

	api := echoapi.NewAPI(authService, catalog)
	api.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}
	if err := challengeRegistry.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Challenge registry shutdown error", err, nil)
	}
	if err := store.Close(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "Session store shutdown error", err, nil)
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

// newSessionStore builds the configured SessionStore backend.
func newSessionStore(ctx context.Context, cfg *config.ServerConfig) (domain.SessionStore, error) {
	switch cfg.SessionStore {
	case config.SessionStoreFile:
		return sessions.NewFileStore(cfg.SessionsFile, cfg.SessionsSealKey)
	case config.SessionStoreMongo:
		return sessions.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDBName)
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		return sessions.NewRedisStore(client, cfg.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown session store backend %q", cfg.SessionStore)
	}
}
