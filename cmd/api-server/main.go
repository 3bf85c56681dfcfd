package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"reditto/internal/auth"
	"reditto/internal/config"
	"reditto/internal/doubt"
	"reditto/internal/essay"
	"reditto/internal/feed"
	"reditto/internal/grader"
	"reditto/internal/logging"
	"reditto/internal/ratelimit"
	"reditto/internal/topics"
	"reditto/internal/webhook"
	"reditto/pkg/database"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	dbCfg := database.DefaultConfig()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	if ok, issues := webhook.ValidateCredentials(cfg.Webhook.URL, cfg.Webhook.APIKey); !ok {
		logger.Warn("webhook config incomplete", "issues", issues)
	}
	webhookClient := webhook.NewClient(cfg.Webhook.URL, cfg.Webhook.APIKey, logger)

	graderClient := grader.NewClient(cfg.Gateway, logger)
	if ok, issue := graderClient.Validate(); !ok {
		logger.Warn("gateway config incomplete", "issue", issue)
	}

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	tokenSvc := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration(),
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	hub := feed.NewHub()
	router.GET("/ws", feed.WSHandler(hub, tokenSvc, authRepo, logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_clients": stats.WSClients,
		})
	})

	protected := router.Group("/users")
	protected.Use(auth.AuthMiddleware(tokenSvc, authRepo))
	protected.GET("/me", authHandler.Me)

	limiter := ratelimit.NewFixedWindow(cfg.RateLimit.Limit, cfg.RateLimit.Window())
	api := router.Group("/api")
	api.Use(ratelimit.Middleware(limiter))
	api.Use(auth.AuthMiddleware(tokenSvc, authRepo))

	topics.NewHandler(topics.NewService()).RegisterRoutes(api)

	essayRepo := essay.NewRepo(db)
	essay.NewHandler(essayRepo, webhookClient, graderClient, hub, logger).RegisterRoutes(api)

	doubtRepo := doubt.NewRepo(db)
	doubt.NewHandler(doubtRepo, webhookClient, hub, logger).RegisterRoutes(api)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	logger.Info("server stopped")
}
