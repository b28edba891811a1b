package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sms-notify-server/internal/cache"
	"sms-notify-server/internal/config"
	"sms-notify-server/internal/db"
	"sms-notify-server/internal/handlers"
	"sms-notify-server/internal/provider"
	"sms-notify-server/internal/services"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/router"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 2 * time.Second

// SetupServer wires storage, services and routes into an HTTP server.
// Resources are released when the server shuts down.
func SetupServer(cfg *config.Config) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	if cfg.Server.Port <= 0 {
		return nil, errors.New("invalid server port")
	}

	// Initialize database
	database, err := db.NewDatabase(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	lookup, closeCache := setupLookup(cfg)
	cleanup := func() {
		closeCache()
		if err := database.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}

	r, err := setupRouter(cfg, database, lookup, newSender(cfg))
	if err != nil {
		cleanup()
		return nil, err
	}

	// Create server with security timeouts
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(cleanup)

	return srv, nil
}

// setupRouter builds the repositories, services and handlers over database.
func setupRouter(cfg *config.Config, database *db.Database, lookup cache.MessageLookup, sender provider.Sender) (*router.Router, error) {
	// Initialize repositories
	userRepo := db.NewUserRepository(database)
	profileRepo := db.NewProfileRepository(database)
	messageRepo := db.NewMessageRepository(database)
	campaignRepo := db.NewCampaignRepository(database)
	auditRepo := db.NewAuditRepository(database)

	// Initialize services
	auditService := services.NewAuditService(auditRepo)
	userService := services.NewUserService(userRepo, profileRepo, cfg.Security.TOTPEncryptionKey, cfg.DefaultTimezone)
	profileService := services.NewProfileService(profileRepo, userRepo)
	messageService := services.NewMessageService(messageRepo)
	dispatcher := services.NewDispatcher(sender, messageRepo, profileRepo, userRepo, campaignRepo, lookup, auditService)
	reconciler := services.NewReconciler(messageRepo, campaignRepo, lookup, auditService)
	inbound := services.NewInboundRouter(profileRepo, messageRepo, auditService)
	statsService := services.NewStatsService(profileRepo, messageRepo)
	campaignService := services.NewCampaignService(campaignRepo, userRepo, dispatcher)

	// Seed database if enabled
	if cfg.Seed.Enable {
		created, err := userService.SeedAdmin(context.Background(), cfg.Seed.AdminUsername, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to seed admin user: %w", err)
		}
		if created {
			logger.Info("Seeded admin user", zap.String("username", cfg.Seed.AdminUsername))
		}
	}

	return router.NewRouter(cfg, router.Handlers{
		Auth:      handlers.NewAuthHandler(cfg, userService),
		Users:     handlers.NewUserHandler(userService),
		Profiles:  handlers.NewProfileHandler(profileService),
		Messages:  handlers.NewMessageHandler(messageService, dispatcher, userService),
		Stats:     handlers.NewStatsHandler(statsService, profileService),
		Campaigns: handlers.NewCampaignHandler(campaignService),
		Audit:     handlers.NewAuditHandler(auditService),
		Webhooks:  handlers.NewWebhookHandler(inbound, reconciler),
	})
}

// newSender returns the provider client, or nil when credentials are
// missing. Sends then fail and are recorded as FAILED.
func newSender(cfg *config.Config) provider.Sender {
	if !cfg.Twilio.Enabled() {
		logger.Warn("Twilio credentials not configured, outbound SMS will fail")
		return nil
	}

	client, err := provider.NewTwilioClient(provider.TwilioOptions{
		AccountSID:          cfg.Twilio.AccountSID,
		AuthToken:           cfg.Twilio.AuthToken,
		From:                cfg.Twilio.FromNumber,
		MessagingServiceSID: cfg.Twilio.MessagingServiceSID,
		StatusCallback:      cfg.Twilio.StatusCallbackURL,
		BaseURL:             cfg.Twilio.APIBaseURL,
		Timeout:             cfg.Twilio.Timeout,
	})
	if err != nil {
		logger.Warn("Failed to create Twilio client", zap.Error(err))
		return nil
	}
	if cfg.Twilio.StatusCallbackURL == "" {
		logger.Warn("No status callback URL configured, delivery updates will not arrive")
	}
	return client
}

// setupLookup connects the provider-id cache. An unreachable Redis is
// logged and replaced by the no-op cache.
func setupLookup(cfg *config.Config) (cache.MessageLookup, func()) {
	noop := func() {}
	if !cfg.Redis.Enabled() {
		return cache.Noop{}, noop
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lookup := cache.NewRedisLookup(rdb, cfg.Redis.TTL)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := lookup.Ping(ctx); err != nil {
		logger.Warn("Redis unavailable, provider id cache disabled",
			zap.String("addr", cfg.Redis.Address),
			zap.Error(err),
		)
		_ = rdb.Close()
		return cache.Noop{}, noop
	}

	logger.Info("Provider id cache enabled", zap.String("addr", cfg.Redis.Address))
	return lookup, func() {
		if err := rdb.Close(); err != nil {
			logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
}

// StartServer starts the HTTP server and handles graceful shutdown
func StartServer(srv *http.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return StartServerWithContext(ctx, srv)
}

// StartServerWithContext starts the HTTP server with a context for shutdown control
func StartServerWithContext(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	// Create a timeout context for shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
