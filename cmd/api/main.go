package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/portal/internal/auth"
	"github.com/BradenHooton/portal/internal/background"
	"github.com/BradenHooton/portal/internal/config"
	"github.com/BradenHooton/portal/internal/database"
	"github.com/BradenHooton/portal/internal/events"
	"github.com/BradenHooton/portal/internal/handlers"
	middlewareCustom "github.com/BradenHooton/portal/internal/middleware"
	"github.com/BradenHooton/portal/internal/realtime"
	"github.com/BradenHooton/portal/internal/repositories"
	"github.com/BradenHooton/portal/internal/routes"
	"github.com/BradenHooton/portal/internal/services"
	"github.com/BradenHooton/portal/internal/store"
	"github.com/BradenHooton/portal/internal/store/mongostore"
	"github.com/BradenHooton/portal/internal/store/pgstore"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	pkglogger "github.com/BradenHooton/portal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// backend is the selected document store plus what the process must close
// and check for health.
type backend struct {
	store  store.Store
	health func(ctx context.Context) error
	close  func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Store.Driver),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Change feed: local fan-out, or Redis when replicas must see each other's writes
	var feed store.Feed = store.NewLocalFeed(logger)
	if cfg.Redis.URL != "" {
		redisClient, err := database.ConnectRedis(&cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()

		redisFeed := events.NewRedisFeed(redisClient, cfg.Redis.Channel, logger)
		redisFeed.Start(rootCtx)
		feed = redisFeed
	}

	be, err := openBackend(rootCtx, cfg, feed, logger)
	if err != nil {
		logger.Error("failed to open document store", slog.Any("error", err))
		os.Exit(1)
	}
	defer be.close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(be.store)
	requestRepo := repositories.NewRequestRepository(be.store)
	filiereRepo := repositories.NewFiliereRepository(be.store)
	messageRepo := repositories.NewMessageRepository(be.store)
	logRepo := repositories.NewLogRepository(be.store)
	configRepo := repositories.NewConfigRepository(be.store)
	backupRepo := repositories.NewBackupRepository(be.store)

	// Decision e-mails
	var notifier services.DecisionNotifier = services.NewLogEmailService(logger)
	if cfg.Email.Enabled {
		ses, err := services.NewSESEmailService(rootCtx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.PortalURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = ses
	}

	// Initialize services
	auditService := services.NewAuditService(logRepo, logger)
	configService := services.NewConfigService(configRepo, auditService, logger)
	requestService := services.NewRequestService(requestRepo, filiereRepo, userRepo, auditService, notifier, logger)
	validationService := services.NewValidationService(userRepo, requestRepo, filiereRepo, auditService, logger)
	notificationService := services.NewNotificationService(messageRepo, configService, auditService, cfg.Inbox.Limit, logger)
	userService := services.NewUserService(userRepo, filiereRepo, requestRepo, auditService, logger)
	filiereService := services.NewFiliereService(filiereRepo, auditService, logger)
	chatService := services.NewChatService(cfg.Chat.BackendURL, cfg.Chat.Timeout, requestService, logger)
	adminService := services.NewAdminService(userRepo, requestRepo, messageRepo, logger)
	backupService := services.NewBackupService(backupRepo, auditService, logger)

	// Auth
	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	authenticator := auth.NewAuthenticator(tokenManager, userRepo, pkglogger.NewSecurityLogger(logger), ipConfig)

	// Realtime inbox push
	hub := realtime.NewHub(notificationService, userRepo, cfg.Server.AllowedOrigins, logger)
	sweeper := background.NewSweepManager(hub, logger, cfg.Inbox.SweepInterval)

	go func() {
		if err := hub.Run(rootCtx, messageRepo, userRepo); err != nil {
			logger.Error("inbox hub stopped", slog.Any("error", err))
		}
	}()
	go func() {
		if err := configService.Run(rootCtx, hub.RefreshAll); err != nil {
			logger.Error("config watcher stopped", slog.Any("error", err))
		}
	}()
	go sweeper.Start(rootCtx)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.RequestLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	if cfg.Server.RateLimitPerMinute > 0 {
		router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Server.RateLimitPerMinute * 10,
			IPConfig:          ipConfig,
		}))
	}

	// Health check with store
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		body := map[string]interface{}{
			"status":      "healthy",
			"store":       "up",
			"driver":      cfg.Store.Driver,
			"connections": hub.Connections(),
		}
		code := http.StatusOK
		if err := be.health(ctx); err != nil {
			body["status"], body["store"] = "unhealthy", "down"
			code = http.StatusServiceUnavailable
		}
		pkghttp.WriteJSON(w, code, body)
	})

	router.Route("/api/v1", func(r chi.Router) {
		// Request timeouts would cut WebSocket connections short.
		r.Use(func(next http.Handler) http.Handler {
			timeout := middleware.Timeout(60 * time.Second)(next)
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
					next.ServeHTTP(w, r)
					return
				}
				timeout.ServeHTTP(w, r)
			})
		})

		routes.RegisterRoutes(r, routes.Handlers{
			Users:    handlers.NewUserHandler(userService),
			Requests: handlers.NewRequestHandler(requestService),
			Accounts: handlers.NewAccountHandler(validationService),
			Messages: handlers.NewMessageHandler(notificationService, logger),
			Config:   handlers.NewConfigHandler(configService),
			Filieres: handlers.NewFiliereHandler(filiereService),
			Chat:     handlers.NewChatHandler(chatService),
			Backup:   handlers.NewBackupHandler(backupService),
			Admin:    handlers.NewAdminHandler(adminService, auditService),
			Inbox:    hub.ServeWS,
		}, authenticator, ipConfig)
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweeper.Stop()
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// openBackend connects the configured document store.
func openBackend(ctx context.Context, cfg *config.Config, feed store.Feed, logger *slog.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return &backend{
			store:  store.NewMemoryStore(feed),
			health: func(context.Context) error { return nil },
			close:  func() {},
		}, nil

	case config.StoreMongo:
		m, err := database.ConnectMongo(&cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:  mongostore.New(m.DB, feed, logger),
			health: m.HealthCheck,
			close:  m.Close,
		}, nil

	case config.StorePostgres:
		connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
		defer cancelConnect()
		db, err := database.ConnectPostgres(connectCtx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := pgstore.Migrate(migrateCtx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return &backend{
			store:  pgstore.New(db, feed, logger),
			health: db.HealthCheck,
			close:  db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
