package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/andsome/alpo-core/internal/agent"
	"github.com/andsome/alpo-core/internal/api"
	"github.com/andsome/alpo-core/internal/api/handler"
	"github.com/andsome/alpo-core/internal/chat"
	"github.com/andsome/alpo-core/internal/config"
	"github.com/andsome/alpo-core/internal/domain"
	"github.com/andsome/alpo-core/internal/news"
	"github.com/andsome/alpo-core/internal/repository/local"
	"github.com/andsome/alpo-core/internal/repository/postgres"
	redisrepo "github.com/andsome/alpo-core/internal/repository/redis"
	"github.com/andsome/alpo-core/internal/security"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting Alpo core")

	ctx := context.Background()

	var (
		sessionRepo domain.SessionRepository
		messageRepo domain.MessageRepository
		userRepo    domain.UserRepository
		newsRepo    domain.NewsRepository
		dbPinger    handler.Pinger
	)

	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		sessionRepo = postgres.NewSessionRepository(db.Pool)
		messageRepo = postgres.NewMessageRepository(db.Pool)
		userRepo = postgres.NewUserRepository(db.Pool)
		newsRepo = postgres.NewNewsRepository(db.Pool)
		dbPinger = db

	case "local":
		store, err := local.NewStore(cfg.Local.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open local store")
		}
		defer store.Close()

		sessionRepo = local.NewSessionRepository(store)
		messageRepo = local.NewMessageRepository(store)
		userRepo = local.NewUserRepository(store, cfg.Local.AccessCode)
		// No remote news source in local mode; the local user has no
		// housing companies, so the sync short-circuits to empty.

	default:
		log.Fatal().Str("backend", cfg.Storage.Backend).Msg("Unknown storage backend")
	}

	// Redis is optional: without it the news cache just starts empty.
	var snapshot news.SnapshotStore
	var redisPinger handler.Pinger
	if cfg.Storage.Backend == "postgres" {
		redisClient, err := redisrepo.NewClient(cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, news snapshot disabled")
		} else {
			defer redisClient.Close()
			snapshot = redisrepo.NewNewsCache(redisClient)
			redisPinger = redisClient
		}
	}

	if cfg.Webhook.URL == "" {
		log.Fatal().Msg("webhook.url is required")
	}
	gateway := agent.NewClient(cfg.Webhook.URL, cfg.Webhook.Timeout)

	chatManager := chat.NewManager(gateway, sessionRepo, messageRepo)

	newsService := news.NewService(newsRepo, snapshot)
	newsService.Restore(ctx)
	syncManager := news.NewSyncManager(newsService, news.SyncConfig{
		Enabled:  cfg.Sync.Enabled && newsRepo != nil,
		Interval: cfg.Sync.Interval,
		OnUpdate: func(items []domain.NewsItem) {
			log.Info().Int("count", len(items)).Msg("news cache updated")
		},
		OnError: func(err error) {
			log.Warn().Err(err).Msg("news sync error")
		},
	})
	syncManager.Start()
	defer syncManager.Stop()

	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	router := api.NewRouter(api.Deps{
		JWTManager: jwtManager,
		Auth:       handler.NewAuthHandler(userRepo, jwtManager, chatManager, syncManager),
		Chat:       handler.NewChatHandler(chatManager),
		News:       handler.NewNewsHandler(newsService, chatManager),
		Health:     handler.NewHealthHandler(dbPinger, redisPinger),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
