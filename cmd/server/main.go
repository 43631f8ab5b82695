package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/internal/auth"
	"github.com/freeeve/qdice/internal/bot"
	"github.com/freeeve/qdice/internal/config"
	"github.com/freeeve/qdice/internal/handler"
	"github.com/freeeve/qdice/internal/logger"
	"github.com/freeeve/qdice/internal/repository"
	"github.com/freeeve/qdice/internal/repository/postgres"
	redisrepo "github.com/freeeve/qdice/internal/repository/redis"
	"github.com/freeeve/qdice/internal/repository/sqlite"
	"github.com/freeeve/qdice/internal/service"
	"github.com/freeeve/qdice/pkg/dice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.Options{})
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Dev: cfg.Dev})

	tableConfigs, err := config.LoadTables(cfg.TablesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.TablesFile).Msg("Failed to load tables")
	}
	log.Info().Str("store", cfg.StoreDriver).Int("tables", len(tableConfigs)).Msg("Config loaded")

	// Storage
	var (
		tableRepo repository.TableRepository
		userRepo  repository.UserRepository
	)
	switch cfg.StoreDriver {
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("SQLite open failed")
		}
		defer store.Close()
		tableRepo, userRepo = store, store
	default:
		db := connectPostgres(cfg.DatabaseURL)
		defer db.Close()
		tableRepo, userRepo = postgres.NewTableRepo(db), postgres.NewUserRepo(db)
	}

	// WebSocket hub
	wsHub := handler.NewHub()

	// Redis: chat history and pub/sub fan-out. The server runs without it.
	var (
		chatLog   repository.ChatLog
		publisher service.Publisher = wsHub
	)
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, chat history and fan-out disabled")
	} else {
		defer redisClient.Close()
		chatLog = redisClient
		publisher = service.MultiPublisher{wsHub, redisClient}
	}

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// Services
	rules := dice.DefaultRules()
	rules.TurnTimeout = cfg.TurnTimeout
	rules.GameStartCountdown = cfg.GameStartCountdown
	rng := dice.NewRand(uint64(time.Now().UnixNano()))

	tableSvc := service.NewTableService(service.Options{
		Configs:     tableConfigs,
		Store:       tableRepo,
		Users:       userRepo,
		Chat:        chatLog,
		Engine:      dice.NewEngine(rules, rng),
		Publisher:   publisher,
		AttackDelay: cfg.AttackDelay,
		VerifyRate:  cfg.CacheVerifyRate,
		Rand:        rng,
	})
	defer tableSvc.Stop()

	scheduler := service.NewScheduler(tableSvc, service.SchedulerConfig{
		Interval:      cfg.TickInterval,
		WatcherMaxAge: 30 * time.Second,
		Bot: bot.TickConfig{
			TurnDelay:   cfg.BotTurnDelay,
			JoinDelay:   cfg.BotJoinDelay,
			DeadlockMax: cfg.BotDeadlockMax,
		},
		Parallelism: 4,
	})

	root := handler.NewRouter(handler.RouterConfig{
		Tables:     tableSvc,
		Users:      userRepo,
		Hub:        wsHub,
		JWT:        jwtMgr,
		DevLogin:   cfg.DevAuth,
		CORSOrigin: cfg.CORSOrigin,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     root,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Load every table up front so map problems show at boot
	if _, err := tableSvc.Tables(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to load tables (non-fatal)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

func connectPostgres(url string) *sql.DB {
	db, err := postgres.Connect(url)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Database migration failed")
	}
	return db
}
