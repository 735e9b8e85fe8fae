package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"care-chat/internal/care"
	"care-chat/internal/chat"
	"care-chat/internal/config"
	"care-chat/internal/db"
	myMiddleware "care-chat/internal/middleware"
	"care-chat/internal/user"
)

func main() {
	// 1. Config & Flags
	addr := flag.String("addr", "", "http service address (overrides ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database
	database, err := db.NewDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	logger.Info("connected to postgres")

	if err := database.AutoMigrate(ctx); err != nil {
		return err
	}

	// 3. Broadcast channel
	registry := chat.NewRegistry()
	var broadcaster chat.Broadcaster
	switch cfg.BroadcastMode {
	case config.BroadcastRedis:
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		logger.Info("connected to redis", "addr", cfg.RedisAddr)

		rb := chat.NewRedisBroadcaster(redisClient, registry, cfg.Chat.ChannelPrefix, logger)
		defer rb.Close()
		broadcaster = rb
	default:
		broadcaster = chat.NewLocalBroadcaster(registry, logger)
	}

	// 4. Chat feature
	hub := chat.NewHub(chat.NewRepository(database.Conn), broadcaster, chat.Options{
		SendBuffer:     cfg.Chat.SendBuffer,
		MaxMessageSize: cfg.Chat.MaxMessageSize,
		WriteWait:      cfg.Chat.WriteWait,
		PongWait:       cfg.Chat.PongWait,
		StoreTimeout:   cfg.Chat.StoreTimeout,
	}, logger)
	chatHandler := chat.NewHandler(hub, cfg.AllowedOrigins, logger)

	// 5. Care assignment feature
	careHandler := care.NewHandler(care.NewService(care.NewRepository(database.Conn), logger), logger)

	authMiddleware := myMiddleware.NewAuthMiddleware(user.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer))

	// 6. Routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", chatHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/ws/chat/{roomID}", chatHandler.ServeWs)
		r.Get("/api/rooms/{roomID}/messages", chatHandler.GetHistory)
		r.Post("/api/patients/{patientID}/assignment", careHandler.AssignPatient)
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "broadcast", cfg.BroadcastMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not covered by server.Shutdown.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Error("hub shutdown", "error", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
