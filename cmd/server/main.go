package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/84634E1A607A/nova210se-backend/config"
	"github.com/84634E1A607A/nova210se-backend/internal/auth"
	"github.com/84634E1A607A/nova210se-backend/internal/database"
	"github.com/84634E1A607A/nova210se-backend/internal/handlers"
	"github.com/84634E1A607A/nova210se-backend/internal/monitoring"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
	"github.com/84634E1A607A/nova210se-backend/internal/router"
	"github.com/84634E1A607A/nova210se-backend/internal/services"
	"github.com/84634E1A607A/nova210se-backend/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server initialization", "service", cfg.ServiceName, "debug", cfg.Debug)

	db, err := database.Connect(cfg.DB, cfg.Debug)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Migrate before listening; a migration failure aborts startup
	if err := database.Migrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	var broker notify.Broker
	if cfg.RedisAddr != "" {
		redisBroker, err := notify.NewRedisBroker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer redisBroker.Close()
		broker = redisBroker
		slog.Info("Notification fan-out backed by Redis", "addr", cfg.RedisAddr)
	} else {
		broker = notify.NewBus()
		slog.Info("Notification fan-out running in-process")
	}

	if cfg.EnableObservability {
		if err := monitoring.Initialize(cfg.ServiceName); err != nil {
			slog.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
	}

	sessions := auth.NewManager(db, cfg.JWTSecret, cfg.SessionTTL)

	userService := services.NewUserService(db, broker)
	groupService := services.NewFriendGroupService(db)
	friendService := services.NewFriendService(db, broker)
	chatService := services.NewChatService(db, broker)
	messageService := services.NewMessageService(db, broker)

	rt := router.New(
		cfg,
		sessions,
		handlers.NewUserHandler(userService, sessions, broker, cfg.Debug),
		handlers.NewFriendHandler(friendService, cfg.Debug),
		handlers.NewFriendGroupHandler(groupService, cfg.Debug),
		handlers.NewChatHandler(chatService, messageService, cfg.Debug),
		ws.NewHandler(db, broker, sessions, messageService),
	)

	// No WriteTimeout: it would sever long-lived websocket connections
	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     rt.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
