package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/lounge/internal/config"
	"github.com/vedran77/lounge/internal/database"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/repository"
	"github.com/vedran77/lounge/internal/repository/memory"
	postgresrepo "github.com/vedran77/lounge/internal/repository/postgres"
	"github.com/vedran77/lounge/internal/service"
	"github.com/vedran77/lounge/internal/transport/http/handlers"
	"github.com/vedran77/lounge/internal/transport/ws"
)

type repos struct {
	users    repository.UserRepository
	rooms    repository.RoomRepository
	messages repository.MessageRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Storage
	var (
		store repos
		pool  *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := memory.New()
		store = repos{users: mem.Users(), rooms: mem.Rooms(), messages: mem.Messages()}
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		pool, err = database.Connect(ctx, cfg.DatabaseDSN())
		if err != nil {
			logger.Error("connecting to database", "error", err)
			os.Exit(1)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Error("running migrations", "error", err)
			pool.Close()
			os.Exit(1)
		}
		logger.Info("connected to database", "host", cfg.DBHost, "db", cfg.DBName)
		store = repos{
			users:    postgresrepo.NewUserRepo(pool),
			rooms:    postgresrepo.NewRoomRepo(pool),
			messages: postgresrepo.NewMessageRepo(pool),
		}
	}

	// Realtime core
	registry := realtime.NewRegistry(logger, realtime.Options{MaxSendFailures: cfg.MaxSendFailures})

	// Services
	authService := service.NewAuthService(store.users, cfg.JWTSecret, cfg.TokenTTL)
	presenceService := service.NewPresenceService(store.users, registry, logger)
	messageService := service.NewMessageService(store.messages, store.rooms, store.users, registry, service.MessageOptions{
		MaxContentLength: cfg.MaxMessageLength,
		HistoryPageSize:  cfg.HistoryPageSize,
	}, logger)
	membershipService := service.NewMembershipService(store.rooms, store.users, messageService, registry, logger)
	roomService := service.NewRoomService(store.rooms, store.users, registry)
	typingService := service.NewTypingService(store.rooms, store.users, registry, logger)

	gateway := ws.NewGateway(authService, registry, presenceService, membershipService, messageService, typingService, ws.Options{
		SendBufferSize: cfg.SendBufferSize,
		WriteTimeout:   cfg.WriteTimeout,
		PingInterval:   cfg.PingInterval,
	}, logger)

	// Routes
	router := handlers.NewRouter(handlers.Routes{
		Auth:      handlers.NewAuthHandler(authService, logger),
		Rooms:     handlers.NewRoomHandler(roomService, membershipService, logger),
		Messages:  handlers.NewMessageHandler(messageService, logger),
		Users:     handlers.NewUserHandler(presenceService, logger),
		Tokens:    authService,
		WebSocket: ws.ServeWS(gateway),
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"server": func(ctx context.Context) error {
			logger.Info("shutting down")
			// Stop accepting first, then drain sockets so presence is written
			// before the pool goes away.
			err := srv.Shutdown(ctx)
			err = errors.Join(err, gateway.Shutdown(ctx))
			if pool != nil {
				pool.Close()
			}
			return err
		},
	})

	exitCode := <-wait
	logger.Info("exited", "code", exitCode)
	os.Exit(exitCode)
}
