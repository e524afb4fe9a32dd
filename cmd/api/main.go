package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/api/ws"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/security"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type repositories struct {
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	users    repository.UserRepository
	admins   repository.AdminRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	rooms := realtime.NewRoomManager(logger, metrics)
	realtime.NewFanout(rooms, logger).Register(dispatcher)
	service.NewNotificationService(dispatcher, logger, cfg.Notification).RegisterHandlers()

	locks := service.NewTicketLocks()
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		MessageRepo: repos.messages,
		UserRepo:    repos.users,
		AdminRepo:   repos.admins,
		Rooms:       rooms,
		Locks:       locks,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	chatService := service.NewChatService(cfg.Realtime, service.ChatDependencies{
		TicketRepo:  repos.tickets,
		MessageRepo: repos.messages,
		AdminRepo:   repos.admins,
		Rooms:       rooms,
		Locks:       locks,
		Limiter:     security.NewMessageLimiter(redis.Handle(), cfg.Realtime.MessagesPerWindow, cfg.Realtime.RateWindow()),
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	accountService := service.NewAccountService(cfg.Accounts, repos.users, repos.admins, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readinessChecks(pg, redis)),
		Tickets:   handlers.NewTicketsHandler(ticketService, chatService),
		Accounts:  handlers.NewAccountsHandler(accountService),
		WebSocket: ws.NewHandler(chatService, cfg.Realtime, logger, metrics),
		Metrics:   metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// buildRepositories picks the Postgres gateway when a pool is open and the
// in-memory store otherwise.
func buildRepositories(pg *persistence.Postgres) repositories {
	if pool := pg.PoolHandle(); pool != nil {
		return repositories{
			tickets:  repository.NewTicketRepository(pool),
			messages: repository.NewMessageRepository(pool),
			users:    repository.NewUserRepository(pool),
			admins:   repository.NewAdminRepository(pool),
		}
	}
	store := repository.NewMemoryStore()
	return repositories{
		tickets:  store.Tickets(),
		messages: store.Messages(),
		users:    store.Users(),
		admins:   store.Admins(),
	}
}

// readinessChecks lists only the dependencies that were configured.
func readinessChecks(pg *persistence.Postgres, rdb *persistence.Redis) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if pg.Enabled() {
		checks["postgres"] = pg
	}
	if rdb.Enabled() {
		checks["redis"] = rdb
	}
	return checks
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
