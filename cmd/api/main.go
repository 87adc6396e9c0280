package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"converse_backend/internal/adapters"
	"converse_backend/internal/automation"
	"converse_backend/internal/bookings"
	"converse_backend/internal/email"
	"converse_backend/internal/escalations"
	apphttp "converse_backend/internal/http"
	"converse_backend/internal/http/router"
	"converse_backend/internal/leads"
	"converse_backend/internal/notification"
	"converse_backend/internal/scheduler"
	"converse_backend/internal/sectors"
	"converse_backend/internal/whatsapp"
	"converse_backend/platform/ai/completion"
	"converse_backend/platform/ai/gemini"
	"converse_backend/platform/ai/moonshot"
	"converse_backend/platform/config"
	"converse_backend/platform/db"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"
	"converse_backend/platform/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	m := metrics.New()

	sectorStore := sectors.NewStore(pool)

	completionClient, err := newCompletionClient(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize completion client", "error", err)
		panic("failed to initialize completion client: " + err.Error())
	}

	waClient := whatsapp.NewClient(cfg, log)

	dispatchClient, closeDispatch := initDispatchClient(cfg, log)
	if closeDispatch != nil {
		defer closeDispatch()
	}

	emailSender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}
	email.NewNotifier(emailSender, sectorStore, log).RegisterEventHandlers(eventBus)

	// ========================================================================
	// Domain Modules
	// ========================================================================

	escalationsModule := escalations.NewModule(pool, eventBus, m, log)
	bookingsModule := bookings.NewModule(pool, sectorStore, waClient, eventBus, log)
	leadsModule := leads.NewModule(pool, sectorStore, eventBus, log)
	automationModule := automation.NewModule(
		pool,
		sectorStore,
		completionClient,
		cfg.CompletionTimeout,
		adapters.NewEscalationTicketOpener(escalationsModule.Service()),
		bookingsModule.Service(),
		dispatchClient,
		eventBus,
		m,
		log,
	)
	notificationModule := notification.NewModule(eventBus)
	defer notificationModule.Close()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Metrics:  m,
		Modules: []apphttp.Module{
			automationModule,
			escalationsModule,
			leadsModule,
			bookingsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newCompletionClient picks the configured text-completion provider.
func newCompletionClient(ctx context.Context, cfg config.CompletionConfig) (completion.Client, error) {
	switch strings.ToLower(cfg.GetCompletionProvider()) {
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey: cfg.GetCompletionAPIKey(),
			Model:  cfg.GetCompletionModel(),
		})
	case "moonshot", "":
		return moonshot.NewClient(moonshot.Config{
			APIKey:  cfg.GetCompletionAPIKey(),
			BaseURL: cfg.GetCompletionBaseURL(),
			Model:   cfg.GetCompletionModel(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.GetCompletionProvider())
	}
}

func initDispatchClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; delayed reply dispatch disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize dispatch client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
