package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/salonbot/internal/booking"
	"github.com/region23/salonbot/internal/bot"
	"github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/internal/config"
	"github.com/region23/salonbot/internal/events"
	"github.com/region23/salonbot/internal/middleware"
	"github.com/region23/salonbot/internal/reminder"
	"github.com/region23/salonbot/internal/scheduler"
	"github.com/region23/salonbot/internal/server"
	"github.com/region23/salonbot/internal/session"
	"github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/storage/sqlite"
	"github.com/region23/salonbot/pkg/logger"
)

// version подставляется при сборке через -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "salonbot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log, err := logger.NewWithFormat(level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting salon bot",
		logger.String("version", version),
		logger.String("mode", cfg.Telegram.Mode),
		logger.String("timezone", cfg.Schedule.Timezone))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем хранилище
	store, err := sqlite.New(cfg.Database.Path,
		sqlite.WithBusyTimeout(cfg.Database.BusyTimeout),
		sqlite.WithTxTimeout(cfg.Database.TxTimeout))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", logger.Error(err))
		}
	}()

	if cfg.Schedule.SeedServices {
		if err := store.SeedServices(ctx, models.DefaultServices()); err != nil {
			return fmt.Errorf("failed to seed services: %w", err)
		}
	}

	publisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Error closing event publisher", logger.Error(err))
		}
	}()

	sessions, closeSessions, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	loc := cfg.Location()
	gran := cfg.Granularity()
	auth := booking.AdminList(cfg.Telegram.AdminIDs)

	// Диспетчер создается после бота, обработчик обращается к нему при первом обновлении
	var dispatcher *bot.Dispatcher
	telegramBot, err := tgbot.New(cfg.Telegram.Token,
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
			dispatcher.HandleUpdate(ctx, b, update)
		}),
		tgbot.WithErrorsHandler(func(err error) {
			log.Warn("Telegram client error", logger.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	sweeper := reminder.NewSweeper(store, service.NewNotifier(telegramBot), cfg.Reminder.Window, loc, log)
	planner := booking.NewPlanner(store, gran, loc, log)

	botService := service.NewService(service.Deps{
		Bot:      telegramBot,
		Storage:  store,
		Manager:  booking.NewManager(store, auth, publisher, gran, log),
		Finder:   booking.NewFinder(store, gran, loc),
		Planner:  planner,
		Sweeper:  sweeper,
		Sessions: sessions,
		Config:   cfg,
		Auth:     auth,
		Log:      log,
	})

	chatLimiter := middleware.NewRateLimiter(cfg.Server.UpdatesPerMin, time.Minute, log)
	defer chatLimiter.Close()
	dispatcher = bot.NewDispatcher(botService, chatLimiter)

	// Фоновые задачи: напоминания и очистка прошедших слотов
	jobs := scheduler.New(loc, log.Named("scheduler"))
	if err := jobs.ScheduleInterval("reminder_sweep", cfg.Reminder.SweepInterval, cfg.Reminder.SweepTimeout,
		func(ctx context.Context) error {
			report := sweeper.RunSweep(ctx, time.Now())
			if len(report.Errors) > 0 {
				return fmt.Errorf("%d reminders failed: %w", report.Failed(), errors.Join(report.Errors...))
			}
			return nil
		}); err != nil {
		return err
	}
	if err := jobs.ScheduleCron("slot_cleanup", cfg.Schedule.CleanupCron, time.Minute,
		func(ctx context.Context) error {
			olderThan := time.Duration(cfg.Schedule.CleanupAfterHours) * time.Hour
			_, _, err := planner.Cleanup(ctx, time.Now(), olderThan, false)
			return err
		}); err != nil {
		return err
	}
	jobs.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := jobs.Stop(stopCtx); err != nil {
			log.Warn("Scheduler stopped with running jobs", logger.Error(err))
		}
	}()

	if err := configureUpdates(ctx, telegramBot, cfg, log); err != nil {
		return err
	}
	if cfg.Telegram.Mode == "polling" {
		go telegramBot.Start(ctx)
	}

	srv := server.New(cfg, log, server.Deps{
		Store:   store,
		Updates: dispatcher,
		Bot:     telegramBot,
		Sweeper: sweeper,
		Version: version,
	})

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Server stopped gracefully")
	return nil
}

// configureUpdates регистрирует webhook или снимает его для long polling
func configureUpdates(ctx context.Context, b *tgbot.Bot, cfg *config.Config, log *logger.Logger) error {
	if cfg.Telegram.Mode == "polling" {
		if _, err := b.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
			log.Warn("Failed to delete existing webhook", logger.Error(err))
		}
		log.Info("Long polling enabled")
		return nil
	}

	params := &tgbot.SetWebhookParams{
		URL:            cfg.Telegram.WebhookURL,
		SecretToken:    cfg.Telegram.WebhookSecret,
		AllowedUpdates: []string{"message", "callback_query"},
	}
	if _, err := b.SetWebhook(ctx, params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	log.Info("Webhook configured", logger.String("url", cfg.Telegram.WebhookURL))
	return nil
}

// newPublisher подключает RabbitMQ, если задан AMQP_URL
func newPublisher(cfg *config.Config, log *logger.Logger) (events.Publisher, error) {
	if cfg.AMQP.URL == "" {
		log.Info("Event publishing disabled")
		return events.NopPublisher{}, nil
	}

	p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.QueuePrefix, log.Named("events"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	return p, nil
}

// newSessionStore выбирает Redis или память процесса
func newSessionStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (session.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Info("Sessions are kept in memory")
		store := session.NewMemoryStore(cfg.Redis.SessionTTL)
		return store, store.Close, nil
	}

	client, err := session.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("Sessions are kept in Redis", logger.String("addr", cfg.Redis.Addr))

	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("Error closing Redis client", logger.Error(err))
		}
	}
	return session.NewRedisStore(client, cfg.Redis.SessionTTL), closeFn, nil
}
