package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"reminder_bot/internal/app"
	"reminder_bot/internal/infra/config"
	idb "reminder_bot/internal/infra/database"
	"reminder_bot/internal/infra/httpapi"
	"reminder_bot/internal/infra/logger"
	"reminder_bot/internal/infra/scheduler"
	"reminder_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not load application configuration")
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"db_driver":   cfg.DBDriver,
		"environment": cfg.Environment,
		"sweep_cron":  cfg.SweepCronSpec,
	}).Info("Reminder bot starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.Open(ctx, idb.Dialect(cfg.DBDriver), cfg.DataSource())
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established and migrations applied.")

	// Initialize Repositories
	userRepo := idb.NewSQLUserRepository(db)
	reminderRepo := idb.NewSQLReminderRepository(db)
	birthdayRepo := idb.NewSQLBirthdayRepository(db)
	noteRepo := idb.NewSQLNoteRepository(db)
	todoRepo := idb.NewSQLTodoRepository(db)

	renderer := app.NewRenderer(cfg.DefaultLanguage)

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: cfg.PollerTimeout},
		Client: &http.Client{Timeout: cfg.PollerTimeout + cfg.DeliveryTimeout},
		OnError: func(err error, c telebot.Context) { // Global error handler
			errLogger := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				errLogger = errLogger.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			errLogger.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	if err := bot.SetCommands(telegram.Commands); err != nil {
		mainLogger.WithError(err).Warn("Could not publish the command menu")
	}

	dispatcher := telegram.NewDispatcher(telegram.NewTelebotAdapter(bot), cfg.DeliveryRatePerSec, logger.Component("dispatcher"))

	// Initialize Schedulers
	timerScheduler := scheduler.NewTimerScheduler(
		reminderRepo,
		userRepo,
		dispatcher,
		renderer,
		logrus.NewEntry(logger.Log),
		scheduler.WithDeliveryTimeout(cfg.DeliveryTimeout),
	)
	sweepScheduler := scheduler.NewSweepScheduler(
		birthdayRepo,
		userRepo,
		dispatcher,
		renderer,
		logrus.NewEntry(logger.Log),
		cfg.SweepCronSpec,
		scheduler.WithDeliveryTimeout(cfg.DeliveryTimeout),
	)

	// Initialize Services
	reminderService := app.NewReminderService(reminderRepo, userRepo, timerScheduler, logger.Component("reminder_service"))
	birthdayService := app.NewBirthdayService(birthdayRepo, userRepo, logger.Component("birthday_service"))
	settingsService := app.NewSettingsService(userRepo, timerScheduler, logger.Component("settings_service"))
	noteService := app.NewNoteService(noteRepo, userRepo, logger.Component("note_service"))
	todoService := app.NewTodoService(todoRepo, userRepo, logger.Component("todo_service"))

	// Register Handlers
	handlerLogger := logger.Component("telegram_handlers")
	telegram.RegisterBotCommands(ctx, bot, settingsService, renderer, handlerLogger)
	telegram.RegisterReminderHandlers(ctx, bot, reminderService, settingsService, renderer, handlerLogger)
	telegram.RegisterBirthdayHandlers(ctx, bot, birthdayService, settingsService, renderer, handlerLogger)
	telegram.RegisterSettingsHandlers(ctx, bot, settingsService, renderer, handlerLogger)
	telegram.RegisterNoteHandlers(ctx, bot, noteService, settingsService, renderer, handlerLogger)
	telegram.RegisterTodoHandlers(ctx, bot, todoService, settingsService, renderer, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, cfg.AdminTelegramID, settingsService, renderer, handlerLogger)
	mainLogger.Info("Telegram command handlers registered.")

	if err := timerScheduler.Start(ctx); err != nil {
		// The next reminder mutation re-arms the timer.
		mainLogger.WithError(err).Error("Could not arm the reminder timer")
	}
	if err := sweepScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start birthday sweep scheduler")
	}

	var statusServer *httpapi.Server
	if cfg.HTTPAddr != "" {
		statusServer = httpapi.NewServer(cfg.HTTPAddr, db, timerScheduler, sweepScheduler, logrus.NewEntry(logger.Log))
		go func() {
			if err := statusServer.Start(); err != nil {
				mainLogger.WithError(err).Error("Status server stopped with error")
			}
		}()
	}

	mainLogger.Info("Application setup complete. Bot and schedulers are running.")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	sweepScheduler.Stop()
	timerScheduler.Stop()
	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			mainLogger.WithError(err).Warn("Status server did not shut down cleanly")
		}
		cancel()
	}
	mainLogger.Info("Application shut down gracefully.")
}
