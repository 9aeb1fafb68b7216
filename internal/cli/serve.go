package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"

	"elapsed_tracker/internal/app"
	"elapsed_tracker/internal/domain/elapsed"
	"elapsed_tracker/internal/domain/notification"
	"elapsed_tracker/internal/domain/photo"
	"elapsed_tracker/internal/infra/config"
	"elapsed_tracker/internal/infra/database"
	"elapsed_tracker/internal/infra/httpapi"
	"elapsed_tracker/internal/infra/logger"
	"elapsed_tracker/internal/infra/notify"
	"elapsed_tracker/internal/infra/photoapi"
	"elapsed_tracker/internal/infra/scheduler"
	"elapsed_tracker/internal/infra/telegram"
)

const shutdownTimeout = 10 * time.Second

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the tracker, the HTTP API and the Telegram bot",
		Run:   runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load configuration", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment":  cfg.Environment,
		"granularity":  cfg.DisplayGranularity,
		"tick_spec":    cfg.TickSpec,
		"http_addr":    cfg.HTTPAddr,
		"telegram":     cfg.TelegramToken != "",
		"remote_photo": cfg.PhotoAPIURL != "",
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := database.OpenPhotoRepository(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not open storage")
	}
	defer closeRepo()
	mainLogger.Info("Storage opened")

	clock := elapsed.SystemClock{}
	photos := app.NewPhotoService(repo, clock, cfg.Epoch.Format(time.RFC3339), logger.Component("photos"))

	epoch, err := photos.Epoch(ctx)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not resolve the start date")
	}
	mainLogger.WithField("epoch", epoch.Format(time.RFC3339)).Info("Epoch resolved")

	var bot *telebot.Bot
	var dispatcher notification.Dispatcher = notify.NewLogDispatcher(logger.Component("notify"))
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := botLogger.WithError(err)
				if c != nil && c.Chat() != nil {
					entry = entry.WithField("chat_id", c.Chat().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		dispatcher = telegram.NewDispatcher(bot, cfg.TelegramChatID)
	}

	snapshot := &app.Snapshot{}
	tracker := app.NewTrackerService(epoch, clock, dispatcher, snapshot,
		cfg.NotificationTitle, cfg.NotifyTimeout, logger.Component("tracker"))
	reader := app.LatestReader{Snapshot: snapshot, Tracker: tracker}
	tickScheduler := scheduler.NewTickScheduler(tracker, logger.Component("scheduler"), cfg.TickSpec)

	var backend photo.Backend = photos
	if cfg.PhotoAPIURL != "" {
		backend = photoapi.NewClient(cfg.PhotoAPIURL, photoapi.WithLogger(logger.Component("photoapi")))
	}
	gallery := app.NewGallery(backend, logger.Component("gallery"))
	if cfg.PhotoAPIURL == "" {
		// The HTTP API writes to the same store, so its mutations must reach the bot's cache.
		photos.OnChange(gallery.Invalidate)
	}
	if err := gallery.Refresh(ctx); err != nil {
		mainLogger.WithError(err).Warn("Initial gallery load failed")
	}

	server := httpapi.NewServer(photos, reader, logger.Component("http"))

	if bot != nil {
		telegram.RegisterBotCommands(bot, reader, cfg.TelegramChatID, logger.Component("telegram"))
		telegram.RegisterGalleryHandlers(ctx, bot, gallery, cfg.TelegramChatID, logger.Component("telegram"))
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	if err := tickScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start tick scheduler")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		mainLogger.Info("Shutting down application...")
	case err := <-serverErr:
		if err != nil {
			mainLogger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}

	tickScheduler.Stop()
	if bot != nil {
		bot.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server shutdown")
	}
	mainLogger.Info("Application shut down gracefully.")
}
