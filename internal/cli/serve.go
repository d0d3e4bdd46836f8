package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"telegram-diet-diary/internal/api"
	"telegram-diet-diary/internal/config"
	"telegram-diet-diary/internal/handlers"
	"telegram-diet-diary/internal/report"
	"telegram-diet-diary/internal/scheduler"
	"telegram-diet-diary/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, and the Telegram bot with its scheduler when a token is set",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config) error {
	store, err := storage.Open(cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	reports := report.New(store, cfg.Zone())
	srv := api.New(store, reports, nil, cfg.CORSOrigin)

	if cfg.TelegramToken != "" {
		stopBot, err := startBot(ctx, cfg, store, reports, srv)
		if err != nil {
			return err
		}
		defer stopBot()
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN is not set, running the API only")
	}

	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// startBot connects to Telegram, starts polling and the summary scheduler,
// and returns a func that stops both.
func startBot(ctx context.Context, cfg config.Config, store storage.Store, reports *report.Aggregator, srv *api.Server) (func(), error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	h := &handlers.Handler{
		Bot:       bot,
		DB:        store,
		Reports:   reports,
		Events:    srv.Hub(),
		WebAppURL: cfg.WebAppURL,
		DefaultTZ: cfg.DefaultTZ,
		SummaryAt: cfg.SummaryAt,
	}
	srv.SetNotifier(h)

	sched, err := scheduler.Start(ctx, &scheduler.Runner{
		DB:        store,
		Sender:    h,
		DefaultTZ: cfg.DefaultTZ,
		SummaryAt: cfg.SummaryAt,
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)
	go h.Listen(ctx, updates)
	log.Info().Str("bot", bot.Self.UserName).Msg("telegram bot started")

	return func() {
		bot.StopReceivingUpdates()
		if err := sched.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("scheduler shutdown")
		}
	}, nil
}
