package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/kirillkom/bookbot/internal/adapters/http"
	"github.com/kirillkom/bookbot/internal/adapters/telegram"
	"github.com/kirillkom/bookbot/internal/bootstrap"
	"github.com/kirillkom/bookbot/internal/config"
	"github.com/kirillkom/bookbot/internal/observability/logging"
)

const serviceName = "bookbot"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	if cfg.TelegramToken == "" {
		slog.Error("telegram_token_missing", "env", "TELEGRAM_BOT_TOKEN")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		slog.Error("telegram_init_failed", "error", err)
		os.Exit(1)
	}
	api.Debug = cfg.TelegramDebug
	slog.Info("telegram_authorized", "username", api.Self.UserName)

	bot := telegram.New(api, app.Resolver, app.Confirmation, app.Resolver, telegram.Options{
		Hashtag:     cfg.Resolver.ReviewHashtag,
		AdminChatID: cfg.TelegramAdminChatID,
	})

	router := httpadapter.NewRouter(app.Resolver, app.Resolver, app.Confirmation, app.Metrics.Handler(), app.Metrics.Middleware).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return bot.Poll(gctx, api)
	})
	g.Go(func() error {
		return app.RunSweeper(gctx)
	})
	if app.Bus != nil && cfg.TelegramAdminChatID != 0 {
		g.Go(func() error {
			return app.Bus.SubscribeAlerts(gctx, bot.ForwardAlert)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("bot_stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("bot_stopped")
}
