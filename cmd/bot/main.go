package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"reddit_responder/internal/bot"
	"reddit_responder/internal/config"
	"reddit_responder/internal/dispatch"
	"reddit_responder/internal/monitor"
	"reddit_responder/internal/reddit"
	"reddit_responder/internal/registry"
	"reddit_responder/internal/scheduler"
	"reddit_responder/internal/server"
	"reddit_responder/internal/storage"
	"reddit_responder/internal/templates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	for _, path := range []string{cfg.HistoryPath, cfg.DatabasePath, cfg.RegistryPath, cfg.TemplatesPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}

	history, err := openHistory(cfg, log)
	if err != nil {
		log.Error("open history", "backend", cfg.HistoryBackend, "error", err)
		os.Exit(1)
	}
	defer func() { _ = history.Close() }()

	reg := registry.New(cfg.RegistryPath, log)
	catalog := templates.New(cfg.TemplatesPath, log)
	if _, err := catalog.List(); err != nil {
		log.Error("load template catalog", "path", cfg.TemplatesPath, "error", err)
		os.Exit(1)
	}

	client := reddit.New(reddit.Config{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Username:     cfg.RedditUsername,
		Password:     cfg.RedditPassword,
		UserAgent:    cfg.RedditUserAgent,
	}, log)

	mon := monitor.New(client, reg, catalog, history, log)
	mon.SetPolicy(dispatch.Policy{
		Pacing:     cfg.ReplyPacing,
		Cooldown:   cfg.RateLimitCooldown,
		MaxRetries: cfg.RateLimitRetries,
	}, dispatch.RealSleeper{})

	sched := scheduler.New(mon, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	if cfg.TelegramBotToken != "" {
		b, err := bot.New(cfg.TelegramBotToken, bot.Services{
			Registry: reg,
			Catalog:  catalog,
			History:  history,
			Status:   mon.Status(),
		}, cfg, log)
		if err != nil {
			log.Error("create bot", "error", err)
			os.Exit(1)
		}
		mon.SetNotifier(b)
		sched.SetAlerts(b, cfg.NotifyChatID)

		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Run(ctx)
		}()
	} else {
		log.Info("TELEGRAM_BOT_TOKEN not set, operator console disabled")
	}

	if cfg.StatusListen != "" {
		srv := server.New(mon.Status(), history, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.StatusListen); err != nil {
				log.Error("status server", "error", err)
			}
		}()
	}

	log.Info("starting responder", "history_backend", cfg.HistoryBackend, "account", cfg.RedditUsername)

	sched.Run(ctx)
	if ctx.Err() == nil {
		log.Warn("monitoring stopped, console and status server stay up until shutdown")
	}
	wg.Wait()

	log.Info("responder stopped")
}

func openHistory(cfg *config.Config, log *slog.Logger) (storage.History, error) {
	switch cfg.HistoryBackend {
	case config.BackendSQLite:
		db, err := storage.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.BackendJSON:
		return storage.NewJSONFile(cfg.HistoryPath, log), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
