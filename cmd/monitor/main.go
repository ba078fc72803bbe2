package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/api"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/config"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/fetcher"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/monitor"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/dedup"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/logger"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/notify"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/ratelimit"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/reconcile"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/store"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/scraper"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.json", "path to the config file")
		once       = flag.Bool("once", false, "run a single scan cycle and exit")
	)
	flag.Parse()

	// A local .env is convenient in development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	appLogger.Info("hw tracker starting",
		slog.String("env", cfg.App.Env),
		slog.String("base_url", cfg.Site.BaseURL),
		slog.Bool("once", *once))

	st, err := store.Open(cfg.SQLite.Path, appLogger)
	if err != nil {
		appLogger.Error("open state store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	var (
		rdb     *redis.Client
		limiter *ratelimit.RateLimiter
		guard   *dedup.AlertGuard
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if cfg.App.RateLimit > 0 {
			limiter = ratelimit.NewRedisRateLimiter(rdb, appLogger,
				"hwtracker:ratelimit:site", cfg.App.RateLimit, cfg.App.RateBurst)
		}
		guard = dedup.NewAlertGuard(rdb, cfg.Redis.AlertGuardTTL)
		appLogger.Info("redis features enabled", slog.String("addr", cfg.Redis.Addr))
	}

	httpFetcher := fetcher.NewHTTPFetcher(cfg.App.FetchTimeout, cfg.Site.UserAgent)
	discoverer := scraper.NewDiscoverer(httpFetcher, cfg.Site.BaseURL, cfg.Site.Surfaces, appLogger)
	validator := scraper.NewValidator(httpFetcher, cfg.Site.Brand, appLogger)

	channels := []notify.Notifier{
		notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID),
	}
	if cfg.Email.SMTPHost != "" {
		channels = append(channels, notify.NewEmailNotifier(&cfg.Email, appLogger))
	}
	notifier := notify.NewMulti(appLogger, channels...)

	engine := reconcile.New(st, notifier, guard, appLogger)
	mon := monitor.New(discoverer, validator, engine, st, limiter, &cfg.App, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		notified, err := mon.RunScan(ctx)
		if err != nil {
			appLogger.Error("scan failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		appLogger.Info("scan finished", slog.Int("notified", notified))
		return
	}

	var apiServer *api.Server
	if cfg.App.HTTPAddr != "" {
		apiServer = api.NewServer(cfg.App.HTTPAddr, st, appLogger)
		go func() {
			if err := apiServer.Start(); err != nil {
				appLogger.Error("http server stopped with error", slog.String("error", err.Error()))
			}
		}()
	}

	mon.RunContinuous(ctx)

	appLogger.Info("shutting down...")
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	appLogger.Info("hw tracker stopped gracefully")
}
