package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referral-bot/internal/bot"
	"referral-bot/internal/config"
	"referral-bot/internal/db"
	"referral-bot/internal/logger"
	"referral-bot/internal/metrics"
	"referral-bot/internal/router"
	"referral-bot/internal/services"
	"referral-bot/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.LogLevel, cfg.LogFile)
	log.Info().Str("db_driver", cfg.DBDriver).Msg("Starting referral bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("Unknown timezone, using UTC")
		loc = time.UTC
	}

	var botAPI *tgbotapi.BotAPI
	botUsername := cfg.BotUsername
	if cfg.BotToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Bot init failed")
		}
		botUsername = botAPI.Self.UserName
	} else {
		log.Warn().Msg("BOT_TOKEN not set, Telegram transport disabled")
	}

	engine := services.NewEngine(
		ledger,
		services.NewLinkBuilder(cfg.LinkBase, botUsername),
		services.Rules{
			ReferralReward:    cfg.ReferralReward,
			MinimumWithdrawal: cfg.MinimumWithdrawal,
			BonusMin:          cfg.BonusMin,
			BonusMax:          cfg.BonusMax,
		},
		log.With().Str("component", "engine").Logger(),
		services.WithMetrics(metrics.Ledger()),
		services.WithLocation(loc),
	)

	if botAPI != nil {
		tg := bot.New(botAPI, engine, log.With().Str("component", "bot").Logger())
		engine.SetNotifier(tg)
		log.Info().Str("bot", botUsername).Msg("Telegram bot started")
		go tg.Run(ctx)
	}

	auth := services.NewAuthService(cfg.JWTSecret, cfg.OperatorPasswordHash, log)
	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.SetupRouter(engine, auth, log, router.Options{
			RateLimit: cfg.RateLimit,
			RateBurst: cfg.RateBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("HTTP server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, func()) {
	switch cfg.DBDriver {
	case "mysql":
		database := db.InitDB(cfg.DBUrl, log)
		db.RunMigrations(database, log)
		return store.NewMySQLStore(database, log), func() { database.Close() }
	case "postgres":
		pool := db.InitPostgres(ctx, cfg.DBUrl, log)
		db.RunPostgresMigrations(ctx, pool, log)
		return store.NewPostgresStore(pool, log), pool.Close
	default:
		log.Warn().Msg("Using in-memory store, balances are lost on restart")
		return store.NewMemoryStore(), func() {}
	}
}
