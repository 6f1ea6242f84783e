// cmd/quizbot/main.go
//
// Telegram frontend. Shares config, bank and ledger with the HTTP server;
// live games are held in the bot's own in-memory store.

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kbcquiz/assets"
	"github.com/robalobadob/kbcquiz/internal/bank"
	"github.com/robalobadob/kbcquiz/internal/config"
	"github.com/robalobadob/kbcquiz/internal/database"
	"github.com/robalobadob/kbcquiz/internal/results"
	"github.com/robalobadob/kbcquiz/internal/store"
	"github.com/robalobadob/kbcquiz/internal/telegram"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.SetupLogging()

	if cfg.TelegramToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN environment variable is required")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(db, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	qb, err := bank.Load(cfg.QuestionsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load question bank")
	}

	st := store.NewMemoryStore()
	bot, err := telegram.New(cfg.TelegramToken, cfg.TelegramDebug, qb, st, results.NewStore(db))
	if err != nil {
		log.Fatal().Err(err).Msg("start bot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go store.Janitor(ctx, st, time.Minute)

	log.Info().Msg("bot is polling")
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("bot exited")
	}
}
