// main.go
//
// Entry point for the KBC quiz HTTP server.
// Boot order:
//   - .env + config, logging
//   - SQLite ledger + migrations
//   - question bank (embedded unless QUESTIONS_FILE is set)
//   - optional Redis leaderboard cache
//   - in-memory session store (with janitor) + router

package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kbcquiz/assets"
	"github.com/robalobadob/kbcquiz/internal/bank"
	"github.com/robalobadob/kbcquiz/internal/config"
	"github.com/robalobadob/kbcquiz/internal/database"
	"github.com/robalobadob/kbcquiz/internal/httpserver"
	"github.com/robalobadob/kbcquiz/internal/leaderboard"
	"github.com/robalobadob/kbcquiz/internal/results"
	"github.com/robalobadob/kbcquiz/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.SetupLogging()

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

	rdb, err := leaderboard.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis url")
	}
	board := leaderboard.New(rdb, results.NewStore(db))

	st := store.NewMemoryStore()
	go store.Janitor(context.Background(), st, time.Minute)

	srv := httpserver.New(cfg, qb, st, db, board)
	log.Info().Str("port", cfg.Port).Bool("redis", rdb != nil).Msg("starting kbc-quiz server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
