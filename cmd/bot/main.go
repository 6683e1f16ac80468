package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/PoluyanbIch/triviabot/config"
	"github.com/PoluyanbIch/triviabot/internal/logger"
	"github.com/PoluyanbIch/triviabot/internal/service"
	"github.com/PoluyanbIch/triviabot/internal/source"
	"github.com/PoluyanbIch/triviabot/internal/telegram"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Bot.Token == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN environment variable is required")
	}

	questions, err := source.New(cfg.Source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create question source")
	}

	// Gist, Redis or memory depending on config
	leaderboardService, err := service.NewLeaderboardService(cfg.Leaderboard)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create leaderboard")
	}

	quizService := service.NewQuizService(cfg, questions, leaderboardService)

	bot, err := telegram.NewBot(cfg.Bot.Token, cfg.Bot.Debug, quizService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("source", cfg.Source.Kind).Msg("🤖 Bot is starting...")
	bot.Start(ctx)
	log.Info().Msg("Bot stopped")
}
