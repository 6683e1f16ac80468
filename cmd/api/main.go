package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/PoluyanbIch/triviabot/config"
	"github.com/PoluyanbIch/triviabot/internal/api"
	"github.com/PoluyanbIch/triviabot/internal/logger"
	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/PoluyanbIch/triviabot/internal/service"
	"github.com/PoluyanbIch/triviabot/internal/source"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	app := fx.New(
		fx.Supply(cfg),

		fx.Provide(
			NewQuestionSource,
			NewLeaderboard,
			service.NewQuizService,
		),

		fx.Provide(
			api.NewSessionController,
			NewEngine,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop application cleanly")
	}
}

func NewQuestionSource(cfg *config.Config) (quiz.Source, error) {
	return source.New(cfg.Source)
}

func NewLeaderboard(cfg *config.Config) (service.LeaderboardService, error) {
	return service.NewLeaderboardService(cfg.Leaderboard)
}

func NewEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return api.NewGinEngine()
}

// RegisterRoutesAndStartServer mounts the API and ties the HTTP server and the
// live sessions to the application lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	sessions *api.SessionController,
	quizService *service.QuizService,
) {
	api.RegisterRoutes(router, sessions)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Trivia API server starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			defer quizService.Shutdown()
			return server.Shutdown(ctx)
		},
	})
}
