package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	return r
}

func RegisterRoutes(router *gin.Engine, sessions *SessionController) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions", sessions.StartSession)
		v1.GET("/sessions/:session_id", sessions.GetSession)
		v1.PUT("/sessions/:session_id/answers", sessions.SelectAnswer)
		v1.PUT("/sessions/:session_id/current", sessions.GoTo)
		v1.POST("/sessions/:session_id/submit", sessions.Submit)
		v1.DELETE("/sessions/:session_id", sessions.EndSession)

		v1.GET("/leaderboard", sessions.GetLeaderboard)
	}
}
