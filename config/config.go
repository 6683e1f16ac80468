package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server      Server
	Bot         Bot
	Quiz        Quiz
	Source      Source
	Retry       Retry
	Leaderboard Leaderboard
	Log         Log
}

type Server struct {
	Port string
}

type Bot struct {
	Token string
	Debug bool
}

// Retention is how long a submitted or failed session stays readable before
// it is dropped from the registry.
type Quiz struct {
	Amount       int
	Duration     time.Duration
	TickInterval time.Duration
	Retention    time.Duration
}

// Source selects where questions come from: "opentdb" or "file".
type Source struct {
	Kind          string
	OpenTDBURL    string
	Timeout       time.Duration
	Category      int
	Difficulty    string
	QuestionType  string
	QuestionsFile string
}

type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Leaderboard selects the storage backend: "memory", "gist" or "redis".
type Leaderboard struct {
	Backend string
	Gist    Gist
	Redis   Redis
}

type Gist struct {
	ID      string
	Token   string
	APIURL  string
	File    string
	Timeout time.Duration
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

type Log struct {
	Level  string
	Pretty bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("TELEGRAM_DEBUG", false)

	v.SetDefault("QUIZ_AMOUNT", 15)
	v.SetDefault("QUIZ_DURATION", "30m")
	v.SetDefault("QUIZ_TICK_INTERVAL", "1s")
	v.SetDefault("QUIZ_RETENTION", "1h")

	v.SetDefault("QUESTION_SOURCE", "opentdb")
	v.SetDefault("OPENTDB_URL", "https://opentdb.com/api.php")
	v.SetDefault("OPENTDB_TIMEOUT", "10s")
	v.SetDefault("OPENTDB_CATEGORY", 0)
	v.SetDefault("OPENTDB_DIFFICULTY", "")
	v.SetDefault("OPENTDB_TYPE", "")
	v.SetDefault("QUESTIONS_FILE", "questions.txt")

	v.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	v.SetDefault("RETRY_BASE_DELAY", "5s")
	v.SetDefault("RETRY_MAX_DELAY", "1m")

	v.SetDefault("LEADERBOARD_BACKEND", "")
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("GITHUB_GIST_FILE", "leaderboard.json")
	v.SetDefault("GITHUB_TIMEOUT", "10s")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_LEADERBOARD_KEY", "triviabot:leaderboard")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
}

// NewConfig reads .env from the working directory (if present) and the
// process environment, environment winning.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	var config Config

	config.Server.Port = v.GetString("SERVER_PORT")

	config.Bot.Token = v.GetString("TELEGRAM_BOT_TOKEN")
	config.Bot.Debug = v.GetBool("TELEGRAM_DEBUG")

	config.Quiz.Amount = v.GetInt("QUIZ_AMOUNT")
	config.Quiz.Duration = v.GetDuration("QUIZ_DURATION")
	config.Quiz.TickInterval = v.GetDuration("QUIZ_TICK_INTERVAL")
	config.Quiz.Retention = v.GetDuration("QUIZ_RETENTION")

	config.Source.Kind = v.GetString("QUESTION_SOURCE")
	config.Source.OpenTDBURL = v.GetString("OPENTDB_URL")
	config.Source.Timeout = v.GetDuration("OPENTDB_TIMEOUT")
	config.Source.Category = v.GetInt("OPENTDB_CATEGORY")
	config.Source.Difficulty = v.GetString("OPENTDB_DIFFICULTY")
	config.Source.QuestionType = v.GetString("OPENTDB_TYPE")
	config.Source.QuestionsFile = v.GetString("QUESTIONS_FILE")

	config.Retry.MaxAttempts = v.GetInt("RETRY_MAX_ATTEMPTS")
	config.Retry.BaseDelay = v.GetDuration("RETRY_BASE_DELAY")
	config.Retry.MaxDelay = v.GetDuration("RETRY_MAX_DELAY")

	config.Leaderboard.Backend = v.GetString("LEADERBOARD_BACKEND")
	config.Leaderboard.Gist.ID = v.GetString("GITHUB_GIST_ID")
	config.Leaderboard.Gist.Token = v.GetString("GITHUB_TOKEN")
	config.Leaderboard.Gist.APIURL = v.GetString("GITHUB_API_URL")
	config.Leaderboard.Gist.File = v.GetString("GITHUB_GIST_FILE")
	config.Leaderboard.Gist.Timeout = v.GetDuration("GITHUB_TIMEOUT")
	config.Leaderboard.Redis.Addr = v.GetString("REDIS_ADDR")
	config.Leaderboard.Redis.Password = v.GetString("REDIS_PASSWORD")
	config.Leaderboard.Redis.DB = v.GetInt("REDIS_DB")
	config.Leaderboard.Redis.Key = v.GetString("REDIS_LEADERBOARD_KEY")

	config.Log.Level = v.GetString("LOG_LEVEL")
	config.Log.Pretty = v.GetBool("LOG_PRETTY")

	return &config
}
