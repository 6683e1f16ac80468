package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15, cfg.Quiz.Amount)
	assert.Equal(t, 30*time.Minute, cfg.Quiz.Duration)
	assert.Equal(t, time.Second, cfg.Quiz.TickInterval)
	assert.Equal(t, time.Hour, cfg.Quiz.Retention)
	assert.Equal(t, "opentdb", cfg.Source.Kind)
	assert.Equal(t, "https://opentdb.com/api.php", cfg.Source.OpenTDBURL)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Minute, cfg.Retry.MaxDelay)
	assert.Equal(t, "leaderboard.json", cfg.Leaderboard.Gist.File)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("QUIZ_AMOUNT", "10")
	t.Setenv("QUIZ_DURATION", "90s")
	t.Setenv("QUIZ_RETENTION", "10m")
	t.Setenv("QUESTION_SOURCE", "file")
	t.Setenv("LEADERBOARD_BACKEND", "redis")
	t.Setenv("REDIS_DB", "3")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, 10, cfg.Quiz.Amount)
	assert.Equal(t, 90*time.Second, cfg.Quiz.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Quiz.Retention)
	assert.Equal(t, "file", cfg.Source.Kind)
	assert.Equal(t, "redis", cfg.Leaderboard.Backend)
	assert.Equal(t, 3, cfg.Leaderboard.Redis.DB)
}
