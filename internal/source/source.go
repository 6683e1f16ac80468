package source

import (
	"fmt"

	"github.com/PoluyanbIch/triviabot/config"
	"github.com/PoluyanbIch/triviabot/internal/quiz"
)

// New builds the question source named in cfg.
func New(cfg config.Source) (quiz.Source, error) {
	switch cfg.Kind {
	case "", "opentdb":
		return NewOpenTDB(cfg.OpenTDBURL, cfg.Timeout,
			WithCategory(cfg.Category),
			WithDifficulty(cfg.Difficulty),
			WithType(cfg.QuestionType),
		), nil
	case "file":
		return LoadFileOrDefault(cfg.QuestionsFile), nil
	default:
		return nil, fmt.Errorf("unknown question source %q", cfg.Kind)
	}
}
