package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// Record is a question as delivered by a Source, before options are formed.
type Record struct {
	Prompt           string
	CorrectAnswer    string
	IncorrectAnswers []string
	Category         string
	Difficulty       string
}

// Source supplies quiz content. Implementations return an error wrapping
// ErrRateLimited when the upstream asks the caller to slow down.
type Source interface {
	Fetch(ctx context.Context, amount int) ([]Record, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, amount int) ([]Record, error)

func (f SourceFunc) Fetch(ctx context.Context, amount int) ([]Record, error) {
	return f(ctx, amount)
}

type Question struct {
	ID            int
	Prompt        string
	Options       []string
	CorrectAnswer string
	UserAnswer    string
	Category      string
	Difficulty    string
}

func (q Question) Answered() bool {
	return q.UserAnswer != ""
}

func (q Question) IsCorrect() bool {
	return q.Answered() && q.UserAnswer == q.CorrectAnswer
}

// buildQuestions turns source records into session questions, numbering them
// in fetch order and shuffling each option list once.
func buildQuestions(records []Record, r *rand.Rand) ([]Question, error) {
	questions := make([]Question, 0, len(records))
	for i, rec := range records {
		if err := validateRecord(rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}

		options := make([]string, 0, len(rec.IncorrectAnswers)+1)
		options = append(options, rec.IncorrectAnswers...)
		options = append(options, rec.CorrectAnswer)

		questions = append(questions, Question{
			ID:            i + 1,
			Prompt:        rec.Prompt,
			Options:       ShuffleOptions(r, options),
			CorrectAnswer: rec.CorrectAnswer,
			Category:      rec.Category,
			Difficulty:    rec.Difficulty,
		})
	}
	return questions, nil
}

func validateRecord(rec Record) error {
	switch {
	case strings.TrimSpace(rec.Prompt) == "":
		return fmt.Errorf("%w: empty prompt", ErrMalformedQuestion)
	case rec.CorrectAnswer == "":
		return fmt.Errorf("%w: empty correct answer", ErrMalformedQuestion)
	case len(rec.IncorrectAnswers) == 0:
		return fmt.Errorf("%w: no incorrect answers", ErrMalformedQuestion)
	}
	return nil
}

var (
	ErrNotReady             = errors.New("quiz: session is not ready")
	ErrSubmitted            = errors.New("quiz: session already submitted")
	ErrUnknownQuestion      = errors.New("quiz: unknown question")
	ErrInvalidAnswer        = errors.New("quiz: invalid answer")
	ErrIndexOutOfRange      = errors.New("quiz: question index out of range")
	ErrLoadInProgress       = errors.New("quiz: load already in progress")
	ErrRateLimited          = errors.New("quiz: question source rate limited")
	ErrRetryBudgetExhausted = errors.New("quiz: retry budget exhausted")
	ErrMalformedQuestion    = errors.New("quiz: malformed question")
)
