package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/rs/zerolog/log"
)

// File serves questions parsed from a local text file, one per line:
//
//	"Prompt" correct | wrong 1 | wrong 2 | wrong 3
//
// Blank lines and lines starting with # are ignored.
type File struct {
	mu      sync.Mutex
	records []quiz.Record
	rnd     *rand.Rand
}

func NewFile(records []quiz.Record) *File {
	return &File{records: records, rnd: quiz.NewRand()}
}

// Fetch returns amount questions picked at random from the file.
func (f *File) Fetch(ctx context.Context, amount int) ([]quiz.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return quiz.ShuffleWithLimit(f.rnd, f.records, amount), nil
}

// ParseQuestionsFile parses the questions file at filename.
func ParseQuestionsFile(filename string) ([]quiz.Record, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseQuestions(file)
}

func ParseQuestions(r io.Reader) ([]quiz.Record, error) {
	var records []quiz.Record
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseQuestionLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no valid questions found in file")
	}

	return records, nil
}

func parseQuestionLine(line string) (quiz.Record, error) {
	if !strings.HasPrefix(line, `"`) {
		return quiz.Record{}, fmt.Errorf("invalid format: prompt must be quoted")
	}

	quoteEnd := strings.Index(line[1:], `"`) + 1
	if quoteEnd <= 0 {
		return quiz.Record{}, fmt.Errorf("invalid format: no closing quote")
	}

	prompt := strings.TrimSpace(line[1:quoteEnd])
	if utf8.RuneCountInString(prompt) == 0 {
		return quiz.Record{}, fmt.Errorf("question cannot be empty")
	}

	// correct | wrong | wrong ...
	var answers []string
	for _, part := range strings.Split(line[quoteEnd+1:], "|") {
		if a := strings.TrimSpace(part); a != "" {
			answers = append(answers, a)
		}
	}
	if len(answers) < 2 {
		return quiz.Record{}, fmt.Errorf("need a correct answer and at least one wrong answer, got %d", len(answers))
	}

	return quiz.Record{
		Prompt:           prompt,
		CorrectAnswer:    answers[0],
		IncorrectAnswers: answers[1:],
	}, nil
}

// LoadFileOrDefault parses filename, falling back to the built-in questions
// when the file is missing or invalid.
func LoadFileOrDefault(filename string) *File {
	records, err := ParseQuestionsFile(filename)
	if err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("Failed to load questions, using default questions")
		return NewFile(DefaultQuestions())
	}

	log.Info().Int("questions", len(records)).Str("file", filename).Msg("Loaded questions from file")
	return NewFile(records)
}

func DefaultQuestions() []quiz.Record {
	return []quiz.Record{
		{
			Prompt:           "What is the capital of Australia?",
			CorrectAnswer:    "Canberra",
			IncorrectAnswers: []string{"Sydney", "Melbourne", "Perth"},
			Category:         "Geography",
			Difficulty:       "easy",
		},
		{
			Prompt:           "How many bits are in a byte?",
			CorrectAnswer:    "8",
			IncorrectAnswers: []string{"4", "16", "32"},
			Category:         "Science: Computers",
			Difficulty:       "easy",
		},
		{
			Prompt:           "Which planet is known as the Red Planet?",
			CorrectAnswer:    "Mars",
			IncorrectAnswers: []string{"Venus", "Jupiter", "Mercury"},
			Category:         "Science & Nature",
			Difficulty:       "easy",
		},
		{
			Prompt:           "Go was first released publicly in 2009.",
			CorrectAnswer:    "True",
			IncorrectAnswers: []string{"False"},
			Category:         "Science: Computers",
			Difficulty:       "medium",
		},
	}
}
