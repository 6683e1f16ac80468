package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAmount   = 15
	DefaultDuration = 30 * time.Minute
)

type State string

const (
	StateEmpty     State = "empty"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateFailed    State = "failed"
	StateSubmitted State = "submitted"
)

// Result is the frozen outcome of a submitted session.
type Result struct {
	SessionID   string
	Score       int
	Total       int
	TimedOut    bool
	SubmittedAt time.Time
}

// Session is one quiz attempt from load to submission. All methods are safe
// for concurrent use; mutations are serialized on an internal mutex.
type Session struct {
	mu sync.Mutex

	id       string
	amount   int
	duration int
	retry    RetryPolicy
	sleep    SleepFunc
	rnd      *rand.Rand

	state      State
	questions  []Question
	current    int
	visited    []int
	visitedSet map[int]struct{}
	remaining  int
	result     Result
	loadErr    error
	observers  []func(Result)
}

type Option func(*Session)

func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithAmount sets how many questions Load asks the source for.
func WithAmount(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.amount = n
		}
	}
}

// WithDuration sets the countdown. It is truncated to whole seconds; a
// non-positive duration disables the countdown.
func WithDuration(d time.Duration) Option {
	return func(s *Session) { s.duration = int(d / time.Second) }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Session) { s.retry = p.normalized() }
}

func WithSleep(fn SleepFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

func WithRand(r *rand.Rand) Option {
	return func(s *Session) {
		if r != nil {
			s.rnd = r
		}
	}
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		amount:     DefaultAmount,
		duration:   int(DefaultDuration / time.Second),
		retry:      DefaultRetryPolicy(),
		sleep:      sleepContext,
		state:      StateEmpty,
		visitedSet: make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = NewRand()
	}
	s.remaining = s.duration
	return s
}

func (s *Session) ID() string { return s.id }

// Load fetches questions from src and makes the session ready. A rate-limited
// source is retried with backoff within the retry policy; any other failure
// leaves the session failed with no questions.
func (s *Session) Load(ctx context.Context, src Source) error {
	s.mu.Lock()
	switch s.state {
	case StateLoading:
		s.mu.Unlock()
		return ErrLoadInProgress
	case StateSubmitted:
		s.mu.Unlock()
		return ErrSubmitted
	}
	s.state = StateLoading
	s.mu.Unlock()

	records, err := s.fetch(ctx, src)
	var questions []Question
	if err == nil {
		questions, err = buildQuestions(records, s.rnd)
	}
	if err == nil && len(questions) == 0 {
		err = fmt.Errorf("%w: source returned no questions", ErrMalformedQuestion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = 0
	s.visited = nil
	s.visitedSet = make(map[int]struct{})
	s.result = Result{}
	s.remaining = s.duration

	if err != nil {
		s.state = StateFailed
		s.questions = nil
		s.loadErr = err
		log.Error().Err(err).Str("session", s.id).Msg("Failed to load questions")
		return err
	}

	s.questions = questions
	s.state = StateReady
	s.loadErr = nil
	s.markVisitedLocked(questions[0].ID)
	log.Info().Str("session", s.id).Int("questions", len(questions)).Msg("Questions loaded")
	return nil
}

func (s *Session) fetch(ctx context.Context, src Source) ([]Record, error) {
	var lastErr error
	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.retry.Delay(attempt - 1)
			log.Warn().Err(lastErr).Str("session", s.id).Int("attempt", attempt+1).Dur("delay", delay).
				Msg("Question source rate limited, retrying")
			if err := s.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("waiting to retry: %w", err)
			}
		}

		records, err := src.Fetch(ctx, s.amount)
		if err == nil {
			return records, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, s.retry.MaxAttempts, lastErr)
}

// SelectAnswer records answer for the question, replacing any earlier choice.
func (s *Session) SelectAnswer(questionID int, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(); err != nil {
		return err
	}
	if answer == "" {
		return ErrInvalidAnswer
	}
	idx, err := s.indexOfLocked(questionID)
	if err != nil {
		return err
	}

	s.questions[idx].UserAnswer = answer
	s.markVisitedLocked(questionID)
	return nil
}

// SelectOption answers with the option at position option of the question.
func (s *Session) SelectOption(questionID, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(); err != nil {
		return err
	}
	idx, err := s.indexOfLocked(questionID)
	if err != nil {
		return err
	}
	q := &s.questions[idx]
	if option < 0 || option >= len(q.Options) {
		return ErrInvalidAnswer
	}

	q.UserAnswer = q.Options[option]
	s.markVisitedLocked(questionID)
	return nil
}

func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(index)
}

func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.current + 1)
}

func (s *Session) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.current - 1)
}

func (s *Session) goToLocked(index int) error {
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.questions) {
		return ErrIndexOutOfRange
	}

	s.markVisitedLocked(s.questions[index].ID)
	s.current = index
	return nil
}

// Submit freezes the session and scores it. Only the first call computes the
// score; later calls return the same result.
func (s *Session) Submit() (Result, error) {
	s.mu.Lock()
	res, fired, err := s.submitLocked(false)
	observers := s.observers
	s.mu.Unlock()

	if fired {
		notify(observers, res)
	}
	return res, err
}

// Tick advances the countdown by one second and submits the session when it
// runs out. It reports whether this tick caused the submission.
func (s *Session) Tick() bool {
	s.mu.Lock()
	if s.state != StateReady || s.duration <= 0 {
		s.mu.Unlock()
		return false
	}

	s.remaining--
	if s.remaining > 0 {
		s.mu.Unlock()
		return false
	}

	s.remaining = 0
	res, fired, _ := s.submitLocked(true)
	observers := s.observers
	s.mu.Unlock()

	if fired {
		log.Info().Str("session", s.id).Int("score", res.Score).Msg("Time is up, quiz submitted")
		notify(observers, res)
	}
	return fired
}

// OnSubmit registers fn to run once the session is submitted. If it already
// is, fn runs immediately.
func (s *Session) OnSubmit(fn func(Result)) {
	s.mu.Lock()
	if s.state == StateSubmitted {
		res := s.result
		s.mu.Unlock()
		fn(res)
		return
	}
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Session) submitLocked(timedOut bool) (Result, bool, error) {
	switch s.state {
	case StateSubmitted:
		return s.result, false, nil
	case StateReady:
	default:
		return Result{}, false, ErrNotReady
	}

	score := 0
	for _, q := range s.questions {
		if q.IsCorrect() {
			score++
		}
	}

	s.state = StateSubmitted
	s.result = Result{
		SessionID:   s.id,
		Score:       score,
		Total:       len(s.questions),
		TimedOut:    timedOut,
		SubmittedAt: time.Now(),
	}
	return s.result, true, nil
}

func notify(observers []func(Result), res Result) {
	for _, fn := range observers {
		fn(res)
	}
}

func (s *Session) mutableLocked() error {
	switch s.state {
	case StateReady:
		return nil
	case StateSubmitted:
		return ErrSubmitted
	default:
		return ErrNotReady
	}
}

func (s *Session) indexOfLocked(questionID int) (int, error) {
	idx := questionID - 1
	if idx < 0 || idx >= len(s.questions) || s.questions[idx].ID != questionID {
		return 0, fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	return idx, nil
}

func (s *Session) markVisitedLocked(questionID int) {
	if _, ok := s.visitedSet[questionID]; ok {
		return
	}
	s.visitedSet[questionID] = struct{}{}
	s.visited = append(s.visited, questionID)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Score returns the frozen score and whether the session has been submitted.
func (s *Session) Score() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Score, s.state == StateSubmitted
}

func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.remaining) * time.Second
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Current returns the question under the cursor, false before load.
func (s *Session) Current() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return Question{}, false
	}
	return copyQuestion(s.questions[s.current]), true
}

// Questions returns a copy of the loaded questions.
func (s *Session) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Question, len(s.questions))
	for i, q := range s.questions {
		out[i] = copyQuestion(q)
	}
	return out
}

func (s *Session) Visited() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.visited))
	copy(out, s.visited)
	return out
}

func (s *Session) IsVisited(questionID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.visitedSet[questionID]
	return ok
}

// Err returns the error of the last failed load.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

func copyQuestion(q Question) Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}
