package quiz_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(correct ...string) []quiz.Record {
	out := make([]quiz.Record, 0, len(correct))
	for i, c := range correct {
		out = append(out, quiz.Record{
			Prompt:           "Question " + string(rune('1'+i)),
			CorrectAnswer:    c,
			IncorrectAnswers: []string{"W1", "W2", "W3"},
			Category:         "General Knowledge",
			Difficulty:       "easy",
		})
	}
	return out
}

func staticSource(recs []quiz.Record) quiz.Source {
	return quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		return recs, nil
	})
}

type recordedSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newSession(t *testing.T, opts ...quiz.Option) *quiz.Session {
	t.Helper()
	base := []quiz.Option{
		quiz.WithRand(rand.New(rand.NewSource(1))),
		quiz.WithSleep((&recordedSleep{}).sleep),
	}
	return quiz.NewSession(append(base, opts...)...)
}

func loaded(t *testing.T, correct []string, opts ...quiz.Option) *quiz.Session {
	t.Helper()
	s := newSession(t, opts...)
	require.NoError(t, s.Load(context.Background(), staticSource(records(correct...))))
	return s
}

func TestLoadPopulatesSession(t *testing.T) {
	s := newSession(t, quiz.WithAmount(3))
	require.Equal(t, quiz.StateEmpty, s.State())

	var asked int
	src := quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		asked = amount
		return records("A", "B", "C"), nil
	})
	require.NoError(t, s.Load(context.Background(), src))

	assert.Equal(t, 3, asked)
	assert.Equal(t, quiz.StateReady, s.State())
	assert.Equal(t, 0, s.CurrentIndex())
	assert.Equal(t, []int{1}, s.Visited())

	qs := s.Questions()
	require.Len(t, qs, 3)
	for i, q := range qs {
		assert.Equal(t, i+1, q.ID)
		assert.Len(t, q.Options, 4)
		assert.Contains(t, q.Options, q.CorrectAnswer)
		assert.False(t, q.Answered())
	}
}

func TestLoadShufflesOptionsOnce(t *testing.T) {
	s := loaded(t, []string{"A"})

	first, ok := s.Current()
	require.True(t, ok)
	require.NoError(t, s.SelectAnswer(1, "A"))
	require.NoError(t, s.GoTo(0))

	again, _ := s.Current()
	assert.Equal(t, first.Options, again.Options)
	assert.ElementsMatch(t, []string{"W1", "W2", "W3", "A"}, first.Options)
}

func TestLoadRetriesOnRateLimit(t *testing.T) {
	sleeper := &recordedSleep{}
	s := newSession(t, quiz.WithSleep(sleeper.sleep))

	var calls int
	src := quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		calls++
		if calls == 1 {
			return nil, quiz.ErrRateLimited
		}
		return records("A", "B"), nil
	})

	require.NoError(t, s.Load(context.Background(), src))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.delays)
	assert.Equal(t, quiz.StateReady, s.State())
	assert.Len(t, s.Questions(), 2)
}

func TestLoadRetryBudgetExhausted(t *testing.T) {
	sleeper := &recordedSleep{}
	s := newSession(t,
		quiz.WithSleep(sleeper.sleep),
		quiz.WithRetryPolicy(quiz.RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 3 * time.Second}),
	)

	var calls int
	src := quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		calls++
		return nil, quiz.ErrRateLimited
	})

	err := s.Load(context.Background(), src)
	require.ErrorIs(t, err, quiz.ErrRetryBudgetExhausted)
	require.ErrorIs(t, err, quiz.ErrRateLimited)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeper.delays)
	assert.Equal(t, quiz.StateFailed, s.State())
	assert.Empty(t, s.Questions())
}

func TestLoadPermanentFailureDoesNotRetry(t *testing.T) {
	s := newSession(t)
	boom := errors.New("boom")

	var calls int
	src := quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		calls++
		return nil, boom
	})

	err := s.Load(context.Background(), src)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, quiz.StateFailed, s.State())
	assert.ErrorIs(t, s.Err(), boom)
	assert.Empty(t, s.Questions())

	_, err = s.Submit()
	assert.ErrorIs(t, err, quiz.ErrNotReady)
	assert.ErrorIs(t, s.SelectAnswer(1, "A"), quiz.ErrNotReady)
	assert.ErrorIs(t, s.GoTo(0), quiz.ErrNotReady)
}

func TestLoadRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		rec  quiz.Record
	}{
		{"empty prompt", quiz.Record{CorrectAnswer: "A", IncorrectAnswers: []string{"B"}}},
		{"empty correct answer", quiz.Record{Prompt: "Q", IncorrectAnswers: []string{"B"}}},
		{"no incorrect answers", quiz.Record{Prompt: "Q", CorrectAnswer: "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t)
			err := s.Load(context.Background(), staticSource([]quiz.Record{tt.rec}))
			require.ErrorIs(t, err, quiz.ErrMalformedQuestion)
			assert.Equal(t, quiz.StateFailed, s.State())
		})
	}

	s := newSession(t)
	require.ErrorIs(t, s.Load(context.Background(), staticSource(nil)), quiz.ErrMalformedQuestion)
}

func TestLoadCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := quiz.NewSession()
	src := quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		return nil, quiz.ErrRateLimited
	})

	err := s.Load(ctx, src)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, quiz.StateFailed, s.State())
}

func TestLoadWhileLoading(t *testing.T) {
	s := newSession(t)
	release := make(chan struct{})
	src := quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		<-release
		return records("A"), nil
	})

	errc := make(chan error, 1)
	go func() { errc <- s.Load(context.Background(), src) }()

	require.Eventually(t, func() bool { return s.State() == quiz.StateLoading }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Load(context.Background(), src), quiz.ErrLoadInProgress)
	assert.ErrorIs(t, s.SelectAnswer(1, "A"), quiz.ErrNotReady)
	assert.Equal(t, quiz.StateLoading, s.Snapshot().State)

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, quiz.StateReady, s.State())
}

func TestSelectAnswerOverwrites(t *testing.T) {
	s := loaded(t, []string{"A", "B", "C"})

	require.NoError(t, s.SelectAnswer(2, "B"))
	require.NoError(t, s.SelectAnswer(2, "C"))

	qs := s.Questions()
	assert.Equal(t, "C", qs[1].UserAnswer)
	assert.Equal(t, []int{1, 2}, s.Visited())
}

func TestSelectAnswerRejectsInvalid(t *testing.T) {
	s := loaded(t, []string{"A"})

	assert.ErrorIs(t, s.SelectAnswer(0, "A"), quiz.ErrUnknownQuestion)
	assert.ErrorIs(t, s.SelectAnswer(2, "A"), quiz.ErrUnknownQuestion)
	assert.ErrorIs(t, s.SelectAnswer(1, ""), quiz.ErrInvalidAnswer)
	assert.ErrorIs(t, s.SelectOption(1, 4), quiz.ErrInvalidAnswer)
	assert.False(t, s.Questions()[0].Answered())
}

func TestSelectOption(t *testing.T) {
	s := loaded(t, []string{"A"})
	q, _ := s.Current()

	require.NoError(t, s.SelectOption(1, 2))
	assert.Equal(t, q.Options[2], s.Questions()[0].UserAnswer)
}

func TestDuplicateOptionsAreKept(t *testing.T) {
	s := newSession(t)
	src := staticSource([]quiz.Record{
		{Prompt: "Pick C", CorrectAnswer: "C", IncorrectAnswers: []string{"X", "X", "Y"}},
		{Prompt: "Pick X", CorrectAnswer: "X", IncorrectAnswers: []string{"X", "Z"}},
	})
	require.NoError(t, s.Load(context.Background(), src))

	questions := s.Questions()
	require.Len(t, questions[0].Options, 4)
	assert.ElementsMatch(t, []string{"C", "X", "X", "Y"}, questions[0].Options)
	require.Len(t, questions[1].Options, 3)

	var dups []int
	for i, opt := range questions[0].Options {
		if opt == "X" {
			dups = append(dups, i)
		}
	}
	require.Len(t, dups, 2)
	for _, i := range dups {
		require.NoError(t, s.SelectOption(1, i))
		assert.Equal(t, "X", s.Questions()[0].UserAnswer)
	}

	// selection is by value, so either copy of the correct text scores
	for i, opt := range questions[1].Options {
		if opt == "X" {
			require.NoError(t, s.SelectOption(2, i))
			break
		}
	}

	res, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 2, res.Total)
}

func TestGoToKeepsIndexInRange(t *testing.T) {
	s := loaded(t, []string{"A", "B", "C"})

	require.NoError(t, s.GoTo(2))
	assert.Equal(t, 2, s.CurrentIndex())

	assert.ErrorIs(t, s.GoTo(3), quiz.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.GoTo(-1), quiz.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Next(), quiz.ErrIndexOutOfRange)
	assert.Equal(t, 2, s.CurrentIndex())

	require.NoError(t, s.Prev())
	require.NoError(t, s.GoTo(2))
	assert.Equal(t, []int{1, 3, 2}, s.Visited())
}

func TestVisitedOnlyGrows(t *testing.T) {
	s := loaded(t, []string{"A", "B", "C", "D"})

	prev := s.Visited()
	steps := []func() error{
		func() error { return s.GoTo(3) },
		func() error { return s.SelectAnswer(2, "X") },
		func() error { return s.GoTo(0) },
		func() error { return s.GoTo(7) },
		func() error { return s.Next() },
	}
	for _, step := range steps {
		_ = step()
		cur := s.Visited()
		require.GreaterOrEqual(t, len(cur), len(prev))
		assert.Equal(t, prev, cur[:len(prev)])
		current, _ := s.Current()
		assert.Contains(t, cur, current.ID)
		prev = cur
	}
}

func TestSubmitScores(t *testing.T) {
	s := loaded(t, []string{"A", "B", "C"})

	require.NoError(t, s.SelectAnswer(1, "A"))
	require.NoError(t, s.SelectAnswer(2, "X"))
	require.NoError(t, s.SelectAnswer(3, "C"))

	res, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 3, res.Total)
	assert.False(t, res.TimedOut)

	score, submitted := s.Score()
	assert.True(t, submitted)
	assert.Equal(t, 2, score)
}

func TestSubmitIsCaseSensitive(t *testing.T) {
	s := loaded(t, []string{"Paris"})
	require.NoError(t, s.SelectAnswer(1, "paris"))

	res, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
}

func TestSubmitIsIdempotent(t *testing.T) {
	s := loaded(t, []string{"A", "B"})
	require.NoError(t, s.SelectAnswer(1, "A"))

	var fired int
	s.OnSubmit(func(quiz.Result) { fired++ })

	first, err := s.Submit()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := s.Submit()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, quiz.StateSubmitted, s.State())
}

func TestMutationsAfterSubmitAreRejected(t *testing.T) {
	s := loaded(t, []string{"A", "B"})
	require.NoError(t, s.SelectAnswer(1, "A"))
	_, err := s.Submit()
	require.NoError(t, err)

	assert.ErrorIs(t, s.SelectAnswer(1, "W1"), quiz.ErrSubmitted)
	assert.ErrorIs(t, s.GoTo(1), quiz.ErrSubmitted)
	assert.ErrorIs(t, s.Load(context.Background(), staticSource(records("Z"))), quiz.ErrSubmitted)
	assert.Equal(t, "A", s.Questions()[0].UserAnswer)

	score, _ := s.Score()
	assert.Equal(t, 1, score)
}

func TestTickAutoSubmitsOnTimeout(t *testing.T) {
	s := loaded(t, []string{"A", "B"}, quiz.WithDuration(time.Second))
	require.NoError(t, s.SelectAnswer(2, "B"))

	var results []quiz.Result
	s.OnSubmit(func(r quiz.Result) { results = append(results, r) })

	assert.True(t, s.Tick())
	assert.Equal(t, quiz.StateSubmitted, s.State())
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Score)
	assert.True(t, results[0].TimedOut)

	assert.False(t, s.Tick())
	score, _ := s.Score()
	assert.Equal(t, 1, score)
	assert.Len(t, results, 1)
}

func TestTickCountsDown(t *testing.T) {
	s := newSession(t, quiz.WithDuration(3*time.Second))

	assert.False(t, s.Tick())
	assert.Equal(t, 3*time.Second, s.Remaining())

	require.NoError(t, s.Load(context.Background(), staticSource(records("A"))))
	assert.False(t, s.Tick())
	assert.Equal(t, 2*time.Second, s.Remaining())
	assert.Equal(t, quiz.StateReady, s.State())
}

func TestOnSubmitAfterSubmission(t *testing.T) {
	s := loaded(t, []string{"A"})
	_, err := s.Submit()
	require.NoError(t, err)

	var got quiz.Result
	s.OnSubmit(func(r quiz.Result) { got = r })
	assert.Equal(t, s.ID(), got.SessionID)
}

func TestSubmitAndTickRace(t *testing.T) {
	s := loaded(t, []string{"A", "B"}, quiz.WithDuration(time.Second))

	var fired atomic.Int32
	s.OnSubmit(func(quiz.Result) { fired.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Submit()
		}()
		go func() {
			defer wg.Done()
			s.Tick()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
}

func TestSnapshotRevealsAnswersAfterSubmit(t *testing.T) {
	s := loaded(t, []string{"A", "B"})
	require.NoError(t, s.SelectAnswer(1, "A"))

	v := s.Snapshot()
	assert.Equal(t, quiz.StateReady, v.State)
	assert.Equal(t, 2, v.Total)
	assert.True(t, v.Questions[0].Answered)
	assert.True(t, v.Questions[0].Visited)
	assert.False(t, v.Questions[1].Visited)
	assert.Empty(t, v.Questions[0].CorrectAnswer)

	_, err := s.Submit()
	require.NoError(t, err)

	v = s.Snapshot()
	assert.True(t, v.Submitted)
	assert.Equal(t, 1, v.Score)
	assert.Equal(t, "A", v.Questions[0].CorrectAnswer)
	assert.True(t, v.Questions[0].Correct)
	assert.False(t, v.Questions[1].Correct)
}
