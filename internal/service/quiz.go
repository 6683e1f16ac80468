package service

import (
	"context"
	"sync"
	"time"

	"github.com/PoluyanbIch/triviabot/config"
	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/rs/zerolog/log"
)

// Player identifies who takes a quiz: a Telegram user or an email from the
// web start page.
type Player struct {
	ID   string
	Name string
}

// Outcome is what the leaderboard made of a submitted result.
type Outcome struct {
	NewBest  bool
	Position int
}

// Hooks let a presentation layer react to background events of a session.
type Hooks struct {
	Loaded    func(s *quiz.Session, err error)
	Submitted func(s *quiz.Session, res quiz.Result, out Outcome)
}

type liveSession struct {
	session *quiz.Session
	player  Player
	cancel  context.CancelFunc

	mu        sync.Mutex
	countdown *quiz.Countdown
	expiry    *time.Timer
	ended     bool
}

func (l *liveSession) startCountdown(ctx context.Context, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ended {
		return
	}
	l.countdown = quiz.StartCountdown(ctx, l.session, interval)
}

func (l *liveSession) end() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = true
	if l.countdown != nil {
		l.countdown.Stop()
	}
	l.cancel()
}

// expireAfter schedules drop to run after d, unless stopExpiry runs first.
func (l *liveSession) expireAfter(d time.Duration, drop func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.expiry != nil {
		return
	}
	l.expiry = time.AfterFunc(d, drop)
}

func (l *liveSession) stopExpiry() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.expiry != nil {
		l.expiry.Stop()
	}
}

const DefaultRetention = time.Hour

// QuizService owns the live sessions of a presentation layer, keyed by chat
// or session id.
type QuizService struct {
	mu       sync.Mutex
	sessions map[string]*liveSession

	source      quiz.Source
	leaderboard LeaderboardService
	options     []quiz.Option
	tick        time.Duration
	retention   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewQuizService(cfg *config.Config, source quiz.Source, leaderboard LeaderboardService) *QuizService {
	retention := cfg.Quiz.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QuizService{
		sessions:    make(map[string]*liveSession),
		source:      source,
		leaderboard: leaderboard,
		options: []quiz.Option{
			quiz.WithAmount(cfg.Quiz.Amount),
			quiz.WithDuration(cfg.Quiz.Duration),
			quiz.WithRetryPolicy(quiz.RetryPolicy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				BaseDelay:   cfg.Retry.BaseDelay,
				MaxDelay:    cfg.Retry.MaxDelay,
			}),
		},
		tick:      cfg.Quiz.TickInterval,
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start creates a session for key, replacing any previous one, and loads it
// in the background. An empty key registers the session under its own id.
// The countdown starts once questions are loaded.
func (qs *QuizService) Start(key string, player Player, hooks Hooks) *quiz.Session {
	s := quiz.NewSession(qs.options...)
	if key == "" {
		key = s.ID()
	}

	ctx, cancel := context.WithCancel(qs.ctx)
	live := &liveSession{session: s, player: player, cancel: cancel}

	qs.mu.Lock()
	if prev, ok := qs.sessions[key]; ok {
		prev.end()
		prev.stopExpiry()
	}
	qs.sessions[key] = live
	qs.mu.Unlock()

	s.OnSubmit(func(res quiz.Result) {
		live.end()
		qs.retire(key, live)
		out := qs.record(player, res)
		log.Info().Str("session", s.ID()).Str("player", player.ID).Int("score", res.Score).Int("total", res.Total).
			Bool("timed_out", res.TimedOut).Msg("Quiz submitted")
		if hooks.Submitted != nil {
			hooks.Submitted(s, res, out)
		}
	})

	go func() {
		err := s.Load(ctx, qs.source)
		if err == nil {
			live.startCountdown(ctx, qs.tick)
		} else {
			qs.retire(key, live)
		}
		if hooks.Loaded != nil {
			hooks.Loaded(s, err)
		}
	}()

	log.Info().Str("session", s.ID()).Str("key", key).Str("player", player.ID).Msg("Quiz started")
	return s
}

func (qs *QuizService) record(player Player, res quiz.Result) Outcome {
	out := Outcome{Position: -1}
	if qs.leaderboard == nil || player.ID == "" {
		return out
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stored, err := qs.leaderboard.AddEntry(ctx, NewLeaderboardEntry(player, res.Score, res.Total, res.SubmittedAt))
	if err != nil {
		log.Error().Err(err).Str("player", player.ID).Msg("Failed to record leaderboard entry")
		return out
	}
	out.NewBest = stored
	if !stored {
		return out
	}

	pos, _, err := qs.leaderboard.GetPlayerPosition(ctx, player.ID)
	if err != nil {
		log.Error().Err(err).Str("player", player.ID).Msg("Failed to read leaderboard position")
		return out
	}
	out.Position = pos
	return out
}

// retire drops live from the registry once the retention period has passed,
// unless key has been taken by another session meanwhile.
func (qs *QuizService) retire(key string, live *liveSession) {
	live.expireAfter(qs.retention, func() {
		qs.mu.Lock()
		defer qs.mu.Unlock()
		if qs.sessions[key] == live {
			delete(qs.sessions, key)
			log.Debug().Str("session", live.session.ID()).Str("key", key).Msg("Finished session expired")
		}
	})
}

func (qs *QuizService) Get(key string) (*quiz.Session, bool) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	live, ok := qs.sessions[key]
	if !ok {
		return nil, false
	}
	return live.session, true
}

// End stops the session's countdown and forgets it. An unsubmitted session is
// discarded without a leaderboard entry.
func (qs *QuizService) End(key string) bool {
	qs.mu.Lock()
	live, ok := qs.sessions[key]
	delete(qs.sessions, key)
	qs.mu.Unlock()

	if ok {
		live.end()
		live.stopExpiry()
	}
	return ok
}

func (qs *QuizService) Leaderboard() LeaderboardService {
	return qs.leaderboard
}

// Shutdown ends every session.
func (qs *QuizService) Shutdown() {
	qs.mu.Lock()
	sessions := qs.sessions
	qs.sessions = make(map[string]*liveSession)
	qs.mu.Unlock()

	for _, live := range sessions {
		live.end()
		live.stopExpiry()
	}
	qs.cancel()
}
