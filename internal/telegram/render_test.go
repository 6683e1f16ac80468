package telegram

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/PoluyanbIch/triviabot/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readySession(t *testing.T) *quiz.Session {
	t.Helper()
	s := quiz.NewSession(quiz.WithRand(rand.New(rand.NewSource(7))))
	src := quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		return []quiz.Record{
			{Prompt: "What is snake_case?", CorrectAnswer: "a_b", IncorrectAnswers: []string{"aB", "AB", "a-b"}, Category: "Programming", Difficulty: "easy"},
			{Prompt: "2 + 2?", CorrectAnswer: "4", IncorrectAnswers: []string{"3"}},
			{Prompt: "3 + 3?", CorrectAnswer: "6", IncorrectAnswers: []string{"5"}},
		}, nil
	})
	require.NoError(t, s.Load(context.Background(), src))
	return s
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "30:00", formatRemaining(1800))
	assert.Equal(t, "1:05", formatRemaining(65))
	assert.Equal(t, "0:00", formatRemaining(-3))
}

func TestQuestionText(t *testing.T) {
	s := readySession(t)
	text := questionText(s.Snapshot())

	assert.Contains(t, text, "*Question 1/3*")
	assert.Contains(t, text, "30:00")
	assert.Contains(t, text, `snake\_case`)
	assert.Contains(t, text, "🏷 Programming · easy")
}

func TestQuestionTextMetadataOutsideEntities(t *testing.T) {
	s := quiz.NewSession()
	src := quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		return []quiz.Record{{
			Prompt: "Q?", CorrectAnswer: "A", IncorrectAnswers: []string{"B"},
			Category: "Entertainment: Video_Games*", Difficulty: "hard",
		}}, nil
	})
	require.NoError(t, s.Load(context.Background(), src))

	text := questionText(s.Snapshot())
	assert.Contains(t, text, `🏷 Entertainment: Video\_Games\* · hard`+"\n")
	// no italic span around the escaped metadata
	assert.NotContains(t, text, "\n_")
	assert.False(t, strings.HasSuffix(strings.SplitN(text, "\n", 3)[1], "_"))
}

func TestQuestionKeyboard(t *testing.T) {
	s := readySession(t)
	q, _ := s.Current()
	require.NoError(t, s.SelectOption(q.ID, 1))

	tag := sessionTag(s.ID())
	kb := questionKeyboard(s.Snapshot())
	require.Len(t, kb.InlineKeyboard, 4+1+2)

	assert.Equal(t, "ans:"+tag+":1:0", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "🔵 "+q.Options[1], kb.InlineKeyboard[1][0].Text)

	// first question: only Next
	nav := kb.InlineKeyboard[4]
	require.Len(t, nav, 1)
	assert.Equal(t, "nav:"+tag+":1", *nav[0].CallbackData)
	assert.Equal(t, "submit_quiz:"+tag, *kb.InlineKeyboard[5][1].CallbackData)
	assert.Equal(t, "exit_quiz:"+tag, *kb.InlineKeyboard[6][0].CallbackData)

	require.NoError(t, s.GoTo(1))
	kb = questionKeyboard(s.Snapshot())
	nav = kb.InlineKeyboard[2]
	require.Len(t, nav, 2)
	assert.Equal(t, "nav:"+tag+":0", *nav[0].CallbackData)
	assert.Equal(t, "nav:"+tag+":2", *nav[1].CallbackData)
}

func TestOverviewMarkers(t *testing.T) {
	s := readySession(t)
	require.NoError(t, s.SelectAnswer(1, "a_b"))
	require.NoError(t, s.GoTo(1))

	v := s.Snapshot()
	kb := overviewKeyboard(v)
	row := kb.InlineKeyboard[0]
	require.Len(t, row, 3)
	assert.Equal(t, "✅ Q1", row[0].Text)
	assert.Equal(t, "👁 Q2", row[1].Text)
	assert.Equal(t, "▫️ Q3", row[2].Text)
	assert.Equal(t, "nav:"+sessionTag(s.ID())+":2", *row[2].CallbackData)

	assert.Contains(t, overviewText(v), "Attempted: 1/3")
}

func TestResultText(t *testing.T) {
	s := readySession(t)
	require.NoError(t, s.SelectAnswer(1, "a_b"))
	require.NoError(t, s.SelectAnswer(2, "3"))
	_, err := s.Submit()
	require.NoError(t, err)

	v := s.Snapshot()
	text := resultText(v, service.Outcome{NewBest: true, Position: 2})
	assert.Contains(t, text, "Your Score: 1/3")
	assert.Contains(t, text, "Correct: 33%")
	assert.Contains(t, text, "#2 on the leaderboard")
	assert.NotContains(t, text, "Time is up")
	assert.NotContains(t, text, "Not Answered")

	review := reviewMessages(v)
	require.Len(t, review, 1)
	assert.Contains(t, review[0], "Not Answered")
	assert.Contains(t, review[0], `Correct Answer: a\_b`)
}

func TestReviewMessagesFitTelegramLimit(t *testing.T) {
	recs := make([]quiz.Record, 15)
	for i := range recs {
		recs[i] = quiz.Record{
			Prompt:           strings.Repeat("Which of these long-winded trivia facts is true? ", 4)[:170],
			CorrectAnswer:    strings.Repeat("c", 35),
			IncorrectAnswers: []string{strings.Repeat("w", 35), strings.Repeat("x", 35), strings.Repeat("y", 35)},
		}
	}
	s := quiz.NewSession(quiz.WithAmount(15))
	require.NoError(t, s.Load(context.Background(), quiz.SourceFunc(func(ctx context.Context, amount int) ([]quiz.Record, error) {
		return recs, nil
	})))
	for id := 1; id <= 15; id++ {
		require.NoError(t, s.SelectOption(id, 0))
	}
	_, err := s.Submit()
	require.NoError(t, err)

	v := s.Snapshot()
	review := reviewMessages(v)
	require.Greater(t, len(review), 1)

	total := 0
	for _, msg := range review {
		assert.LessOrEqual(t, textLength(msg), maxMessageLength)
		total += strings.Count(msg, "Correct Answer:")
	}
	assert.Equal(t, 15, total)
	assert.LessOrEqual(t, textLength(resultText(v, service.Outcome{})), maxMessageLength)
}

func TestChunkMessages(t *testing.T) {
	assert.Equal(t, []string{"aaab", "bb"}, chunkMessages([]string{"aaa", "b", "bb"}, 4))
	assert.Equal(t, []string{"abcd", "e"}, chunkMessages([]string{"abcdefg", "e"}, 4))
	assert.Nil(t, chunkMessages(nil, 4))

	// emoji outside the BMP count as two units
	assert.Equal(t, 2, textLength("🎉"))
	assert.Equal(t, []string{"🎉", "🎉"}, chunkMessages([]string{"🎉", "🎉"}, 3))
}

func TestLeaderboardText(t *testing.T) {
	assert.Contains(t, leaderboardText(nil), "No results yet")

	text := leaderboardText([]service.LeaderboardEntry{
		{Name: "@ann", Score: 9, Total: 10, Percentage: 90, Date: "18.10.2026 12:00"},
		{Name: "bob", Score: 5, Total: 10, Percentage: 50, Date: "18.10.2026 12:05"},
	})
	assert.Contains(t, text, "🥇 1. @ann - 90% (9/10)")
	assert.Contains(t, text, "🥈 2. bob - 50% (5/10)")
}

func TestParseCallback(t *testing.T) {
	cb, err := parseCallback("ans:1f0c9a2b:3:1")
	require.NoError(t, err)
	assert.Equal(t, callback{action: cbAnswer, tag: "1f0c9a2b", args: []int{3, 1}}, cb)

	cb, err = parseCallback("nav:1f0c9a2b:4")
	require.NoError(t, err)
	assert.Equal(t, cbNav, cb.action)
	assert.Equal(t, []int{4}, cb.args)

	cb, err = parseCallback("back_to_question:1f0c9a2b")
	require.NoError(t, err)
	assert.Equal(t, cbBack, cb.action)
	assert.Empty(t, cb.args)

	cb, err = parseCallback(cbMenu)
	require.NoError(t, err)
	assert.Equal(t, callback{action: cbMenu}, cb)

	for _, bad := range []string{"ans:1f0c9a2b:3", "ans:1f0c9a2b:x:1", "nav:1f0c9a2b:1:2", "nav:1f0c9a2b:", "nav_1", "ans::1:1", "submit_quiz", "info:x"} {
		_, err := parseCallback(bad)
		assert.Error(t, err, bad)
	}
}

func TestOldQuizButtonsAreStale(t *testing.T) {
	old := readySession(t)
	current := readySession(t)
	require.NotEqual(t, sessionTag(old.ID()), sessionTag(current.ID()))

	data := *questionKeyboard(old.Snapshot()).InlineKeyboard[0][0].CallbackData
	cb, err := parseCallback(data)
	require.NoError(t, err)
	assert.True(t, cb.stale(current))
	assert.True(t, cb.stale(nil))
	assert.False(t, cb.stale(old))

	data = *questionKeyboard(current.Snapshot()).InlineKeyboard[0][0].CallbackData
	cb, err = parseCallback(data)
	require.NoError(t, err)
	assert.False(t, cb.stale(current))

	menu, err := parseCallback(cbStart)
	require.NoError(t, err)
	assert.False(t, menu.stale(nil))
}

func TestPlayerName(t *testing.T) {
	assert.Equal(t, "@ann", playerName(&tgbotapi.User{UserName: "ann", FirstName: "Ann"}))
	assert.Equal(t, "Ann", playerName(&tgbotapi.User{FirstName: "Ann"}))
	assert.Equal(t, "", playerName(nil))
}
