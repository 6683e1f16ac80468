package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/PoluyanbIch/triviabot/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbStart       = "start_quiz"
	cbExit        = "exit_quiz"
	cbMenu        = "back_to_menu"
	cbInfo        = "info"
	cbLeaderboard = "leaderboard"
	cbSubmit      = "submit_quiz"
	cbOverview    = "overview"
	cbBack        = "back_to_question"
	cbAnswer      = "ans"
	cbNav         = "nav"
)

// maxMessageLength is Telegram's limit on message text, in UTF-16 code units.
const maxMessageLength = 4096

// quizActions are the callbacks bound to one session, with their argument
// counts. Their data is "action:tag[:arg...]".
var quizActions = map[string]int{
	cbAnswer:   2,
	cbNav:      1,
	cbOverview: 0,
	cbBack:     0,
	cbSubmit:   0,
	cbExit:     0,
}

type callback struct {
	action string
	tag    string
	args   []int
}

// sessionTag is the short session marker carried in quiz button data.
func sessionTag(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}

func callbackData(action, tag string, args ...int) string {
	parts := append(make([]string, 0, len(args)+2), action, tag)
	for _, a := range args {
		parts = append(parts, strconv.Itoa(a))
	}
	return strings.Join(parts, ":")
}

// stale reports whether cb belongs to a session other than current. Buttons
// of a replaced or ended quiz must not act on the chat's new session.
func (cb callback) stale(current *quiz.Session) bool {
	if cb.tag == "" {
		return false
	}
	return current == nil || sessionTag(current.ID()) != cb.tag
}

func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

// formatRemaining renders a countdown as m:ss.
func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func questionText(v quiz.View) string {
	q, ok := v.Current()
	if !ok {
		return "No questions available!"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❓ *Question %d/%d*    ⏱ %s\n", v.CurrentIndex+1, v.Total, formatRemaining(v.RemainingSeconds))
	if q.Category != "" {
		fmt.Fprintf(&b, "🏷 %s", escape(q.Category))
		if q.Difficulty != "" {
			fmt.Fprintf(&b, " · %s", escape(q.Difficulty))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%s", escape(q.Prompt))
	return b.String()
}

func questionKeyboard(v quiz.View) tgbotapi.InlineKeyboardMarkup {
	q, _ := v.Current()
	tag := sessionTag(v.SessionID)

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, option := range q.Options {
		label := option
		if q.Answered && q.UserAnswer == option {
			label = "🔵 " + option
		}
		data := callbackData(cbAnswer, tag, q.ID, i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if v.CurrentIndex > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Previous", callbackData(cbNav, tag, v.CurrentIndex-1)))
	}
	if v.CurrentIndex < v.Total-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", callbackData(cbNav, tag, v.CurrentIndex+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Overview", callbackData(cbOverview, tag)),
			tgbotapi.NewInlineKeyboardButtonData("🏁 Submit Quiz", callbackData(cbSubmit, tag)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚪 Exit quiz", callbackData(cbExit, tag)),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// overviewMarker is ✅ for attempted, 👁 for visited only, ▫️ otherwise.
func overviewMarker(q quiz.QuestionView) string {
	switch {
	case q.Answered:
		return "✅"
	case q.Visited:
		return "👁"
	default:
		return "▫️"
	}
}

func overviewText(v quiz.View) string {
	answered := 0
	for _, q := range v.Questions {
		if q.Answered {
			answered++
		}
	}
	return fmt.Sprintf("📋 *Overview*    ⏱ %s\n\nAttempted: %d/%d\n✅ attempted  👁 visited  ▫️ not seen",
		formatRemaining(v.RemainingSeconds), answered, v.Total)
}

func overviewKeyboard(v quiz.View) tgbotapi.InlineKeyboardMarkup {
	const perRow = 5
	tag := sessionTag(v.SessionID)

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, q := range v.Questions {
		label := fmt.Sprintf("%s Q%d", overviewMarker(q), q.ID)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbNav, tag, i)))
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Back to question", callbackData(cbBack, tag)),
		tgbotapi.NewInlineKeyboardButtonData("🏁 Submit Quiz", callbackData(cbSubmit, tag)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// resultText is the score summary sent first after a submission.
func resultText(v quiz.View, out service.Outcome) string {
	percentage := 0
	if v.Total > 0 {
		percentage = (v.Score * 100) / v.Total
	}

	var b strings.Builder
	if v.TimedOut {
		b.WriteString("⏰ *Time is up!*\n\n")
	}
	fmt.Fprintf(&b, "🏁 *Quiz Submitted!*\n\n📊 Your Score: %d/%d\n📈 Correct: %d%%\n", v.Score, v.Total, percentage)

	if out.NewBest && out.Position > 0 {
		fmt.Fprintf(&b, "\n🎉 *New personal best!* You are #%d on the leaderboard!\n", out.Position)
	}
	return b.String()
}

// reviewMessages lists every question with the player's and the correct
// answer, split into messages Telegram accepts.
func reviewMessages(v quiz.View) []string {
	if len(v.Questions) == 0 {
		return nil
	}

	blocks := make([]string, 0, len(v.Questions)+1)
	blocks = append(blocks, "📝 *Review*\n\n")
	for _, q := range v.Questions {
		mark := "❌"
		if q.Correct {
			mark = "✅"
		}
		answer := q.UserAnswer
		if !q.Answered {
			answer = "Not Answered"
		}
		blocks = append(blocks, fmt.Sprintf("%s *Q%d* %s\nYour Answer: %s\nCorrect Answer: %s\n\n",
			mark, q.ID, escape(q.Prompt), escape(answer), escape(q.CorrectAnswer)))
	}
	return chunkMessages(blocks, maxMessageLength)
}

// chunkMessages packs blocks, in order, into texts of at most limit UTF-16
// code units. A block longer than limit on its own is cut.
func chunkMessages(blocks []string, limit int) []string {
	var out []string
	var b strings.Builder
	size := 0
	for _, block := range blocks {
		n := textLength(block)
		if n > limit {
			block = truncateText(block, limit)
			n = textLength(block)
		}
		if size > 0 && size+n > limit {
			out = append(out, b.String())
			b.Reset()
			size = 0
		}
		b.WriteString(block)
		size += n
	}
	if size > 0 {
		out = append(out, b.String())
	}
	return out
}

func textLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func truncateText(s string, limit int) string {
	n := 0
	for i, r := range s {
		n += utf16.RuneLen(r)
		if n > limit {
			return s[:i]
		}
	}
	return s
}

func leaderboardText(top []service.LeaderboardEntry) string {
	if len(top) == 0 {
		return "🏆 *Leaderboard*\n\nNo results yet. Be the first! 🎯"
	}

	var b strings.Builder
	b.WriteString("🏆 *Top 10 players*\n\n")
	for i, entry := range top {
		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		fmt.Fprintf(&b, "%s %d. %s - %d%% (%d/%d)\n   📅 %s\n\n",
			medal, i+1, escape(entry.Name), entry.Percentage, entry.Score, entry.Total, entry.Date)
	}
	return b.String()
}

// parseCallback decodes button data. Quiz actions look like "ans:1f0c9a2b:3:1"
// and carry the session tag; menu actions are plain names.
func parseCallback(data string) (callback, error) {
	parts := strings.Split(data, ":")
	want, scoped := quizActions[parts[0]]
	if !scoped {
		if len(parts) > 1 {
			return callback{}, fmt.Errorf("callback %q: unexpected arguments", data)
		}
		return callback{action: data}, nil
	}
	if len(parts) < 2 || parts[1] == "" {
		return callback{}, fmt.Errorf("callback %q: missing session tag", data)
	}

	args := make([]int, 0, len(parts)-2)
	for _, p := range parts[2:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return callback{}, fmt.Errorf("callback %q: %w", data, err)
		}
		args = append(args, n)
	}
	if len(args) != want {
		return callback{}, fmt.Errorf("callback %q: want %d arguments, got %d", data, want, len(args))
	}
	return callback{action: parts[0], tag: parts[1], args: args}, nil
}

func playerName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return "@" + user.UserName
	}
	return user.FirstName
}
