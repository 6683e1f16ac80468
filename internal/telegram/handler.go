package telegram

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/PoluyanbIch/triviabot/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

type Bot struct {
	api         *tgbotapi.BotAPI
	quizService *service.QuizService
}

func NewBot(token string, debug bool, quizService *service.QuizService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug

	return &Bot{
		api:         api,
		quizService: quizService,
	}, nil
}

// Start blocks, handling updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	log.Info().Str("account", b.api.Self.UserName).Msg("Authorised on account")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.quizService.Shutdown()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		chatID := update.Message.Chat.ID
		switch update.Message.Command() {
		case "start":
			b.sendMainMenu(chatID)
		case "quiz":
			b.startQuiz(chatID, update.Message.From)
		case "leaderboard":
			b.handleLeaderboard(chatID)
		case "info":
			b.handleInfo(chatID)
		default:
			b.sendMessage(chatID, "Unknown command")
		}
	}
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	cb, err := parseCallback(callback.Data)
	if err != nil {
		b.answerCallback(callback.ID, "")
		log.Warn().Err(err).Int64("chat", chatID).Msg("Malformed callback data")
		return
	}

	s, _ := b.session(chatID)
	if cb.stale(s) {
		b.answerCallback(callback.ID, "This quiz is no longer active")
		log.Debug().Int64("chat", chatID).Str("data", callback.Data).Msg("Ignoring button of an old quiz")
		return
	}
	b.answerCallback(callback.ID, "")

	switch cb.action {
	case cbStart:
		b.startQuiz(chatID, callback.From)
	case cbAnswer:
		b.handleQuizAnswer(chatID, messageID, s, cb.args[0], cb.args[1])
	case cbNav:
		b.handleNavigation(chatID, messageID, s, cb.args[0])
	case cbOverview:
		b.showOverview(chatID, messageID, s)
	case cbBack:
		b.renderQuestion(chatID, messageID, s)
	case cbSubmit:
		b.submitQuiz(chatID, s)
	case cbExit:
		b.exitQuiz(chatID)
	case cbMenu:
		b.sendMainMenu(chatID)
	case cbInfo:
		b.handleInfo(chatID)
	case cbLeaderboard:
		b.handleLeaderboard(chatID)
	default:
		b.sendMessage(chatID, "Unknown command")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.Error().Err(err).Msg("Error answering callback")
	}
}

func sessionKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (b *Bot) session(chatID int64) (*quiz.Session, bool) {
	return b.quizService.Get(sessionKey(chatID))
}

func (b *Bot) sendMainMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "📋 *Main menu*")
	msg.ParseMode = tgbotapi.ModeMarkdown

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Trivia quiz", cbStart),
			tgbotapi.NewInlineKeyboardButtonData("🏆 Leaderboard", cbLeaderboard),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ About", cbInfo),
		),
	)
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Error sending start message")
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Error sending message")
	}
}

func (b *Bot) startQuiz(chatID int64, user *tgbotapi.User) {
	player := service.Player{Name: playerName(user)}
	if user != nil {
		player.ID = strconv.FormatInt(user.ID, 10)
	}

	b.sendMessage(chatID, "⏳ Loading questions...")

	key := sessionKey(chatID)
	b.quizService.Start(key, player, service.Hooks{
		Loaded: func(s *quiz.Session, err error) {
			if current, ok := b.quizService.Get(key); !ok || current != s {
				return
			}
			if err != nil {
				b.quizService.End(key)
				b.sendNoQuestions(chatID)
				return
			}
			b.sendQuestion(chatID)
		},
		Submitted: func(s *quiz.Session, _ quiz.Result, out service.Outcome) {
			b.finishQuiz(chatID, s, out)
		},
	})
}

func (b *Bot) sendNoQuestions(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "😕 No questions available right now. Please try again later.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Try again", cbStart),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", cbMenu),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Error sending no-questions message")
	}
}

func (b *Bot) sendQuestion(chatID int64) {
	s, exists := b.session(chatID)
	if !exists {
		return
	}
	v := s.Snapshot()
	if v.State != quiz.StateReady {
		return
	}

	msg := tgbotapi.NewMessage(chatID, questionText(v))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = questionKeyboard(v)

	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Error sending question")
	}
}

// edit replaces the text and keyboard of an existing bot message.
func (b *Bot) edit(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Debug().Err(err).Int64("chat", chatID).Msg("Error editing message")
	}
}

func (b *Bot) renderQuestion(chatID int64, messageID int, s *quiz.Session) {
	v := s.Snapshot()
	if v.State != quiz.StateReady {
		return
	}
	b.edit(chatID, messageID, questionText(v), questionKeyboard(v))
}

func (b *Bot) handleQuizAnswer(chatID int64, messageID int, s *quiz.Session, questionID, option int) {
	if err := s.SelectOption(questionID, option); err != nil {
		b.reportQuizError(chatID, err)
		return
	}
	b.renderQuestion(chatID, messageID, s)
}

func (b *Bot) handleNavigation(chatID int64, messageID int, s *quiz.Session, index int) {
	if err := s.GoTo(index); err != nil {
		b.reportQuizError(chatID, err)
		return
	}
	b.renderQuestion(chatID, messageID, s)
}

func (b *Bot) showOverview(chatID int64, messageID int, s *quiz.Session) {
	v := s.Snapshot()
	if v.State != quiz.StateReady {
		return
	}
	b.edit(chatID, messageID, overviewText(v), overviewKeyboard(v))
}

func (b *Bot) submitQuiz(chatID int64, s *quiz.Session) {
	// the Submitted hook posts the result
	if _, err := s.Submit(); err != nil {
		b.reportQuizError(chatID, err)
	}
}

func (b *Bot) reportQuizError(chatID int64, err error) {
	switch {
	case errors.Is(err, quiz.ErrSubmitted):
		b.sendMessage(chatID, "This quiz is already submitted. Use /quiz to start a new one.")
	case errors.Is(err, quiz.ErrNotReady):
		b.sendMessage(chatID, "⏳ Questions are still loading...")
	default:
		log.Warn().Err(err).Int64("chat", chatID).Msg("Rejected quiz action")
	}
}

func (b *Bot) exitQuiz(chatID int64) {
	if !b.quizService.End(sessionKey(chatID)) {
		b.sendMainMenu(chatID)
		return
	}

	msg := tgbotapi.NewMessage(chatID, "🚪 Quiz aborted.\nYour result was not saved.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start again", cbStart),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", cbMenu),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Error sending exit message")
	}
}

// finishQuiz posts the score first, then the answer review in as many
// messages as it takes. The buttons go on the last one.
func (b *Bot) finishQuiz(chatID int64, s *quiz.Session, out service.Outcome) {
	v := s.Snapshot()
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start again", cbStart),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", cbMenu),
		),
	)

	texts := append([]string{resultText(v, out)}, reviewMessages(v)...)
	for i, text := range texts {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if i == len(texts)-1 {
			msg.ReplyMarkup = kb
		}
		if _, err := b.api.Send(msg); err != nil {
			log.Error().Err(err).Int64("chat", chatID).Int("part", i).Msg("Error sending result")
		}
	}
}

func (b *Bot) handleLeaderboard(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	top, err := b.quizService.Leaderboard().GetTop(ctx, 10)
	if err != nil {
		log.Error().Err(err).Msg("Error loading leaderboard")
		b.sendMessage(chatID, "🏆 Leaderboard is unavailable right now.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, leaderboardText(top))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start quiz", cbStart),
			tgbotapi.NewInlineKeyboardButtonData("📋 Main menu", cbMenu),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Error sending leaderboard")
	}
}

func (b *Bot) handleInfo(chatID int64) {
	text := "🎯 Timed trivia quiz.\n" +
		"Questions come from the Open Trivia Database (https://opentdb.com).\n" +
		"Answer in any order, change your mind before submitting, and beat the clock.\n\n" +
		"Source code: https://github.com/PoluyanbIch/triviabot"

	infoMsg := tgbotapi.NewMessage(chatID, text)

	infoMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📂 GitHub repository", "https://github.com/PoluyanbIch/triviabot"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back", cbMenu),
		),
	)

	if _, err := b.api.Send(infoMsg); err != nil {
		log.Error().Err(err).Msg("Error sending info")
	}
}
