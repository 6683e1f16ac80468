package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/PoluyanbIch/triviabot/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
)

type SessionController struct {
	quizService *service.QuizService
}

func NewSessionController(qs *service.QuizService) *SessionController {
	return &SessionController{quizService: qs}
}

func toDTO(v quiz.View) (SessionDTO, error) {
	var resp SessionDTO
	if err := copier.Copy(&resp, &v); err != nil {
		return SessionDTO{}, err
	}
	if resp.Questions == nil {
		resp.Questions = []QuestionDTO{}
	}
	return resp, nil
}

func (c *SessionController) respond(ctx *gin.Context, status int, s *quiz.Session) {
	resp, err := toDTO(s.Snapshot())
	if err != nil {
		log.Error().Err(err).Str("session", s.ID()).Msg("Failed to copy session view to DTO")
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to prepare session"})
		return
	}
	ctx.JSON(status, resp)
}

func (c *SessionController) session(ctx *gin.Context) (*quiz.Session, bool) {
	id := ctx.Param("session_id")
	s, ok := c.quizService.Get(id)
	if !ok {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: "Session not found"})
		return nil, false
	}
	return s, true
}

func writeQuizError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, quiz.ErrUnknownQuestion),
		errors.Is(err, quiz.ErrIndexOutOfRange),
		errors.Is(err, quiz.ErrInvalidAnswer):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, quiz.ErrNotReady),
		errors.Is(err, quiz.ErrSubmitted),
		errors.Is(err, quiz.ErrLoadInProgress):
		status = http.StatusConflict
	}
	ctx.JSON(status, ErrorResponse{Message: err.Error()})
}

// StartSession creates a session for the player and starts loading its
// questions. The response is sent before loading completes.
func (c *SessionController) StartSession(ctx *gin.Context) {
	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("StartSession: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: "Please enter a valid email address.", Details: []string{err.Error()}})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name, _, _ := strings.Cut(email, "@")
	s := c.quizService.Start("", service.Player{ID: email, Name: name}, service.Hooks{})

	c.respond(ctx, http.StatusAccepted, s)
}

func (c *SessionController) GetSession(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	c.respond(ctx, http.StatusOK, s)
}

func (c *SessionController) SelectAnswer(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}

	var req SelectAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := s.SelectAnswer(req.QuestionID, req.Answer); err != nil {
		writeQuizError(ctx, err)
		return
	}
	c.respond(ctx, http.StatusOK, s)
}

func (c *SessionController) GoTo(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}

	var req GoToRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := s.GoTo(*req.Index); err != nil {
		writeQuizError(ctx, err)
		return
	}
	c.respond(ctx, http.StatusOK, s)
}

func (c *SessionController) Submit(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	if _, err := s.Submit(); err != nil {
		writeQuizError(ctx, err)
		return
	}
	c.respond(ctx, http.StatusOK, s)
}

// EndSession tears the session down; the presentation layer is gone.
func (c *SessionController) EndSession(ctx *gin.Context) {
	if !c.quizService.End(ctx.Param("session_id")) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: "Session not found"})
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (c *SessionController) GetLeaderboard(ctx *gin.Context) {
	limit := 10
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid limit"})
			return
		}
		limit = n
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	top, err := c.quizService.Leaderboard().GetTop(reqCtx, limit)
	if err != nil {
		log.Error().Err(err).Msg("GetLeaderboard: Service error")
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to retrieve leaderboard", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, top)
}
