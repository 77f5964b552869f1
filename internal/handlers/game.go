package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
	"github.com/szdorah/Quiz0r-sub001/internal/broadcast"
	"github.com/szdorah/Quiz0r-sub001/internal/game"
	"github.com/szdorah/Quiz0r-sub001/internal/models"
	"github.com/szdorah/Quiz0r-sub001/internal/storage"
)

type GameHandler struct {
	registry   *game.Registry
	hub        *broadcast.Hub
	games      *storage.GameStore
	quizzes    *storage.QuizStore
	onFinished func(game.FinalResult)
}

func NewGameHandler(registry *game.Registry, hub *broadcast.Hub, games *storage.GameStore, quizzes *storage.QuizStore, onFinished func(game.FinalResult)) *GameHandler {
	return &GameHandler{
		registry:   registry,
		hub:        hub,
		games:      games,
		quizzes:    quizzes,
		onFinished: onFinished,
	}
}

type CreateGameRequest struct {
	QuizID    uint `json:"quiz_id" binding:"required" example:"1"`
	AutoAdmit bool `json:"auto_admit" example:"false"`
}

type CreateGameResponse struct {
	ID        uint   `json:"id" example:"1"`
	Code      string `json:"code" example:"AB23CD"`
	QuizTitle string `json:"quiz_title" example:"General Knowledge"`
}

// CreateGame godoc
// @Summary      Create a game from a quiz
// @Description  Starts a new live game in the waiting lobby and returns its join code
// @Tags         games
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body CreateGameRequest true "Game settings"
// @Success      201 {object} CreateGameResponse
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/games [post]
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	quiz, err := h.quizzes.LoadQuiz(req.QuizID, hostID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(quiz.Questions) == 0 {
		respondError(c, apperr.New(apperr.KindValidation, "quiz has no questions"))
		return
	}

	model := models.GameSession{
		QuizID:    quiz.ID,
		HostID:    hostID(c),
		Code:      h.registry.GenerateCode(),
		Status:    models.GameStatusWaiting,
		AutoAdmit: req.AutoAdmit,
	}
	if err := h.games.SaveSession(&model); err != nil {
		respondError(c, err)
		return
	}

	session := game.NewSession(model, *quiz, h.games, h.hub, h.onFinished)
	// Cancelled games generate no certificates, so nothing else would
	// reclaim the slot.
	session.OnCancelled(h.registry.Evict)
	if err := h.registry.Register(session); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("game %s: created from quiz %d by host %d", model.Code, quiz.ID, model.HostID)
	c.JSON(http.StatusCreated, CreateGameResponse{ID: model.ID, Code: model.Code, QuizTitle: quiz.Title})
}

// ListGames godoc
// @Summary      List the host's games
// @Tags         games
// @Security     BearerAuth
// @Produce      json
// @Success      200 {array} models.GameSession
// @Router       /api/v1/games [get]
func (h *GameHandler) ListGames(c *gin.Context) {
	sessions, err := h.games.SessionsByHost(hostID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

type JoinRequest struct {
	Name         string `json:"name" binding:"required" example:"alice"`
	AvatarEmoji  string `json:"avatar_emoji" example:"🦊"`
	LanguageCode string `json:"language_code" example:"en"`
}

type JoinResponse struct {
	PlayerID        string `json:"player_id"`
	Name            string `json:"name"`
	AvatarColor     string `json:"avatar_color"`
	AvatarEmoji     string `json:"avatar_emoji"`
	AdmissionStatus string `json:"admission_status"`
}

// Join godoc
// @Summary      Join a game as a player
// @Description  Requests admission to a live game; depending on the game's settings the player starts pending or admitted
// @Tags         games
// @Accept       json
// @Produce      json
// @Param        code path string true "Game code"
// @Param        request body JoinRequest true "Player identity"
// @Success      200 {object} JoinResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/games/{code}/join [post]
func (h *GameHandler) Join(c *gin.Context) {
	session, err := h.registry.Lookup(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	player, err := session.RequestJoin(req.Name, req.AvatarEmoji, req.LanguageCode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, JoinResponse{
		PlayerID:        player.ID,
		Name:            player.Name,
		AvatarColor:     player.AvatarColor,
		AvatarEmoji:     player.AvatarEmoji,
		AdmissionStatus: player.AdmissionStatus,
	})
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	AvatarColor string `json:"avatar_color"`
	AvatarEmoji string `json:"avatar_emoji"`
	Score       int    `json:"score"`
	IsActive    bool   `json:"is_active"`
}

// Leaderboard godoc
// @Summary      Current ranking of a live game
// @Tags         games
// @Security     BearerAuth
// @Produce      json
// @Param        code path string true "Game code"
// @Success      200 {array} LeaderboardEntry
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/games/{code}/leaderboard [get]
func (h *GameHandler) Leaderboard(c *gin.Context) {
	session, err := h.registry.Lookup(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	if session.HostID() != hostID(c) {
		respondError(c, apperr.New(apperr.KindPermissionDenied, "game belongs to another host"))
		return
	}

	var out []LeaderboardEntry
	for _, r := range session.FinalRanking() {
		out = append(out, LeaderboardEntry{
			Rank:        r.Rank,
			PlayerID:    r.PlayerID,
			Name:        r.Name,
			AvatarColor: r.AvatarColor,
			AvatarEmoji: r.AvatarEmoji,
			Score:       r.Score,
			IsActive:    r.IsActive,
		})
	}
	c.JSON(http.StatusOK, out)
}

// End godoc
// @Summary      Finish a game early
// @Description  Moves the game to finished from any gameplay state and starts certificate generation
// @Tags         games
// @Security     BearerAuth
// @Produce      json
// @Param        code path string true "Game code"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/games/{code}/end [post]
func (h *GameHandler) End(c *gin.Context) {
	session, err := h.registry.Lookup(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	if session.HostID() != hostID(c) {
		respondError(c, apperr.New(apperr.KindPermissionDenied, "game belongs to another host"))
		return
	}

	if err := session.HostEnd(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "game finished"})
}
