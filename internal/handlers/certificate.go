package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/szdorah/Quiz0r-sub001/internal/certificate"
	"github.com/szdorah/Quiz0r-sub001/internal/game"
	"github.com/szdorah/Quiz0r-sub001/internal/models"
	"github.com/szdorah/Quiz0r-sub001/internal/storage"
)

// CertificateHandler resolves game codes through the mirrored session
// row, not the live registry: certificate endpoints keep working after
// the game has been evicted from memory.
type CertificateHandler struct {
	pipeline *certificate.Pipeline
	games    *storage.GameStore
}

func NewCertificateHandler(pipeline *certificate.Pipeline, games *storage.GameStore) *CertificateHandler {
	return &CertificateHandler{pipeline: pipeline, games: games}
}

func (h *CertificateHandler) session(c *gin.Context) (*models.GameSession, bool) {
	session, err := h.games.SessionByCode(game.NormalizeCode(c.Param("code")))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session, true
}

// Status godoc
// @Summary      Certificate batch status
// @Description  Per-certificate status plus aggregate counts for one game
// @Tags         certificates
// @Produce      json
// @Param        code path string true "Game code"
// @Success      200 {object} certificate.StatusSummary
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/games/{code}/certificates/status [get]
func (h *CertificateHandler) Status(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	summary, err := h.pipeline.Status(session.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type DownloadRequest struct {
	Type     string `json:"type" binding:"required,oneof=host player" example:"player"`
	PlayerID string `json:"player_id" example:"b2f1c0e4-..."`
}

// Download godoc
// @Summary      Download a certificate image
// @Description  Returns the PNG when completed; while pending or generating responds 400 with the current status
// @Tags         certificates
// @Accept       json
// @Produce      png
// @Param        code path string true "Game code"
// @Param        request body DownloadRequest true "Which certificate"
// @Success      200 {file} file
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/games/{code}/certificates/download [post]
func (h *CertificateHandler) Download(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var playerID *string
	if req.PlayerID != "" {
		playerID = &req.PlayerID
	}
	cert, err := h.pipeline.Find(session.ID, req.Type, playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	if cert.Status != models.CertificateStatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "certificate is not ready",
			"status": cert.Status,
		})
		return
	}
	c.File(cert.FilePath)
}

type RegenerateRequest struct {
	CertificateIDs []string `json:"certificate_ids" binding:"required,min=1"`
}

// Regenerate godoc
// @Summary      Regenerate certificates
// @Description  Resets the listed certificates to pending and re-runs generation for them
// @Tags         certificates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        code path string true "Game code"
// @Param        request body RegenerateRequest true "Certificates to regenerate"
// @Success      202 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/games/{code}/certificates/regenerate [post]
func (h *CertificateHandler) Regenerate(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.pipeline.Regenerate(session.ID, req.CertificateIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "regeneration started"})
}
