package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "horizon/internal/errors"
	"horizon/internal/services"
)

// ScenarioHandler handles scenario lifecycle requests.
type ScenarioHandler struct {
	projectionService services.ProjectionServicer
}

// NewScenarioHandler creates a new ScenarioHandler.
func NewScenarioHandler(projectionService services.ProjectionServicer) *ScenarioHandler {
	return &ScenarioHandler{projectionService: projectionService}
}

// ExtendHorizonRequest represents the request payload for raising a
// scenario's projection horizon.
type ExtendHorizonRequest struct {
	Months int `json:"months" binding:"required,min=1,max=600"`
}

// ExtendHorizon sets a new projection horizon and recomputes the scenario.
func (h *ScenarioHandler) ExtendHorizon(c *gin.Context) {
	scenarioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExtendHorizonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.projectionService.ExtendHorizon(scenarioID, req.Months); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recomputed", "months": req.Months})
}

// PinBaselineRequest represents the request payload for pinning a baseline.
type PinBaselineRequest struct {
	AsOfDate *time.Time `json:"as_of_date"`
}

// PinBaseline freezes the scenario's baseline at the given as-of date,
// defaulting to now. A pinned baseline keeps its rows and leaves the
// refresh target set.
func (h *ScenarioHandler) PinBaseline(c *gin.Context) {
	scenarioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PinBaselineRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}
	asOf := time.Now()
	if req.AsOfDate != nil {
		asOf = *req.AsOfDate
	}

	scenario, err := h.projectionService.PinBaseline(scenarioID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenario": scenario})
}
