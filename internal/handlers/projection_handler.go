package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "horizon/internal/errors"
	"horizon/internal/pagination"
	"horizon/internal/services"
	"horizon/internal/uuid"
)

// ProjectionHandler serves projection reads and current-metrics lookups.
type ProjectionHandler struct {
	projectionService services.ProjectionServicer
}

// NewProjectionHandler creates a new ProjectionHandler.
func NewProjectionHandler(projectionService services.ProjectionServicer) *ProjectionHandler {
	return &ProjectionHandler{projectionService: projectionService}
}

// GetProjections returns the projection rows of the household's baseline, or
// of the scenario named by the `scenario` query parameter, ordered by month.
func (h *ProjectionHandler) GetProjections(c *gin.Context) {
	householdID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	scenarioID := c.Query("scenario")
	if scenarioID == "" {
		row, err := h.projectionService.CurrentMetrics(householdID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		scenarioID = row.ScenarioID
	} else if !uuid.IsValid(scenarioID) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid scenario"))
		return
	}

	result, err := h.projectionService.GetProjections(scenarioID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCurrentMetrics returns the latest row of the household's live baseline.
func (h *ProjectionHandler) GetCurrentMetrics(c *gin.Context) {
	householdID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	row, err := h.projectionService.CurrentMetrics(householdID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": row})
}
