package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "horizon/internal/errors"
	"horizon/internal/services"
)

// PipelineHandler exposes the batch-processing controls. Both routes sit
// behind the pipeline API key.
type PipelineHandler struct {
	refreshService services.RefreshServicer
	eventService   services.EventServicer

	defaultBatchSize int
	eventRetention   time.Duration
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(refreshService services.RefreshServicer, eventService services.EventServicer, defaultBatchSize int, eventRetention time.Duration) *PipelineHandler {
	return &PipelineHandler{
		refreshService:   refreshService,
		eventService:     eventService,
		defaultBatchSize: defaultBatchSize,
		eventRetention:   eventRetention,
	}
}

// DrainRequest represents the request payload for a manual drain.
type DrainRequest struct {
	BatchSize int `json:"batch_size" binding:"omitempty,min=1,max=1000"`
}

// Drain claims and processes one batch of pending events.
func (h *PipelineHandler) Drain(c *gin.Context) {
	var req DrainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = h.defaultBatchSize
	}

	result, err := h.refreshService.Drain(c.Request.Context(), batchSize)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Purge deletes terminal events older than the retention window.
func (h *PipelineHandler) Purge(c *gin.Context) {
	deleted, err := h.eventService.PurgeTerminal(h.eventRetention)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
