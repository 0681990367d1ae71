package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "horizon/internal/errors"
	"horizon/internal/models"
	"horizon/internal/services"
)

// EventHandler handles reality change event requests.
type EventHandler struct {
	eventService services.EventServicer
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(eventService services.EventServicer) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// EmitEventRequest represents the request payload for emitting an event.
type EmitEventRequest struct {
	HouseholdID string           `json:"household_id" binding:"required,uuid"`
	EventType   models.EventType `json:"event_type" binding:"required,event_type"`
	Payload     string           `json:"payload"`
}

// EmitEvent appends a pending reality change event for later batch
// processing. The response is 202: the refresh happens on the next drain,
// not inline.
func (h *EventHandler) EmitEvent(c *gin.Context) {
	var req EmitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if req.Payload == "" {
		req.Payload = "{}"
	}

	event, err := h.eventService.Emit(req.HouseholdID, req.EventType, req.Payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"event": event})
}
