package services

import (
	"time"

	"gorm.io/gorm"

	apperrors "horizon/internal/errors"
	"horizon/internal/models"
	"horizon/internal/uuid"
)

// eventService is the durable reality-change event queue.
type eventService struct {
	db *gorm.DB
}

// NewEventService creates a new EventServicer.
func NewEventService(db *gorm.DB) EventServicer {
	return &eventService{db: db}
}

// Emit appends a pending event for the household. Fire-and-forget from the
// caller's perspective; the batch processor consumes it later.
func (s *eventService) Emit(householdID string, eventType models.EventType, payload string) (*models.RealityChangeEvent, error) {
	if householdID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "household_id is required")
	}
	if !models.ValidEventType(eventType) {
		return nil, apperrors.ErrInvalidEventType
	}
	if payload == "" {
		payload = "{}"
	}

	event := &models.RealityChangeEvent{
		HouseholdID: householdID,
		EventType:   eventType,
		Payload:     payload,
		Status:      models.EventStatusPending,
	}
	if err := s.db.Create(event).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return event, nil
}

// ClaimPending stamps a fresh claim id onto up to batchSize unclaimed
// pending events in one statement, then returns them ordered by creation
// time. The single-statement update makes the claim atomic: two concurrent
// drains never receive the same event.
func (s *eventService) ClaimPending(batchSize int) ([]models.RealityChangeEvent, error) {
	if batchSize <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "batch size must be positive")
	}

	claimID := uuid.New()
	now := time.Now()

	res := s.db.Exec(`
		UPDATE reality_change_events SET claim_id = ?, claimed_at = ?
		WHERE id IN (
			SELECT id FROM reality_change_events
			WHERE status = ? AND claim_id IS NULL AND deleted_at IS NULL
			ORDER BY created_at
			LIMIT ?
		)`, claimID, now, models.EventStatusPending, batchSize)
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var events []models.RealityChangeEvent
	if err := s.db.Where("claim_id = ?", claimID).
		Order("created_at").
		Find(&events).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return events, nil
}

// MarkProcessed transitions pending events to processed. Already-terminal
// events are left as they are; transitions are strictly one-way.
func (s *eventService) MarkProcessed(ids []string) error {
	return s.markTerminal(ids, models.EventStatusProcessed, "")
}

// MarkFailed transitions pending events to failed, recording the message.
func (s *eventService) MarkFailed(ids []string, message string) error {
	return s.markTerminal(ids, models.EventStatusFailed, message)
}

func (s *eventService) markTerminal(ids []string, status models.EventStatus, message string) error {
	if len(ids) == 0 {
		return nil
	}

	updates := map[string]interface{}{
		"status":       status,
		"processed_at": time.Now(),
	}
	if message != "" {
		updates["error_message"] = message
	}

	if err := s.db.Model(&models.RealityChangeEvent{}).
		Where("id IN ? AND status = ?", ids, models.EventStatusPending).
		Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// PurgeTerminal hard-deletes processed and failed events whose terminal
// timestamp has aged past the retention window. Pending events are never
// purged regardless of age.
func (s *eventService) PurgeTerminal(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	res := s.db.Unscoped().
		Where("status IN ? AND processed_at < ?",
			[]models.EventStatus{models.EventStatusProcessed, models.EventStatusFailed}, cutoff).
		Delete(&models.RealityChangeEvent{})
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected, nil
}
