package models

import "time"

// EventType is the cause recorded on a reality change event.
type EventType string

const (
	EventAccountsChanged     EventType = "accounts_changed"
	EventFlowsChanged        EventType = "flows_changed"
	EventTaxesChanged        EventType = "taxes_changed"
	EventOnboardingCompleted EventType = "onboarding_completed"
	EventManualRefresh       EventType = "manual_refresh"
)

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventAccountsChanged, EventFlowsChanged, EventTaxesChanged,
		EventOnboardingCompleted, EventManualRefresh:
		return true
	}
	return false
}

// EventStatus is the lifecycle state of a reality change event. Transitions
// are one-way: pending -> processed or pending -> failed.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusProcessed EventStatus = "processed"
	EventStatusFailed    EventStatus = "failed"
)

// RealityChangeEvent is a durable record that household state changed and a
// refresh is owed. Events are appended by mutating collaborators and
// consumed exactly once by the batch processor. ClaimID/ClaimedAt implement
// atomic fetch-and-claim; a claimed event is ineligible for re-claim even
// while its status is still pending.
type RealityChangeEvent struct {
	Base
	HouseholdID  string      `gorm:"not null;index" json:"household_id"`
	EventType    EventType   `gorm:"not null" json:"event_type"`
	Payload      string      `gorm:"not null;default:'{}'" json:"payload"`
	Status       EventStatus `gorm:"not null;default:'pending';index" json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ProcessedAt  *time.Time  `json:"processed_at,omitempty"`

	ClaimID   *string    `gorm:"type:uuid;index" json:"-"`
	ClaimedAt *time.Time `json:"-"`
}
