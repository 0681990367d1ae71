package models

import "time"

// User is a slim profile record. Authentication and sessions are handled by
// an upstream collaborator; the core reads the profile only for the
// birthdate fallback during goal evaluation.
type User struct {
	Base
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
}
