package models

import "time"

// Household is the unit of ownership and of refresh: every account, flow,
// scenario, goal, and reality change event belongs to exactly one household,
// and the batch processor refreshes one household at a time.
type Household struct {
	Base
	Name string `gorm:"not null" json:"name"`

	// Relationships
	Members   []HouseholdMember `gorm:"foreignKey:HouseholdID" json:"members,omitempty"`
	Accounts  []Account         `gorm:"foreignKey:HouseholdID" json:"accounts,omitempty"`
	Flows     []RecurringFlow   `gorm:"foreignKey:HouseholdID" json:"flows,omitempty"`
	Scenarios []Scenario        `gorm:"foreignKey:HouseholdID" json:"scenarios,omitempty"`
	Goals     []Goal            `gorm:"foreignKey:HouseholdID" json:"goals,omitempty"`
}

// HouseholdMember is a person in the household. The primary member's
// birthdate drives age-based goal evaluation; when it is missing the linked
// user profile's birthdate is the fallback.
type HouseholdMember struct {
	Base
	HouseholdID string     `gorm:"not null;index" json:"household_id"`
	Name        string     `gorm:"not null" json:"name"`
	IsPrimary   bool       `gorm:"default:false" json:"is_primary"`
	Birthdate   *time.Time `json:"birthdate,omitempty"`
	UserID      *string    `gorm:"type:uuid" json:"user_id,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// AgeAt returns the member's age in whole years at the given date, resolving
// the birthdate through the member record first and the linked user profile
// second. The boolean is false when neither source has a birthdate.
func (m *HouseholdMember) AgeAt(at time.Time) (int, bool) {
	birthdate := m.Birthdate
	if birthdate == nil && m.User != nil {
		birthdate = m.User.Birthdate
	}
	if birthdate == nil {
		return 0, false
	}

	age := at.Year() - birthdate.Year()
	anniversary := time.Date(at.Year(), birthdate.Month(), birthdate.Day(), 0, 0, 0, 0, time.UTC)
	if at.Before(anniversary) {
		age--
	}
	return age, true
}
