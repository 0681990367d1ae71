package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// GoalType identifies what a goal measures.
type GoalType string

const (
	GoalEmergencyFundMonths  GoalType = "emergency_fund_months"
	GoalMinDSCR              GoalType = "min_dscr"
	GoalMinSavingsRate       GoalType = "min_savings_rate"
	GoalNetWorthTargetByDate GoalType = "net_worth_target_by_date"
	GoalRetirementAge        GoalType = "retirement_age"
)

// ValidGoalType reports whether t is a known goal type.
func ValidGoalType(t GoalType) bool {
	switch t {
	case GoalEmergencyFundMonths, GoalMinDSCR, GoalMinSavingsRate,
		GoalNetWorthTargetByDate, GoalRetirementAge:
		return true
	}
	return false
}

// GoalStatus is the evaluator's classification of a goal.
type GoalStatus string

const (
	GoalStatusAchieved GoalStatus = "achieved"
	GoalStatusOnTrack  GoalStatus = "on_track"
	GoalStatusWarning  GoalStatus = "warning"
	GoalStatusCritical GoalStatus = "critical"
	// GoalStatusUnknown marks goals that cannot be evaluated from the data
	// at hand (unresolved birthdate, no projections). Not an error.
	GoalStatusUnknown GoalStatus = "unknown"
)

// GoalMetadata is the typed free-form metadata per goal type. Only the
// fields relevant to the goal's type are consulted.
type GoalMetadata struct {
	// retirement_age: the age at which the primary member plans to retire.
	RetirementAge int `json:"retirement_age,omitempty"`
}

// Goal is a household target with cached evaluation results. CurrentValue,
// CurrentStatus, and LastEvaluatedAt are written only by the goal evaluator.
type Goal struct {
	Base
	HouseholdID string          `gorm:"not null;index" json:"household_id"`
	GoalType    GoalType        `gorm:"not null" json:"goal_type"`
	Name        string          `gorm:"not null" json:"name"`
	TargetValue decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"target_value"`
	Unit        string          `json:"unit"`
	TargetDate  *time.Time      `json:"target_date,omitempty"`
	Metadata    string          `gorm:"not null;default:'{}'" json:"metadata"`

	// At most one active primary goal per household.
	IsPrimary bool `gorm:"default:false" json:"is_primary"`
	IsActive  bool `gorm:"default:true;index" json:"is_active"`

	CurrentValue    *decimal.Decimal `gorm:"type:decimal(18,2)" json:"current_value,omitempty"`
	CurrentStatus   GoalStatus       `gorm:"default:'unknown'" json:"current_status"`
	StatusDetail    string           `json:"status_detail,omitempty"`
	LastEvaluatedAt *time.Time       `json:"last_evaluated_at,omitempty"`
}

// DecodeMetadata parses the goal's typed metadata document.
func (g *Goal) DecodeMetadata() (GoalMetadata, error) {
	var meta GoalMetadata
	if g.Metadata == "" {
		return meta, nil
	}
	err := json.Unmarshal([]byte(g.Metadata), &meta)
	return meta, err
}

// InterventionKind is a class of adjustment the goal solver may employ.
type InterventionKind string

const (
	InterventionReduceExpenses   InterventionKind = "reduce_expenses"
	InterventionIncreaseIncome   InterventionKind = "increase_income"
	InterventionPayoffDebt       InterventionKind = "payoff_debt"
	InterventionRefinance        InterventionKind = "refinance"
	InterventionContributionRate InterventionKind = "contribution_rate"
)

// ValidInterventionKind reports whether k is a known intervention kind.
func ValidInterventionKind(k InterventionKind) bool {
	switch k {
	case InterventionReduceExpenses, InterventionIncreaseIncome,
		InterventionPayoffDebt, InterventionRefinance, InterventionContributionRate:
		return true
	}
	return false
}

// GoalSolution is the computed artifact of a solver run: the options used,
// the resulting ordered plan, a result summary, and a success flag.
// Non-convergence is a normal result with Success=false.
type GoalSolution struct {
	Base
	GoalID      string `gorm:"not null;index" json:"goal_id"`
	HouseholdID string `gorm:"not null;index" json:"household_id"`

	OptionsJSON string `gorm:"not null;default:'{}'" json:"options"`
	PlanJSON    string `gorm:"not null;default:'[]'" json:"plan"`

	BaselineValue   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"baseline_value"`
	FinalValue      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"final_value"`
	WorstMonthValue decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"worst_month_value"`

	Success      bool    `gorm:"not null" json:"success"`
	ErrorMessage string  `json:"error_message,omitempty"`
	ScenarioID   *string `gorm:"type:uuid" json:"scenario_id,omitempty"`
}
