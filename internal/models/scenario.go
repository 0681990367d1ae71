package models

import "time"

// BaselineMode distinguishes a continuously-recomputed baseline from one
// frozen at a point in time.
type BaselineMode string

const (
	BaselineModeLive   BaselineMode = "live"
	BaselineModePinned BaselineMode = "pinned"
)

// Scenario is a named simulation context: a horizon, three annual rates, and
// an ordered set of dated changes. At most one scenario per household is the
// baseline. A live baseline is recomputed on every refresh; a pinned
// baseline is never recomputed once pinned and is excluded from the batch
// processor's refresh target set.
type Scenario struct {
	Base
	HouseholdID string `gorm:"not null;index" json:"household_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	IsBaseline             bool         `gorm:"default:false;index" json:"is_baseline"`
	BaselineMode           BaselineMode `gorm:"default:'live'" json:"baseline_mode"`
	BaselinePinnedAt       *time.Time   `json:"baseline_pinned_at,omitempty"`
	BaselinePinnedAsOfDate *time.Time   `json:"baseline_pinned_as_of_date,omitempty"`

	StartDate        time.Time `gorm:"not null" json:"start_date"`
	ProjectionMonths int       `gorm:"not null;default:120" json:"projection_months"`

	// Annual rates as decimal fractions.
	InflationRate        float64 `gorm:"not null;default:0" json:"inflation_rate"`
	InvestmentReturnRate float64 `gorm:"not null;default:0" json:"investment_return_rate"`
	SalaryGrowthRate     float64 `gorm:"not null;default:0" json:"salary_growth_rate"`

	// Generation increments on every recompute and is stamped onto each
	// projection row, so readers can detect a half-written row set.
	Generation int64 `gorm:"not null;default:0" json:"generation"`

	// Relationships
	Changes     []ScenarioChange     `gorm:"foreignKey:ScenarioID" json:"changes,omitempty"`
	Projections []ScenarioProjection `gorm:"foreignKey:ScenarioID" json:"projections,omitempty"`
}

// IsPinned reports whether the scenario is a pinned baseline.
func (s *Scenario) IsPinned() bool {
	return s.IsBaseline && s.BaselineMode == BaselineModePinned
}
