package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "horizon/internal/errors"
	"horizon/internal/logger"
	"horizon/internal/models"
)

// Classification thresholds: the tested value as a proportion of target.
var (
	onTrackThreshold = decimal.RequireFromString("0.90")
	warningThreshold = decimal.RequireFromString("0.70")
)

// goalService evaluates goals against the latest projections and caches the
// result on the goal row.
type goalService struct {
	db *gorm.DB
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB) GoalServicer {
	return &goalService{db: db}
}

// metricRow is the projection slice the evaluator consumes. It exists so the
// same classification code runs against persisted projection rows and
// against in-memory simulator output during solver trials.
type metricRow struct {
	MonthNumber      int
	MonthDate        time.Time
	NetWorth         decimal.Decimal
	DSCR             decimal.Decimal
	SavingsRate      decimal.Decimal
	LiquidityMonths  decimal.Decimal
	RetirementAssets decimal.Decimal
}

func metricRowFromProjection(p *models.ScenarioProjection) metricRow {
	return metricRow{
		MonthNumber:      p.MonthNumber,
		MonthDate:        p.MonthDate,
		NetWorth:         p.NetWorth,
		DSCR:             p.DSCR,
		SavingsRate:      p.SavingsRate,
		LiquidityMonths:  p.LiquidityMonths,
		RetirementAssets: p.RetirementAssets,
	}
}

func metricRowFromSim(m *simMonth) metricRow {
	return metricRow{
		MonthNumber:      m.MonthNumber,
		MonthDate:        m.MonthDate,
		NetWorth:         m.NetWorth,
		DSCR:             m.DSCR,
		SavingsRate:      m.SavingsRate,
		LiquidityMonths:  m.LiquidityMonths,
		RetirementAssets: m.RetirementAssets,
	}
}

// goalEvaluation is one goal's computed standing.
type goalEvaluation struct {
	Value    decimal.Decimal
	Worst    decimal.Decimal
	Status   models.GoalStatus
	Detail   string
	Resolved bool
}

// EvaluateHousehold evaluates every active goal of the household against the
// live baseline's projections, writing back cached results.
func (s *goalService) EvaluateHousehold(householdID string) ([]models.Goal, error) {
	var goals []models.Goal
	if err := s.db.Where("household_id = ? AND is_active = ?", householdID, true).
		Order("created_at").
		Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(goals) == 0 {
		return goals, nil
	}

	rows, err := s.baselineRows(householdID)
	if err != nil {
		return nil, err
	}
	age, ageResolved := resolvePrimaryAge(s.db, householdID)

	for i := range goals {
		if err := s.evaluateAndStore(&goals[i], rows, age, ageResolved); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

// EvaluateGoal evaluates a single goal.
func (s *goalService) EvaluateGoal(goalID string) (*models.Goal, error) {
	var goal models.Goal
	if err := s.db.First(&goal, "id = ?", goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rows, err := s.baselineRows(goal.HouseholdID)
	if err != nil {
		return nil, err
	}
	age, ageResolved := resolvePrimaryAge(s.db, goal.HouseholdID)

	if err := s.evaluateAndStore(&goal, rows, age, ageResolved); err != nil {
		return nil, err
	}
	return &goal, nil
}

func (s *goalService) evaluateAndStore(goal *models.Goal, rows []metricRow, age int, ageResolved bool) error {
	if !models.ValidGoalType(goal.GoalType) {
		return apperrors.ErrInvalidGoalType
	}
	meta, err := goal.DecodeMetadata()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	eval := evaluateGoal(goal, meta, rows, age, ageResolved)

	now := time.Now()
	updates := map[string]interface{}{
		"current_status":    eval.Status,
		"status_detail":     eval.Detail,
		"last_evaluated_at": now,
	}
	if eval.Resolved {
		updates["current_value"] = eval.Value
	} else {
		updates["current_value"] = nil
	}
	if err := s.db.Model(goal).Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	goal.CurrentStatus = eval.Status
	goal.StatusDetail = eval.Detail
	goal.LastEvaluatedAt = &now
	if eval.Resolved {
		v := eval.Value
		goal.CurrentValue = &v
	} else {
		goal.CurrentValue = nil
	}

	logger.Get().Debugw("evaluated goal",
		"goal_id", goal.ID,
		"goal_type", goal.GoalType,
		"status", eval.Status,
	)
	return nil
}

// baselineRows loads the live baseline's projection rows as metric rows.
// A missing baseline or empty projection set is not an error here: goals
// evaluate to unknown until the first refresh lands.
func (s *goalService) baselineRows(householdID string) ([]metricRow, error) {
	var scenario models.Scenario
	err := s.db.Where("household_id = ? AND is_baseline = ?", householdID, true).
		First(&scenario).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var projections []models.ScenarioProjection
	if err := s.db.Where("scenario_id = ?", scenario.ID).
		Order("month_number").
		Find(&projections).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rows := make([]metricRow, len(projections))
	for i := range projections {
		rows[i] = metricRowFromProjection(&projections[i])
	}
	return rows, nil
}

// resolvePrimaryAge resolves the primary member's current age through the
// fallback chain: the member's own birthdate first, then the linked user
// profile's. The boolean is false when neither is set. The solver shares
// this resolution for retirement goals.
func resolvePrimaryAge(db *gorm.DB, householdID string) (int, bool) {
	var member models.HouseholdMember
	err := db.Preload("User").
		Where("household_id = ? AND is_primary = ?", householdID, true).
		First(&member).Error
	if err != nil {
		return 0, false
	}
	return member.AgeAt(time.Now())
}

// evaluateGoal classifies a goal against projection rows. It is pure: the
// solver calls it directly on simulator output during trials.
func evaluateGoal(goal *models.Goal, meta models.GoalMetadata, rows []metricRow, age int, ageResolved bool) goalEvaluation {
	if len(rows) == 0 {
		return goalEvaluation{Status: models.GoalStatusUnknown, Detail: "no projections available"}
	}

	var value, worst decimal.Decimal
	switch goal.GoalType {
	case models.GoalEmergencyFundMonths, models.GoalMinDSCR, models.GoalMinSavingsRate:
		series := minimumSeries(goal.GoalType, rows)
		value = series[0]
		worst = series[0]
		for _, v := range series[1:] {
			if v.LessThan(worst) {
				worst = v
			}
		}

	case models.GoalNetWorthTargetByDate:
		// Row matching the target date, or the last row when the horizon is
		// shorter. The short-horizon case deserves a horizon extension; the
		// evaluator reports against what exists rather than guessing.
		row := rows[len(rows)-1]
		if goal.TargetDate != nil {
			for i := range rows {
				if !rows[i].MonthDate.Before(*goal.TargetDate) {
					row = rows[i]
					break
				}
			}
		}
		value = row.NetWorth
		worst = value

	case models.GoalRetirementAge:
		if !ageResolved {
			return goalEvaluation{Status: models.GoalStatusUnknown, Detail: "birthdate not set"}
		}
		if meta.RetirementAge <= 0 {
			return goalEvaluation{Status: models.GoalStatusUnknown, Detail: "retirement_age metadata not set"}
		}
		monthsOut := (meta.RetirementAge - age) * 12
		idx := monthsOut - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		value = rows[idx].RetirementAssets
		worst = value
	}

	status := classify(worst, goal.TargetValue)
	return goalEvaluation{Value: value, Worst: worst, Status: status, Resolved: true}
}

// minimumSeries extracts the per-month metric for minimum-type goals.
func minimumSeries(goalType models.GoalType, rows []metricRow) []decimal.Decimal {
	series := make([]decimal.Decimal, len(rows))
	for i := range rows {
		switch goalType {
		case models.GoalEmergencyFundMonths:
			series[i] = rows[i].LiquidityMonths
		case models.GoalMinDSCR:
			series[i] = rows[i].DSCR
		case models.GoalMinSavingsRate:
			series[i] = rows[i].SavingsRate
		}
	}
	return series
}

// classify assigns a status from the tested worst-case value, using
// proportional distance-to-target thresholds. A goal is achieved only when
// the worst month clears the target, so a strong first month cannot mask a
// later dip.
func classify(worst, target decimal.Decimal) models.GoalStatus {
	if target.Sign() <= 0 {
		return models.GoalStatusAchieved
	}
	if worst.GreaterThanOrEqual(target) {
		return models.GoalStatusAchieved
	}

	ratio := worst.Div(target)
	switch {
	case ratio.GreaterThanOrEqual(onTrackThreshold):
		return models.GoalStatusOnTrack
	case ratio.GreaterThanOrEqual(warningThreshold):
		return models.GoalStatusWarning
	default:
		return models.GoalStatusCritical
	}
}
