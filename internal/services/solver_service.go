package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "horizon/internal/errors"
	"horizon/internal/logger"
	"horizon/internal/models"
)

// interventionPriority is the order in which the solver tries intervention
// kinds: cheapest to enact first, structural debt moves before long-term
// allocation shifts.
var interventionPriority = []models.InterventionKind{
	models.InterventionReduceExpenses,
	models.InterventionIncreaseIncome,
	models.InterventionPayoffDebt,
	models.InterventionRefinance,
	models.InterventionContributionRate,
}

// Default magnitude bounds, used when the caller supplies none for a kind.
// Scalar kinds search within (0, bound]; payoff_debt is all-or-nothing.
var (
	defaultIncomeBound       = decimal.NewFromInt(3000)  // extra monthly income
	defaultRefinanceBound    = decimal.RequireFromString("0.03") // rate reduction
	defaultContributionBound = decimal.RequireFromString("0.30")
)

// planStep is one entry of a solution plan, carrying enough to materialize
// the step as a scenario change later.
type planStep struct {
	Kind          models.InterventionKind `json:"kind"`
	Magnitude     decimal.Decimal         `json:"magnitude"`
	Description   string                  `json:"description"`
	ChangeType    models.ChangeType       `json:"change_type"`
	Params        json.RawMessage         `json:"params"`
	EffectiveDate time.Time               `json:"effective_date"`
}

// solverService searches for the smallest intervention plan that brings a
// goal to achieved, simulating each trial against a snapshot of the
// household's baseline inputs.
type solverService struct {
	db            *gorm.DB
	projections   ProjectionServicer
	maxIterations int
}

// NewSolverService creates a new SolverServicer. maxIterations bounds the
// binary search per intervention kind.
func NewSolverService(db *gorm.DB, projections ProjectionServicer, maxIterations int) SolverServicer {
	if maxIterations <= 0 {
		maxIterations = 24
	}
	return &solverService{db: db, projections: projections, maxIterations: maxIterations}
}

func (s *solverService) Solve(goalID string, opts SolveOptions) (*models.GoalSolution, error) {
	var goal models.Goal
	if err := s.db.First(&goal, "id = ?", goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !models.ValidGoalType(goal.GoalType) {
		return nil, apperrors.ErrInvalidGoalType
	}
	meta, err := goal.DecodeMetadata()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	allowed := opts.AllowedInterventions
	if len(allowed) == 0 {
		allowed = interventionPriority
	}
	allowedSet := make(map[models.InterventionKind]bool, len(allowed))
	for _, k := range allowed {
		if !models.ValidInterventionKind(k) {
			return nil, apperrors.ErrInvalidIntervention
		}
		allowedSet[k] = true
	}
	for k := range opts.Bounds {
		if !models.ValidInterventionKind(k) {
			return nil, apperrors.ErrInvalidIntervention
		}
	}

	var baseline models.Scenario
	err = s.db.Where("household_id = ? AND is_baseline = ?", goal.HouseholdID, true).
		First(&baseline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNoBaseline
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// One snapshot of the baseline's inputs serves every trial: the solve is
	// deterministic regardless of writes landing mid-search.
	input, err := loadSimulationInput(s.db, &baseline)
	if err != nil {
		return nil, err
	}
	if opts.StartDate != nil {
		input.StartDate = *opts.StartDate
	}
	if opts.ProjectionMonths > 0 {
		input.Months = opts.ProjectionMonths
	}

	age, ageResolved := resolvePrimaryAge(s.db, goal.HouseholdID)

	baseEval, err := trialEvaluate(&goal, meta, *input, nil, age, ageResolved)
	if err != nil {
		return nil, err
	}
	if baseEval.Status == models.GoalStatusUnknown {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, baseEval.Detail)
	}

	plan, finalEval, err := s.search(&goal, meta, *input, baseEval, allowedSet, opts.Bounds, age, ageResolved)
	if err != nil {
		return nil, err
	}

	solution := &models.GoalSolution{
		GoalID:          goal.ID,
		HouseholdID:     goal.HouseholdID,
		BaselineValue:   baseEval.Value,
		FinalValue:      finalEval.Value,
		WorstMonthValue: finalEval.Worst,
		Success:         finalEval.Status == models.GoalStatusAchieved,
	}
	if !solution.Success {
		solution.ErrorMessage = "no combination of allowed interventions reaches the target within bounds"
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	solution.OptionsJSON = string(optsJSON)
	solution.PlanJSON = string(planJSON)

	if err := s.db.Create(solution).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("goal solve finished",
		"goal_id", goal.ID,
		"success", solution.Success,
		"steps", len(plan),
		"baseline_value", solution.BaselineValue,
		"final_value", solution.FinalValue,
	)
	return solution, nil
}

// search runs the greedy pass over intervention kinds in priority order. A
// kind that does not improve the tested value is skipped; the first kind
// whose full bound achieves the goal is binary-searched down to the smallest
// sufficient magnitude and the search stops.
func (s *solverService) search(
	goal *models.Goal,
	meta models.GoalMetadata,
	input simulationInput,
	baseEval goalEvaluation,
	allowed map[models.InterventionKind]bool,
	bounds map[models.InterventionKind]decimal.Decimal,
	age int,
	ageResolved bool,
) ([]planStep, goalEvaluation, error) {
	plan := []planStep{}
	extra := []simChange{}
	cur := baseEval

	if cur.Status == models.GoalStatusAchieved {
		return plan, cur, nil
	}

	for _, kind := range interventionPriority {
		if !allowed[kind] {
			continue
		}
		bound := s.boundFor(kind, bounds, input)
		if bound.Sign() <= 0 {
			continue
		}

		step, change, ok := buildIntervention(kind, bound, input)
		if !ok {
			continue
		}

		trial, err := trialEvaluate(goal, meta, input, append(extra[:len(extra):len(extra)], change), age, ageResolved)
		if err != nil {
			return nil, goalEvaluation{}, err
		}
		if !tested(trial).GreaterThan(tested(cur)) {
			continue
		}

		if trial.Status == models.GoalStatusAchieved && scalarKind(kind) {
			magnitude, minEval, err := s.minimize(goal, meta, input, extra, kind, bound, age, ageResolved)
			if err != nil {
				return nil, goalEvaluation{}, err
			}
			step, _, _ = buildIntervention(kind, magnitude, input)
			plan = append(plan, step)
			return plan, minEval, nil
		}

		extra = append(extra, change)
		plan = append(plan, step)
		cur = trial
		if cur.Status == models.GoalStatusAchieved {
			return plan, cur, nil
		}
	}

	return plan, cur, nil
}

// minimize binary-searches the smallest magnitude of a scalar kind that
// still achieves the goal on top of the already-accepted steps.
func (s *solverService) minimize(
	goal *models.Goal,
	meta models.GoalMetadata,
	input simulationInput,
	extra []simChange,
	kind models.InterventionKind,
	bound decimal.Decimal,
	age int,
	ageResolved bool,
) (decimal.Decimal, goalEvaluation, error) {
	lo := decimal.Zero
	hi := bound
	_, hiChange, _ := buildIntervention(kind, hi, input)
	hiEval, err := trialEvaluate(goal, meta, input, append(extra[:len(extra):len(extra)], hiChange), age, ageResolved)
	if err != nil {
		return decimal.Decimal{}, goalEvaluation{}, err
	}

	two := decimal.NewFromInt(2)
	for i := 0; i < s.maxIterations; i++ {
		mid := lo.Add(hi).Div(two)
		_, change, ok := buildIntervention(kind, mid, input)
		if !ok {
			break
		}
		eval, err := trialEvaluate(goal, meta, input, append(extra[:len(extra):len(extra)], change), age, ageResolved)
		if err != nil {
			return decimal.Decimal{}, goalEvaluation{}, err
		}
		if eval.Status == models.GoalStatusAchieved {
			hi, hiEval = mid, eval
		} else {
			lo = mid
		}
	}
	return roundMagnitude(kind, hi), hiEval, nil
}

// boundFor resolves the search bound for a kind, from caller options or the
// defaults. Expense cuts are capped at the largest non-essential category so
// a trial never drives an expense negative.
func (s *solverService) boundFor(kind models.InterventionKind, bounds map[models.InterventionKind]decimal.Decimal, input simulationInput) decimal.Decimal {
	if b, ok := bounds[kind]; ok && b.Sign() > 0 {
		if kind == models.InterventionReduceExpenses {
			// Never cut more than the largest non-essential category holds.
			_, limit := largestFlow(input, models.FlowDirectionExpense, true)
			if b.GreaterThan(limit) {
				return limit
			}
		}
		return b
	}

	switch kind {
	case models.InterventionReduceExpenses:
		_, amount := largestFlow(input, models.FlowDirectionExpense, true)
		return amount
	case models.InterventionIncreaseIncome:
		return defaultIncomeBound
	case models.InterventionPayoffDebt:
		_, balance, _, _ := highestRateLiability(input)
		return balance
	case models.InterventionRefinance:
		return defaultRefinanceBound
	case models.InterventionContributionRate:
		return defaultContributionBound
	}
	return decimal.Zero
}

// buildIntervention turns a kind and magnitude into a concrete change
// relative to the input's state. ok is false when the household has nothing
// the kind can act on.
func buildIntervention(kind models.InterventionKind, magnitude decimal.Decimal, input simulationInput) (planStep, simChange, bool) {
	effective := input.StartDate
	step := planStep{Kind: kind, Magnitude: roundMagnitude(kind, magnitude), EffectiveDate: effective}

	switch kind {
	case models.InterventionReduceExpenses:
		category, amount := largestFlow(input, models.FlowDirectionExpense, true)
		if category == "" || amount.Sign() <= 0 {
			return planStep{}, simChange{}, false
		}
		params := models.FlowChangeParams{
			Category:   category,
			Amount:     step.Magnitude.Neg(),
			Adjustment: models.AdjustmentDelta,
		}
		step.ChangeType = models.ChangeExpenseModify
		step.Params = mustMarshal(params)
		step.Description = fmt.Sprintf("reduce %s spending by %s per month", category, step.Magnitude.StringFixed(2))
		return step, simChange{Type: step.ChangeType, Params: params, EffectiveDate: effective}, true

	case models.InterventionIncreaseIncome:
		category, _ := largestFlow(input, models.FlowDirectionIncome, false)
		if category == "" {
			category = "additional_income"
		}
		params := models.FlowChangeParams{
			Category:   category,
			Amount:     step.Magnitude,
			Adjustment: models.AdjustmentDelta,
		}
		step.ChangeType = models.ChangeIncomeModify
		step.Params = mustMarshal(params)
		step.Description = fmt.Sprintf("raise %s by %s per month", category, step.Magnitude.StringFixed(2))
		return step, simChange{Type: step.ChangeType, Params: params, EffectiveDate: effective}, true

	case models.InterventionPayoffDebt:
		accountID, balance, _, _ := highestRateLiability(input)
		if accountID == "" {
			return planStep{}, simChange{}, false
		}
		params := models.PayoffParams{AccountID: accountID}
		step.Magnitude = balance
		step.ChangeType = models.ChangeDebtPayoff
		step.Params = mustMarshal(params)
		step.Description = fmt.Sprintf("pay off liability %s (%s outstanding)", accountID, balance.StringFixed(2))
		return step, simChange{Type: step.ChangeType, Params: params, EffectiveDate: effective}, true

	case models.InterventionRefinance:
		accountID, _, rate, term := highestRateLiability(input)
		if accountID == "" {
			return planStep{}, simChange{}, false
		}
		reduction, _ := step.Magnitude.Float64()
		newRate := rate - reduction
		if newRate < 0 {
			newRate = 0
		}
		if term <= 0 {
			term = 360
		}
		params := models.RefinanceParams{AccountID: accountID, NewRate: newRate, NewTermMonths: term}
		step.ChangeType = models.ChangeRefinance
		step.Params = mustMarshal(params)
		step.Description = fmt.Sprintf("refinance liability %s to %.4f over %d months", accountID, newRate, term)
		return step, simChange{Type: step.ChangeType, Params: params, EffectiveDate: effective}, true

	case models.InterventionContributionRate:
		rate, _ := step.Magnitude.Float64()
		if rate <= 0 || rate > 1 {
			return planStep{}, simChange{}, false
		}
		params := models.ContributionRateParams{Rate: rate}
		step.ChangeType = models.ChangeContributionRate
		step.Params = mustMarshal(params)
		step.Description = fmt.Sprintf("contribute %.1f%% of income to retirement", rate*100)
		return step, simChange{Type: step.ChangeType, Params: params, EffectiveDate: effective}, true
	}
	return planStep{}, simChange{}, false
}

// trialEvaluate simulates the input plus extra changes and classifies the
// goal against the result. Pure aside from the copy of the change slice.
func trialEvaluate(goal *models.Goal, meta models.GoalMetadata, input simulationInput, extra []simChange, age int, ageResolved bool) (goalEvaluation, error) {
	if len(extra) > 0 {
		merged := make([]simChange, 0, len(input.Changes)+len(extra))
		merged = append(merged, input.Changes...)
		merged = append(merged, extra...)
		input.Changes = merged
	}
	months, err := simulate(input)
	if err != nil {
		return goalEvaluation{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	rows := make([]metricRow, len(months))
	for i := range months {
		rows[i] = metricRowFromSim(&months[i])
	}
	return evaluateGoal(goal, meta, rows, age, ageResolved), nil
}

// tested is the value a trial is judged on: worst month for minimum-type
// goals, point-in-time value otherwise.
func tested(e goalEvaluation) decimal.Decimal {
	return e.Worst
}

func scalarKind(kind models.InterventionKind) bool {
	return kind != models.InterventionPayoffDebt
}

func roundMagnitude(kind models.InterventionKind, m decimal.Decimal) decimal.Decimal {
	switch kind {
	case models.InterventionRefinance, models.InterventionContributionRate:
		return m.Round(4)
	default:
		return m.Round(2)
	}
}

// largestFlow returns the category with the largest monthly amount in the
// given direction, optionally restricted to non-essential flows.
func largestFlow(input simulationInput, direction models.FlowDirection, nonEssentialOnly bool) (string, decimal.Decimal) {
	totals := make(map[string]decimal.Decimal)
	for _, f := range input.Flows {
		if f.Direction != direction || f.AccountID != "" {
			continue
		}
		if nonEssentialOnly && f.IsEssential {
			continue
		}
		totals[f.Category] = totals[f.Category].Add(f.Monthly)
	}
	best, bestAmount := "", decimal.Zero
	for category, amount := range totals {
		if amount.GreaterThan(bestAmount) || (amount.Equal(bestAmount) && best != "" && category < best) {
			best, bestAmount = category, amount
		}
	}
	return best, bestAmount
}

// highestRateLiability returns the open liability with the highest interest
// rate, with ties broken by larger balance.
func highestRateLiability(input simulationInput) (string, decimal.Decimal, float64, int) {
	id, balance, rate, term := "", decimal.Zero, 0.0, 0
	for _, a := range input.Accounts {
		if !a.Type.IsLiabilityType() || a.Balance.Sign() <= 0 {
			continue
		}
		if id == "" || a.InterestRate > rate || (a.InterestRate == rate && a.Balance.GreaterThan(balance)) {
			id, balance, rate, term = a.ID, a.Balance, a.InterestRate, a.TermMonths
		}
	}
	return id, balance, rate, term
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// MaterializeSolution writes a successful solution's plan as a new scenario
// with one change per step, linking the scenario back to the solution.
func (s *solverService) MaterializeSolution(solutionID string) (*models.Scenario, error) {
	var solution models.GoalSolution
	if err := s.db.First(&solution, "id = ?", solutionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalSolutionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !solution.Success {
		return nil, apperrors.ErrGoalSolutionUnsolvable
	}

	var goal models.Goal
	if err := s.db.First(&goal, "id = ?", solution.GoalID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var baseline models.Scenario
	err := s.db.Where("household_id = ? AND is_baseline = ?", solution.HouseholdID, true).
		First(&baseline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNoBaseline
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var plan []planStep
	if err := json.Unmarshal([]byte(solution.PlanJSON), &plan); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	scenario := &models.Scenario{
		HouseholdID:          solution.HouseholdID,
		Name:                 fmt.Sprintf("Plan: %s", goal.Name),
		Description:          fmt.Sprintf("Materialized from goal solution %s", solution.ID),
		StartDate:            baseline.StartDate,
		ProjectionMonths:     baseline.ProjectionMonths,
		InflationRate:        baseline.InflationRate,
		InvestmentReturnRate: baseline.InvestmentReturnRate,
		SalaryGrowthRate:     baseline.SalaryGrowthRate,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(scenario).Error; err != nil {
			return err
		}
		for i, step := range plan {
			change := models.ScenarioChange{
				ScenarioID:    scenario.ID,
				ChangeType:    step.ChangeType,
				Params:        string(step.Params),
				EffectiveDate: step.EffectiveDate,
				DisplayOrder:  i,
				IsEnabled:     true,
			}
			if err := tx.Create(&change).Error; err != nil {
				return err
			}
		}
		return tx.Model(&solution).Update("scenario_id", scenario.ID).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.projections.RefreshScenario(scenario.ID); err != nil {
		return nil, err
	}

	logger.Get().Infow("materialized goal solution",
		"solution_id", solution.ID,
		"scenario_id", scenario.ID,
		"steps", len(plan),
	)
	return scenario, nil
}
