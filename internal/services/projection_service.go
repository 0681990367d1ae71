package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "horizon/internal/errors"
	"horizon/internal/logger"
	"horizon/internal/models"
	"horizon/internal/pagination"
)

// projectionService loads scenario inputs, runs the pure simulator, and owns
// the projection row lifecycle.
type projectionService struct {
	db *gorm.DB
}

// NewProjectionService creates a new ProjectionServicer.
func NewProjectionService(db *gorm.DB) ProjectionServicer {
	return &projectionService{db: db}
}

// RefreshScenario recomputes and atomically replaces the scenario's full
// projection row set. The scenario generation is bumped and stamped onto
// every new row, so a half-written set is detectable by mixed generations.
func (s *projectionService) RefreshScenario(scenarioID string) error {
	scenario, err := s.getScenario(scenarioID)
	if err != nil {
		return err
	}
	if scenario.IsPinned() {
		return apperrors.ErrBaselinePinned
	}
	return s.recompute(scenario)
}

// RefreshBaseline recomputes the household's live baseline. A pinned
// baseline is excluded from the refresh target set and left untouched; a
// household without a baseline is an error because its metrics would
// silently go stale.
func (s *projectionService) RefreshBaseline(householdID string) error {
	scenario, err := s.getBaseline(householdID)
	if err != nil {
		return err
	}
	if scenario.IsPinned() {
		logger.Get().Debugw("skipping pinned baseline", "scenario_id", scenario.ID)
		return nil
	}
	return s.recompute(scenario)
}

// ExtendHorizon sets a new projection horizon and recomputes the entire row
// set. Recomputing rather than appending keeps growth compounding continuous
// across the old boundary.
func (s *projectionService) ExtendHorizon(scenarioID string, months int) error {
	if months <= 0 {
		return apperrors.ErrInvalidHorizon
	}
	scenario, err := s.getScenario(scenarioID)
	if err != nil {
		return err
	}
	if scenario.IsPinned() {
		return apperrors.ErrBaselinePinned
	}

	scenario.ProjectionMonths = months
	if err := s.db.Model(scenario).Update("projection_months", months).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.recompute(scenario)
}

// PinBaseline freezes the scenario's baseline at the given as-of date. A
// pinned baseline keeps its current rows and is never recomputed.
func (s *projectionService) PinBaseline(scenarioID string, asOf time.Time) (*models.Scenario, error) {
	scenario, err := s.getScenario(scenarioID)
	if err != nil {
		return nil, err
	}
	if !scenario.IsBaseline {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "only a baseline scenario can be pinned")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"baseline_mode":              models.BaselineModePinned,
		"baseline_pinned_at":         now,
		"baseline_pinned_as_of_date": asOf,
	}
	if err := s.db.Model(scenario).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	scenario.BaselineMode = models.BaselineModePinned
	scenario.BaselinePinnedAt = &now
	scenario.BaselinePinnedAsOfDate = &asOf
	return scenario, nil
}

// GetProjections returns the scenario's rows ordered by month number.
func (s *projectionService) GetProjections(scenarioID string, page pagination.PageRequest) (*pagination.PageResponse[models.ScenarioProjection], error) {
	if _, err := s.getScenario(scenarioID); err != nil {
		return nil, err
	}
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.ScenarioProjection{}).Where("scenario_id = ?", scenarioID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rows []models.ScenarioProjection
	if err := base.Order("month_number").Scopes(pagination.Paginate(page)).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rows, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// CurrentMetrics returns the latest row of the household's live baseline,
// the "current metrics" view consumed by reporting.
func (s *projectionService) CurrentMetrics(householdID string) (*models.ScenarioProjection, error) {
	scenario, err := s.getBaseline(householdID)
	if err != nil {
		return nil, err
	}

	var row models.ScenarioProjection
	if err := s.db.Where("scenario_id = ?", scenario.ID).
		Order("month_number DESC").
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "baseline has no projections yet")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &row, nil
}

func (s *projectionService) getScenario(scenarioID string) (*models.Scenario, error) {
	var scenario models.Scenario
	if err := s.db.First(&scenario, "id = ?", scenarioID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrScenarioNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &scenario, nil
}

func (s *projectionService) getBaseline(householdID string) (*models.Scenario, error) {
	var scenario models.Scenario
	if err := s.db.Where("household_id = ? AND is_baseline = ?", householdID, true).
		First(&scenario).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNoBaseline
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &scenario, nil
}

// recompute runs the simulator and swaps in the new row set.
func (s *projectionService) recompute(scenario *models.Scenario) error {
	input, err := loadSimulationInput(s.db, scenario)
	if err != nil {
		return err
	}

	rows, err := simulate(*input)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	generation := scenario.Generation + 1
	projections := make([]models.ScenarioProjection, len(rows))
	for i, r := range rows {
		projections[i] = models.ScenarioProjection{
			ScenarioID:       scenario.ID,
			MonthNumber:      r.MonthNumber,
			MonthDate:        r.MonthDate,
			Generation:       generation,
			TotalAssets:      r.TotalAssets,
			LiquidAssets:     r.LiquidAssets,
			RetirementAssets: r.RetirementAssets,
			TotalLiabilities: r.TotalLiabilities,
			NetWorth:         r.NetWorth,
			TotalIncome:      r.TotalIncome,
			TotalExpenses:    r.TotalExpenses,
			NetCashFlow:      r.NetCashFlow,
			DebtService:      r.DebtService,
			DSCR:             r.DSCR,
			SavingsRate:      r.SavingsRate,
			LiquidityMonths:  r.LiquidityMonths,
			DaysCashOnHand:   r.DaysCashOnHand,
			IncomeBreakdown:  models.EncodeBreakdown(r.IncomeBreakdown),
			ExpenseBreakdown: models.EncodeBreakdown(r.ExpenseBreakdown),
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("scenario_id = ?", scenario.ID).
			Delete(&models.ScenarioProjection{}).Error; err != nil {
			return err
		}
		if len(projections) > 0 {
			if err := tx.CreateInBatches(&projections, 200).Error; err != nil {
				return err
			}
		}
		return tx.Model(scenario).Update("generation", generation).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	scenario.Generation = generation
	return nil
}

// loadSimulationInput assembles the immutable input for one simulation run:
// the scenario's rates and horizon, seeded balances from the latest
// snapshots, active flows normalized to monthly amounts, and decoded
// changes. The solver reuses this loader to snapshot state once per solve.
func loadSimulationInput(db *gorm.DB, scenario *models.Scenario) (*simulationInput, error) {
	var accounts []models.Account
	if err := db.Preload("Snapshots").Preload("LiabilityDetails").
		Where("household_id = ? AND is_active = ?", scenario.HouseholdID, true).
		Order("created_at").
		Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var flows []models.RecurringFlow
	if err := db.Where("household_id = ? AND is_active = ?", scenario.HouseholdID, true).
		Order("created_at").
		Find(&flows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var changes []models.ScenarioChange
	if err := db.Where("scenario_id = ? AND is_enabled = ?", scenario.ID, true).
		Order("effective_date, display_order").
		Find(&changes).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	input := &simulationInput{
		StartDate:            scenario.StartDate,
		Months:               scenario.ProjectionMonths,
		InflationRate:        scenario.InflationRate,
		InvestmentReturnRate: scenario.InvestmentReturnRate,
		SalaryGrowthRate:     scenario.SalaryGrowthRate,
	}

	for i := range accounts {
		a := &accounts[i]
		sim := simAccount{
			ID:      a.ID,
			Type:    a.Type,
			Balance: a.CurrentBalance(),
		}
		if a.IsLiability() && a.LiabilityDetails != nil {
			sim.InterestRate = a.LiabilityDetails.InterestRate
			if a.LiabilityDetails.TermMonths != nil {
				sim.TermMonths = *a.LiabilityDetails.TermMonths
			}
		}
		input.Accounts = append(input.Accounts, sim)
	}

	for i := range flows {
		f := &flows[i]
		sim := simFlow{
			Category:    f.Category,
			Direction:   f.Direction,
			Monthly:     f.MonthlyAmount(),
			IsEssential: f.IsEssential,
		}
		if f.AccountID != nil {
			sim.AccountID = *f.AccountID
		}
		input.Flows = append(input.Flows, sim)
	}

	for i := range changes {
		c := &changes[i]
		params, err := c.DecodeParams()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidChangeParam, err)
		}
		input.Changes = append(input.Changes, simChange{
			Type:          c.ChangeType,
			Params:        params,
			EffectiveDate: c.EffectiveDate,
			EndDate:       c.EndDate,
			DisplayOrder:  c.DisplayOrder,
		})
	}

	return input, nil
}
