package services

import (
	"context"
	"time"

	"horizon/internal/models"
	"horizon/internal/pagination"

	"github.com/shopspring/decimal"
)

// FlowServicer derives recurring payment obligations from liability data.
type FlowServicer interface {
	// RegenerateLiabilityFlows replaces every system-generated liability
	// payment flow for the household with a freshly computed set. Liabilities
	// that cannot be amortized are skipped, not errors.
	RegenerateLiabilityFlows(householdID string) ([]models.RecurringFlow, error)
}

// EventServicer is the durable reality-change event queue.
type EventServicer interface {
	Emit(householdID string, eventType models.EventType, payload string) (*models.RealityChangeEvent, error)
	// ClaimPending atomically claims up to batchSize pending events ordered
	// by creation time. A claimed event is immediately ineligible for
	// re-claim, so concurrent callers never receive the same event.
	ClaimPending(batchSize int) ([]models.RealityChangeEvent, error)
	MarkProcessed(ids []string) error
	MarkFailed(ids []string, message string) error
	// PurgeTerminal deletes processed/failed events older than the retention
	// window. Pending events are never purged.
	PurgeTerminal(olderThan time.Duration) (int64, error)
}

// ProjectionServicer simulates scenarios and serves projection reads.
type ProjectionServicer interface {
	// RefreshScenario recomputes the scenario's full projection row set.
	RefreshScenario(scenarioID string) error
	// RefreshBaseline recomputes the household's live baseline. Pinned
	// baselines are left untouched.
	RefreshBaseline(householdID string) error
	// ExtendHorizon raises the scenario's projection_months and recomputes
	// the entire row set; it never appends to a shorter run.
	ExtendHorizon(scenarioID string, months int) error
	PinBaseline(scenarioID string, asOf time.Time) (*models.Scenario, error)
	GetProjections(scenarioID string, page pagination.PageRequest) (*pagination.PageResponse[models.ScenarioProjection], error)
	// CurrentMetrics returns the latest row of the household's live baseline.
	CurrentMetrics(householdID string) (*models.ScenarioProjection, error)
}

// GoalServicer evaluates goals against the latest projections.
type GoalServicer interface {
	EvaluateHousehold(householdID string) ([]models.Goal, error)
	EvaluateGoal(goalID string) (*models.Goal, error)
}

// SolveOptions bounds a goal solver run.
type SolveOptions struct {
	AllowedInterventions []models.InterventionKind                   `json:"allowed_interventions"`
	Bounds               map[models.InterventionKind]decimal.Decimal `json:"bounds"`
	StartDate            *time.Time                                  `json:"start_date,omitempty"`
	ProjectionMonths     int                                         `json:"projection_months"`
}

// SolverServicer searches for intervention plans that satisfy a goal.
type SolverServicer interface {
	Solve(goalID string, opts SolveOptions) (*models.GoalSolution, error)
	// MaterializeSolution writes a successful solution's plan as a new
	// scenario with its changes, linking it back to the solution.
	MaterializeSolution(solutionID string) (*models.Scenario, error)
}

// DrainResult aggregates one batch-processing pass.
type DrainResult struct {
	EventsProcessed     int      `json:"events_processed"`
	EventsFailed        int      `json:"events_failed"`
	HouseholdsRefreshed int      `json:"households_refreshed"`
	Errors              []string `json:"errors"`
}

// RefreshServicer drains the event queue and runs per-household refreshes.
type RefreshServicer interface {
	// Drain claims up to batchSize pending events, groups them by household,
	// and runs one refresh per household. One household's failure marks only
	// that household's events failed; the batch continues. Safe to call
	// concurrently.
	Drain(ctx context.Context, batchSize int) (*DrainResult, error)
	// RefreshHousehold runs flow regeneration, baseline projection, and goal
	// evaluation as one unit under the household's refresh lease.
	RefreshHousehold(ctx context.Context, householdID string) error
}
