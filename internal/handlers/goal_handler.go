package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "horizon/internal/errors"
	"horizon/internal/models"
	"horizon/internal/services"
)

// GoalHandler handles goal evaluation and solver requests.
type GoalHandler struct {
	goalService   services.GoalServicer
	solverService services.SolverServicer
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer, solverService services.SolverServicer) *GoalHandler {
	return &GoalHandler{goalService: goalService, solverService: solverService}
}

// SolveGoalRequest represents the request payload for a solver run.
type SolveGoalRequest struct {
	AllowedInterventions []models.InterventionKind  `json:"allowed_interventions" binding:"omitempty,dive,intervention_kind"`
	Bounds               map[string]decimal.Decimal `json:"bounds"`
	StartDate            *time.Time                 `json:"start_date"`
	ProjectionMonths     int                        `json:"projection_months" binding:"omitempty,min=1"`
	Materialize          bool                       `json:"materialize"`
}

// SolveGoal runs the goal solver and optionally materializes a successful
// solution as a scenario.
func (h *GoalHandler) SolveGoal(c *gin.Context) {
	householdID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	goalID, err := parsePathID(c, "gid")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SolveGoalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	opts := services.SolveOptions{
		AllowedInterventions: req.AllowedInterventions,
		StartDate:            req.StartDate,
		ProjectionMonths:     req.ProjectionMonths,
	}
	if len(req.Bounds) > 0 {
		opts.Bounds = make(map[models.InterventionKind]decimal.Decimal, len(req.Bounds))
		for kind, bound := range req.Bounds {
			opts.Bounds[models.InterventionKind(kind)] = bound
		}
	}

	solution, err := h.solverService.Solve(goalID, opts)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if solution.HouseholdID != householdID {
		respondWithError(c, apperrors.ErrGoalNotFound)
		return
	}

	response := gin.H{"solution": solution}
	if req.Materialize && solution.Success {
		scenario, err := h.solverService.MaterializeSolution(solution.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		response["scenario"] = scenario
	}

	c.JSON(http.StatusOK, response)
}

// EvaluateGoals re-evaluates every active goal of the household against its
// latest baseline projections.
func (h *GoalHandler) EvaluateGoals(c *gin.Context) {
	householdID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	goals, err := h.goalService.EvaluateHousehold(householdID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}
