package services

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"horizon/internal/models"
	"horizon/internal/testutil"
)

func TestSolverService(t *testing.T) {
	t.Run("finds_smallest_sufficient_expense_cut", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		household := testutil.CreateTestHousehold(t, db)
		testutil.CreateTestAccount(t, db, household.ID, models.AccountTypeChecking, testutil.Dec(t, "10000"))
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionIncome, "SALARY", testutil.Dec(t, "5000"))
		rent := testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionExpense, "RENT", testutil.Dec(t, "2000"))
		testutil.AssertNoError(t, db.Model(rent).Update("is_essential", true).Error)
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionExpense, "DINING", testutil.Dec(t, "1000"))
		testutil.CreateTestScenario(t, db, household.ID, 12)

		// Baseline savings rate is 0.4; cutting dining by 500 reaches 0.5.
		goal := testutil.CreateTestGoal(t, db, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.5"))

		solution, err := NewSolverService(db, NewProjectionService(db), 24).Solve(goal.ID, SolveOptions{
			AllowedInterventions: []models.InterventionKind{models.InterventionReduceExpenses},
		})
		testutil.AssertNoError(t, err)

		if !solution.Success {
			t.Fatalf("expected success, got failure: %s", solution.ErrorMessage)
		}
		testutil.AssertDecimalEqual(t, solution.BaselineValue, "0.4")
		if solution.WorstMonthValue.LessThan(testutil.Dec(t, "0.5")) {
			t.Fatalf("worst month %s below target", solution.WorstMonthValue)
		}

		var plan []planStep
		testutil.AssertNoError(t, json.Unmarshal([]byte(solution.PlanJSON), &plan))
		if len(plan) != 1 {
			t.Fatalf("expected 1 step, got %d", len(plan))
		}
		step := plan[0]
		if step.Kind != models.InterventionReduceExpenses {
			t.Fatalf("expected reduce_expenses, got %s", step.Kind)
		}
		if step.Magnitude.LessThan(testutil.Dec(t, "500")) ||
			step.Magnitude.GreaterThan(testutil.Dec(t, "501")) {
			t.Fatalf("expected minimal cut near 500, got %s", step.Magnitude)
		}
		var params models.FlowChangeParams
		testutil.AssertNoError(t, json.Unmarshal(step.Params, &params))
		if params.Category != "DINING" {
			t.Fatalf("expected cut against DINING, got %s", params.Category)
		}
	})

	t.Run("already_achieved_needs_no_plan", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		household := testutil.CreateTestHousehold(t, db)
		testutil.CreateTestAccount(t, db, household.ID, models.AccountTypeChecking, testutil.Dec(t, "10000"))
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionIncome, "SALARY", testutil.Dec(t, "5000"))
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionExpense, "RENT", testutil.Dec(t, "2000"))
		testutil.CreateTestScenario(t, db, household.ID, 12)
		goal := testutil.CreateTestGoal(t, db, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.2"))

		solution, err := NewSolverService(db, NewProjectionService(db), 24).Solve(goal.ID, SolveOptions{})
		testutil.AssertNoError(t, err)

		if !solution.Success {
			t.Fatalf("expected success: %s", solution.ErrorMessage)
		}
		var plan []planStep
		testutil.AssertNoError(t, json.Unmarshal([]byte(solution.PlanJSON), &plan))
		if len(plan) != 0 {
			t.Fatalf("expected empty plan, got %d steps", len(plan))
		}
	})

	t.Run("unreachable_goal_is_a_normal_failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		household := testutil.CreateTestHousehold(t, db)
		testutil.CreateTestAccount(t, db, household.ID, models.AccountTypeChecking, testutil.Dec(t, "10000"))
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionIncome, "SALARY", testutil.Dec(t, "5000"))
		rent := testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionExpense, "RENT", testutil.Dec(t, "2000"))
		testutil.AssertNoError(t, db.Model(rent).Update("is_essential", true).Error)
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionExpense, "DINING", testutil.Dec(t, "1000"))
		testutil.CreateTestScenario(t, db, household.ID, 12)

		// Cutting all of dining only reaches 0.6.
		goal := testutil.CreateTestGoal(t, db, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.9"))

		solution, err := NewSolverService(db, NewProjectionService(db), 24).Solve(goal.ID, SolveOptions{
			AllowedInterventions: []models.InterventionKind{models.InterventionReduceExpenses},
		})
		testutil.AssertNoError(t, err)

		if solution.Success {
			t.Fatal("expected failure for unreachable target")
		}
		if solution.ErrorMessage == "" {
			t.Error("failed solution must carry a message")
		}
		// The greedy pass still records the best partial plan.
		var plan []planStep
		testutil.AssertNoError(t, json.Unmarshal([]byte(solution.PlanJSON), &plan))
		if len(plan) != 1 {
			t.Fatalf("expected partial plan with 1 step, got %d", len(plan))
		}
	})

	t.Run("rejects_unknown_intervention_kind", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		household := testutil.CreateTestHousehold(t, db)
		testutil.CreateTestScenario(t, db, household.ID, 12)
		goal := testutil.CreateTestGoal(t, db, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.5"))

		_, err := NewSolverService(db, NewProjectionService(db), 24).Solve(goal.ID, SolveOptions{
			AllowedInterventions: []models.InterventionKind{"sell_everything"},
		})
		testutil.AssertAppError(t, err, "INVALID_INTERVENTION")
	})

	t.Run("rejects_unknown_kind_in_bounds", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		household := testutil.CreateTestHousehold(t, db)
		testutil.CreateTestScenario(t, db, household.ID, 12)
		goal := testutil.CreateTestGoal(t, db, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.5"))

		_, err := NewSolverService(db, NewProjectionService(db), 24).Solve(goal.ID, SolveOptions{
			Bounds: map[models.InterventionKind]decimal.Decimal{
				"pay_off_everything": testutil.Dec(t, "1000"),
			},
		})
		testutil.AssertAppError(t, err, "INVALID_INTERVENTION")

		var solutions int64
		testutil.AssertNoError(t, db.Model(&models.GoalSolution{}).Count(&solutions).Error)
		if solutions != 0 {
			t.Errorf("expected no solution persisted, got %d", solutions)
		}
	})

	t.Run("requires_a_baseline", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		household := testutil.CreateTestHousehold(t, db)
		goal := testutil.CreateTestGoal(t, db, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.5"))

		_, err := NewSolverService(db, NewProjectionService(db), 24).Solve(goal.ID, SolveOptions{})
		testutil.AssertAppError(t, err, "NO_BASELINE")
	})

	t.Run("materialize_writes_scenario_with_plan_changes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		household := testutil.CreateTestHousehold(t, db)
		testutil.CreateTestAccount(t, db, household.ID, models.AccountTypeChecking, testutil.Dec(t, "10000"))
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionIncome, "SALARY", testutil.Dec(t, "5000"))
		rent := testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionExpense, "RENT", testutil.Dec(t, "2000"))
		testutil.AssertNoError(t, db.Model(rent).Update("is_essential", true).Error)
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionExpense, "DINING", testutil.Dec(t, "1000"))
		testutil.CreateTestScenario(t, db, household.ID, 12)
		goal := testutil.CreateTestGoal(t, db, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.5"))
		svc := NewSolverService(db, NewProjectionService(db), 24)

		solution, err := svc.Solve(goal.ID, SolveOptions{
			AllowedInterventions: []models.InterventionKind{models.InterventionReduceExpenses},
		})
		testutil.AssertNoError(t, err)

		scenario, err := svc.MaterializeSolution(solution.ID)
		testutil.AssertNoError(t, err)

		if scenario.IsBaseline {
			t.Error("materialized scenario must not be a baseline")
		}
		var changes []models.ScenarioChange
		testutil.AssertNoError(t, db.Where("scenario_id = ?", scenario.ID).Find(&changes).Error)
		if len(changes) != 1 {
			t.Fatalf("expected 1 change, got %d", len(changes))
		}
		if changes[0].ChangeType != models.ChangeExpenseModify {
			t.Errorf("expected expense_modify, got %s", changes[0].ChangeType)
		}

		var stored models.GoalSolution
		testutil.AssertNoError(t, db.First(&stored, "id = ?", solution.ID).Error)
		if stored.ScenarioID == nil || *stored.ScenarioID != scenario.ID {
			t.Error("solution must link the materialized scenario")
		}
	})

	t.Run("materialize_rejects_failed_solution", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		household := testutil.CreateTestHousehold(t, db)
		testutil.CreateTestAccount(t, db, household.ID, models.AccountTypeChecking, testutil.Dec(t, "10000"))
		testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionIncome, "SALARY", testutil.Dec(t, "5000"))
		rent := testutil.CreateTestFlow(t, db, household.ID, models.FlowDirectionExpense, "RENT", testutil.Dec(t, "2000"))
		testutil.AssertNoError(t, db.Model(rent).Update("is_essential", true).Error)
		testutil.CreateTestScenario(t, db, household.ID, 12)
		goal := testutil.CreateTestGoal(t, db, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.99"))
		svc := NewSolverService(db, NewProjectionService(db), 24)

		solution, err := svc.Solve(goal.ID, SolveOptions{
			AllowedInterventions: []models.InterventionKind{models.InterventionReduceExpenses},
		})
		testutil.AssertNoError(t, err)
		if solution.Success {
			t.Fatal("expected unsolvable setup")
		}

		_, err = svc.MaterializeSolution(solution.ID)
		testutil.AssertAppError(t, err, "GOAL_SOLUTION_UNSOLVABLE")
	})
}
