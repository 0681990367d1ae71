package integration

import (
	"net/http"
	"testing"

	"horizon/internal/models"
	"horizon/internal/testutil"
)

func TestGoalFlow_EvaluateAndSolve(t *testing.T) {
	app := setupApp(t)
	household := app.seedHousehold(t)
	// 1000/month of cuttable spending alongside the essential rent
	testutil.CreateTestFlow(t, app.DB, household.ID, models.FlowDirectionExpense, "DINING", testutil.Dec(t, "1000"))
	goal := testutil.CreateTestGoal(t, app.DB, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.5"))

	emitManualRefresh(t, app, household.ID)
	app.drain(t)

	// Evaluation: savings rate is 2000/5000 = 0.4 against a 0.5 target,
	// within 80% of it
	rec := app.request("POST", "/api/v1/households/"+household.ID+"/goals/evaluate", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	goals := parseJSON(t, rec)["goals"].([]interface{})
	if len(goals) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(goals))
	}
	evaluated := goals[0].(map[string]interface{})
	if evaluated["current_status"] != "warning" {
		t.Errorf("expected warning at 80%% of target, got %v", evaluated["current_status"])
	}
	if evaluated["current_value"] != "0.4" {
		t.Errorf("expected current value 0.4, got %v", evaluated["current_value"])
	}

	// Solve with materialization: a 500/month expense cut closes the gap
	rec = app.request("POST",
		"/api/v1/households/"+household.ID+"/goals/"+goal.ID+"/solve",
		`{"allowed_interventions":["reduce_expenses"],"materialize":true}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	solution := result["solution"].(map[string]interface{})
	if solution["success"] != true {
		t.Fatalf("expected solvable goal, got: %v", solution)
	}
	scenario, ok := result["scenario"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected materialized scenario in response, got: %v", result)
	}
	if scenario["is_baseline"] != false {
		t.Error("materialized plan must not be a baseline")
	}

	// The plan scenario projects at or above the target in every month
	scenarioID := scenario["id"].(string)
	rec = app.request("GET",
		"/api/v1/households/"+household.ID+"/projections?page_size=600&scenario="+scenarioID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rows := parseJSON(t, rec)["data"].([]interface{})
	if len(rows) == 0 {
		t.Fatal("expected projection rows for the materialized scenario")
	}
	for _, raw := range rows {
		row := raw.(map[string]interface{})
		rate := testutil.Dec(t, row["savings_rate"].(string))
		if rate.LessThan(testutil.Dec(t, "0.5")) {
			t.Fatalf("month %v savings rate %s below target", row["month_number"], rate)
		}
	}
}

func TestGoalFlow_UnknownInterventionRejected(t *testing.T) {
	app := setupApp(t)
	household := app.seedHousehold(t)
	goal := testutil.CreateTestGoal(t, app.DB, household.ID, models.GoalMinSavingsRate, testutil.Dec(t, "0.5"))

	rec := app.request("POST",
		"/api/v1/households/"+household.ID+"/goals/"+goal.ID+"/solve",
		`{"allowed_interventions":["sell_everything"]}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
