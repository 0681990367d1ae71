package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"horizon/internal/handlers"
	"horizon/internal/logger"
	"horizon/internal/middleware"
	"horizon/internal/models"
	"horizon/internal/services"
	"horizon/internal/testutil"
	"horizon/internal/validator"
)

const pipelineKey = "test-pipeline-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Household{},
		&models.HouseholdMember{},
		&models.Account{},
		&models.BalanceSnapshot{},
		&models.LiabilityDetails{},
		&models.RecurringFlow{},
		&models.Scenario{},
		&models.ScenarioChange{},
		&models.ScenarioProjection{},
		&models.RealityChangeEvent{},
		&models.Goal{},
		&models.GoalSolution{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	flowService := services.NewFlowService(db)
	eventService := services.NewEventService(db)
	projectionService := services.NewProjectionService(db)
	goalService := services.NewGoalService(db)
	solverService := services.NewSolverService(db, projectionService, 24)
	refreshService := services.NewRefreshService(db, flowService, eventService,
		projectionService, goalService, 5*time.Second, 30*time.Second)

	// Handlers
	eventHandler := handlers.NewEventHandler(eventService)
	projectionHandler := handlers.NewProjectionHandler(projectionService)
	scenarioHandler := handlers.NewScenarioHandler(projectionService)
	goalHandler := handlers.NewGoalHandler(goalService, solverService)
	pipelineHandler := handlers.NewPipelineHandler(refreshService, eventService, 100, 30*24*time.Hour)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	v1.POST("/events", eventHandler.EmitEvent)

	households := v1.Group("/households")
	households.GET("/:id/projections", projectionHandler.GetProjections)
	households.GET("/:id/metrics/current", projectionHandler.GetCurrentMetrics)
	households.POST("/:id/goals/evaluate", goalHandler.EvaluateGoals)
	households.POST("/:id/goals/:gid/solve", goalHandler.SolveGoal)

	scenarios := v1.Group("/scenarios")
	scenarios.POST("/:id/extend-horizon", scenarioHandler.ExtendHorizon)
	scenarios.POST("/:id/pin", scenarioHandler.PinBaseline)

	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(pipelineKey))
	pipeline.POST("/drain", pipelineHandler.Drain)
	pipeline.POST("/purge", pipelineHandler.Purge)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// seedHousehold writes a refreshable household straight into the database:
// a checking account, salary and rent flows, and a live 12-month baseline.
func (app *testApp) seedHousehold(t *testing.T) *models.Household {
	t.Helper()
	household := testutil.CreateTestHousehold(t, app.DB)
	testutil.CreateTestAccount(t, app.DB, household.ID, models.AccountTypeChecking, testutil.Dec(t, "10000"))
	testutil.CreateTestFlow(t, app.DB, household.ID, models.FlowDirectionIncome, "SALARY", testutil.Dec(t, "5000"))
	testutil.CreateTestFlow(t, app.DB, household.ID, models.FlowDirectionExpense, "RENT", testutil.Dec(t, "2000"))
	testutil.CreateTestScenario(t, app.DB, household.ID, 12)
	return household
}

// drain triggers a pipeline drain with the configured API key and asserts it
// succeeded.
func (app *testApp) drain(t *testing.T) map[string]interface{} {
	t.Helper()
	rec := app.request("POST", "/api/v1/pipeline/drain", "", pipelineKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("drain failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}
