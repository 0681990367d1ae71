package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"horizon/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Dec parses a decimal literal, failing the test on bad input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

// CreateTestHousehold creates a household with a unique name.
func CreateTestHousehold(t *testing.T, db *gorm.DB) *models.Household {
	t.Helper()

	household := &models.Household{
		Name: fmt.Sprintf("Test Household %d", nextID()),
	}
	if err := db.Create(household).Error; err != nil {
		t.Fatalf("failed to create test household: %v", err)
	}
	return household
}

// CreateTestMember creates a household member, optionally with a birthdate.
func CreateTestMember(t *testing.T, db *gorm.DB, householdID string, isPrimary bool, birthdate *time.Time) *models.HouseholdMember {
	t.Helper()

	member := &models.HouseholdMember{
		HouseholdID: householdID,
		Name:        fmt.Sprintf("Member %d", nextID()),
		IsPrimary:   isPrimary,
		Birthdate:   birthdate,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to create test member: %v", err)
	}
	return member
}

// CreateTestUserProfile creates a slim user profile record.
func CreateTestUserProfile(t *testing.T, db *gorm.DB, birthdate *time.Time) *models.User {
	t.Helper()

	user := &models.User{
		Email:     fmt.Sprintf("user%d@test.com", nextID()),
		Birthdate: birthdate,
		IsActive:  true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates an account of the given type with a balance
// snapshot dated today.
func CreateTestAccount(t *testing.T, db *gorm.DB, householdID string, accountType models.AccountType, balance decimal.Decimal) *models.Account {
	t.Helper()

	account := &models.Account{
		HouseholdID: householdID,
		Name:        fmt.Sprintf("Test %s %d", accountType, nextID()),
		Type:        accountType,
		IsActive:    true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}

	if !balance.IsZero() {
		RecordSnapshot(t, db, account.ID, balance, time.Now())
	}
	return account
}

// RecordSnapshot records a dated balance snapshot for an account.
func RecordSnapshot(t *testing.T, db *gorm.DB, accountID string, balance decimal.Decimal, asOf time.Time) *models.BalanceSnapshot {
	t.Helper()

	snapshot := &models.BalanceSnapshot{
		AccountID: accountID,
		AsOfDate:  asOf,
		Balance:   balance,
	}
	if err := db.Create(snapshot).Error; err != nil {
		t.Fatalf("failed to create balance snapshot: %v", err)
	}
	return snapshot
}

// CreateTestLiability creates a liability account with terms and a balance.
// termMonths and minimumPayment may be nil.
func CreateTestLiability(t *testing.T, db *gorm.DB, householdID string, accountType models.AccountType, balance decimal.Decimal, rate float64, termMonths *int, minimumPayment *decimal.Decimal) *models.Account {
	t.Helper()

	account := CreateTestAccount(t, db, householdID, accountType, balance)
	details := &models.LiabilityDetails{
		AccountID:      account.ID,
		InterestRate:   rate,
		TermMonths:     termMonths,
		MinimumPayment: minimumPayment,
	}
	if err := db.Create(details).Error; err != nil {
		t.Fatalf("failed to create liability details: %v", err)
	}
	account.LiabilityDetails = details
	return account
}

// CreateTestFlow creates an active user-declared monthly flow.
func CreateTestFlow(t *testing.T, db *gorm.DB, householdID string, direction models.FlowDirection, category string, amount decimal.Decimal) *models.RecurringFlow {
	t.Helper()

	flow := &models.RecurringFlow{
		HouseholdID: householdID,
		Direction:   direction,
		Category:    category,
		Amount:      amount,
		Frequency:   models.FrequencyMonthly,
		IsActive:    true,
	}
	if err := db.Create(flow).Error; err != nil {
		t.Fatalf("failed to create test flow: %v", err)
	}
	return flow
}

// CreateTestScenario creates a live baseline scenario starting today.
func CreateTestScenario(t *testing.T, db *gorm.DB, householdID string, months int) *models.Scenario {
	t.Helper()

	scenario := &models.Scenario{
		HouseholdID:          householdID,
		Name:                 fmt.Sprintf("Baseline %d", nextID()),
		IsBaseline:           true,
		BaselineMode:         models.BaselineModeLive,
		StartDate:            time.Now().Truncate(24 * time.Hour),
		ProjectionMonths:     months,
		InflationRate:        0.0,
		InvestmentReturnRate: 0.0,
		SalaryGrowthRate:     0.0,
	}
	if err := db.Create(scenario).Error; err != nil {
		t.Fatalf("failed to create test scenario: %v", err)
	}
	return scenario
}

// CreateTestChange creates an enabled scenario change.
func CreateTestChange(t *testing.T, db *gorm.DB, scenarioID string, changeType models.ChangeType, params string, effective time.Time, displayOrder int) *models.ScenarioChange {
	t.Helper()

	change := &models.ScenarioChange{
		ScenarioID:    scenarioID,
		ChangeType:    changeType,
		Params:        params,
		EffectiveDate: effective,
		DisplayOrder:  displayOrder,
		IsEnabled:     true,
	}
	if err := db.Create(change).Error; err != nil {
		t.Fatalf("failed to create test change: %v", err)
	}
	return change
}

// CreateTestGoal creates an active goal.
func CreateTestGoal(t *testing.T, db *gorm.DB, householdID string, goalType models.GoalType, target decimal.Decimal) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		HouseholdID: householdID,
		GoalType:    goalType,
		Name:        fmt.Sprintf("Goal %d", nextID()),
		TargetValue: target,
		IsActive:    true,
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// EmitTestEvent creates a pending reality change event.
func EmitTestEvent(t *testing.T, db *gorm.DB, householdID string, eventType models.EventType) *models.RealityChangeEvent {
	t.Helper()

	event := &models.RealityChangeEvent{
		HouseholdID: householdID,
		EventType:   eventType,
		Payload:     "{}",
		Status:      models.EventStatusPending,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}
