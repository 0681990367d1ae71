package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ScenarioProjection is one simulated month of a scenario. Rows are
// immutable: a refresh deletes the scenario's full row set and regenerates
// it stamped with the scenario's new generation; rows are never patched.
type ScenarioProjection struct {
	Base
	ScenarioID  string    `gorm:"not null;index:idx_projection_scenario_month,unique" json:"scenario_id"`
	MonthNumber int       `gorm:"not null;index:idx_projection_scenario_month,unique" json:"month_number"`
	MonthDate   time.Time `gorm:"not null" json:"month_date"`
	Generation  int64     `gorm:"not null" json:"generation"`

	TotalAssets      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_assets"`
	LiquidAssets     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"liquid_assets"`
	RetirementAssets decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"retirement_assets"`
	TotalLiabilities decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_liabilities"`
	NetWorth         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_worth"`

	TotalIncome   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_income"`
	TotalExpenses decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_expenses"`
	NetCashFlow   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_cash_flow"`
	DebtService   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"debt_service"`

	// Ratios, zero-guarded: zero when their denominator is zero.
	DSCR            decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"dscr"`
	SavingsRate     decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"savings_rate"`
	LiquidityMonths decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"liquidity_months"`
	DaysCashOnHand  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"days_cash_on_hand"`

	// Category breakdowns as JSON objects of category -> monthly amount.
	IncomeBreakdown  string `gorm:"not null;default:'{}'" json:"income_breakdown"`
	ExpenseBreakdown string `gorm:"not null;default:'{}'" json:"expense_breakdown"`
}

// EncodeBreakdown serializes a category breakdown for storage. Marshalling a
// string-keyed map of decimals cannot fail; an empty map encodes as "{}".
func EncodeBreakdown(m map[string]decimal.Decimal) string {
	if len(m) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// DecodeBreakdown parses a stored category breakdown.
func DecodeBreakdown(s string) (map[string]decimal.Decimal, error) {
	m := make(map[string]decimal.Decimal)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
