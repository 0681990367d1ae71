package models

import "github.com/shopspring/decimal"

// FlowDirection marks a recurring flow as money in or money out.
type FlowDirection string

const (
	FlowDirectionIncome  FlowDirection = "income"
	FlowDirectionExpense FlowDirection = "expense"
)

// FlowFrequency is how often a recurring flow occurs.
type FlowFrequency string

const (
	FrequencyWeekly    FlowFrequency = "weekly"
	FrequencyBiweekly  FlowFrequency = "biweekly"
	FrequencyMonthly   FlowFrequency = "monthly"
	FrequencyQuarterly FlowFrequency = "quarterly"
	FrequencyAnnual    FlowFrequency = "annual"
)

// Flow categories produced by the liability flow generator. User-declared
// flows carry free-form categories alongside these.
const (
	CategoryMortgagePrincipal  = "MORTGAGE_PRINCIPAL"
	CategoryAutoLoan           = "AUTO_LOAN"
	CategoryCreditCardPayment  = "CREDIT_CARD_PAYMENT"
	CategoryStudentLoanPayment = "STUDENT_LOAN_PAYMENT"
	CategoryHELOCPayment       = "HELOC_PAYMENT"
	CategoryDebtPayment        = "DEBT_PAYMENT"
)

// RecurringFlow is a recurring cash-flow entry, either declared by the user
// or generated by the flow generator from liability terms. Generated flows
// (IsSystemGenerated) are owned by the generator and replaced wholesale on
// each refresh; user flows are never touched by it.
type RecurringFlow struct {
	Base
	HouseholdID       string          `gorm:"not null;index" json:"household_id"`
	Direction         FlowDirection   `gorm:"not null" json:"direction"`
	Category          string          `gorm:"not null" json:"category"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Frequency         FlowFrequency   `gorm:"not null;default:'monthly'" json:"frequency"`
	AccountID         *string         `gorm:"type:uuid;index" json:"account_id,omitempty"`
	IsEssential       bool            `gorm:"default:false" json:"is_essential"`
	IsSystemGenerated bool            `gorm:"default:false;index" json:"is_system_generated"`
	IsActive          bool            `gorm:"default:true" json:"is_active"`
}

// MonthlyAmount normalizes the flow to a monthly figure, rounded to cents.
// Weekly and biweekly use the 52-week year (52/12 and 26/12 occurrences per
// month respectively).
func (f *RecurringFlow) MonthlyAmount() decimal.Decimal {
	twelve := decimal.NewFromInt(12)
	switch f.Frequency {
	case FrequencyWeekly:
		return f.Amount.Mul(decimal.NewFromInt(52)).Div(twelve).Round(2)
	case FrequencyBiweekly:
		return f.Amount.Mul(decimal.NewFromInt(26)).Div(twelve).Round(2)
	case FrequencyQuarterly:
		return f.Amount.Div(decimal.NewFromInt(3)).Round(2)
	case FrequencyAnnual:
		return f.Amount.Div(twelve).Round(2)
	default:
		return f.Amount
	}
}
