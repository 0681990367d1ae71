package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account within the asset/liability taxonomy.
// The type is immutable after creation.
type AccountType string

const (
	// Assets
	AccountTypeCash       AccountType = "cash"
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeBrokerage  AccountType = "brokerage"
	AccountTypeRetirement AccountType = "retirement"
	AccountTypeProperty   AccountType = "property"
	AccountTypeOtherAsset AccountType = "other_asset"

	// Liabilities
	AccountTypeMortgage     AccountType = "mortgage"
	AccountTypeAutoLoan     AccountType = "auto_loan"
	AccountTypeStudentLoan  AccountType = "student_loan"
	AccountTypePersonalLoan AccountType = "personal_loan"
	AccountTypeCreditCard   AccountType = "credit_card"
	AccountTypeHELOC        AccountType = "heloc"
	AccountTypeOtherDebt    AccountType = "other_debt"
)

// Account represents a financial account owned by a household. The latest
// balance is derived from the most recent dated snapshot and defaults to
// zero when no snapshots exist.
type Account struct {
	Base
	HouseholdID string      `gorm:"not null;index" json:"household_id"`
	Name        string      `gorm:"not null" json:"name"`
	Type        AccountType `gorm:"not null" json:"type"`
	Description string      `json:"description"`
	IsActive    bool        `gorm:"default:true" json:"is_active"`

	// Relationships
	Snapshots        []BalanceSnapshot `gorm:"foreignKey:AccountID" json:"snapshots,omitempty"`
	LiabilityDetails *LiabilityDetails `gorm:"foreignKey:AccountID" json:"liability_details,omitempty"`
}

// IsLiabilityType reports whether the type sits on the debt side of the
// taxonomy.
func (t AccountType) IsLiabilityType() bool {
	switch t {
	case AccountTypeMortgage, AccountTypeAutoLoan, AccountTypeStudentLoan,
		AccountTypePersonalLoan, AccountTypeCreditCard, AccountTypeHELOC,
		AccountTypeOtherDebt:
		return true
	}
	return false
}

// IsLiquidType reports whether the type counts toward liquid assets for
// liquidity-months and days-cash-on-hand.
func (t AccountType) IsLiquidType() bool {
	switch t {
	case AccountTypeCash, AccountTypeChecking, AccountTypeSavings:
		return true
	}
	return false
}

// IsLiability reports whether the account sits on the debt side of the
// taxonomy.
func (a *Account) IsLiability() bool {
	return a.Type.IsLiabilityType()
}

// IsLiquid reports whether the account counts toward liquid assets.
func (a *Account) IsLiquid() bool {
	return a.Type.IsLiquidType()
}

// IsRetirement reports whether the account belongs to the retirement bucket.
func (a *Account) IsRetirement() bool {
	return a.Type == AccountTypeRetirement
}

// IsRevolving reports whether the liability has no fixed term (credit cards,
// HELOCs). Revolving debt without an explicit minimum payment cannot be
// amortized.
func (a *Account) IsRevolving() bool {
	return a.Type == AccountTypeCreditCard || a.Type == AccountTypeHELOC
}

// CurrentBalance returns the balance of the most recent snapshot by as-of
// date, or zero when the account has none. Snapshots must be preloaded.
func (a *Account) CurrentBalance() decimal.Decimal {
	var latest *BalanceSnapshot
	for i := range a.Snapshots {
		s := &a.Snapshots[i]
		if latest == nil || s.AsOfDate.After(latest.AsOfDate) {
			latest = s
		}
	}
	if latest == nil {
		return decimal.Zero
	}
	return latest.Balance
}

// BalanceSnapshot is a dated observation of an account balance.
type BalanceSnapshot struct {
	Base
	AccountID string          `gorm:"not null;index" json:"account_id"`
	AsOfDate  time.Time       `gorm:"not null" json:"as_of_date"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance"`
}

// LiabilityDetails carries the lending terms for a liability account,
// one-to-one with the account.
type LiabilityDetails struct {
	Base
	AccountID      string           `gorm:"type:uuid;not null;uniqueIndex" json:"account_id"`
	InterestRate   float64          `gorm:"not null;default:0" json:"interest_rate"` // annual fraction, e.g. 0.068
	TermMonths     *int             `json:"term_months,omitempty"`
	MinimumPayment *decimal.Decimal `gorm:"type:decimal(18,2)" json:"minimum_payment,omitempty"`
}
