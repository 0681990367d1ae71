package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ChangeType identifies a kind of dated mutation applied during simulation.
type ChangeType string

const (
	ChangeIncomeAdd        ChangeType = "income_add"
	ChangeIncomeModify     ChangeType = "income_modify"
	ChangeIncomeRemove     ChangeType = "income_remove"
	ChangeExpenseAdd       ChangeType = "expense_add"
	ChangeExpenseModify    ChangeType = "expense_modify"
	ChangeExpenseRemove    ChangeType = "expense_remove"
	ChangeAssetModify      ChangeType = "asset_modify"
	ChangeDebtModify       ChangeType = "debt_modify"
	ChangeLumpSum          ChangeType = "lump_sum"
	ChangeDebtPayoff       ChangeType = "debt_payoff"
	ChangeRefinance        ChangeType = "refinance"
	ChangeContributionRate ChangeType = "contribution_rate"
)

// Adjustment says whether a modification replaces a value or shifts it.
// Absolute overrides conflict, so the latest display_order wins; deltas
// accumulate across changes targeting the same thing.
type Adjustment string

const (
	AdjustmentAbsolute Adjustment = "absolute"
	AdjustmentDelta    Adjustment = "delta"
)

// ScenarioChange is a typed, dated mutation applied during simulation. The
// Params column is a JSON document whose shape depends on ChangeType; it is
// decoded into its typed variant and validated before entering the engine.
type ScenarioChange struct {
	Base
	ScenarioID    string     `gorm:"not null;index" json:"scenario_id"`
	ChangeType    ChangeType `gorm:"not null" json:"change_type"`
	Params        string     `gorm:"not null;default:'{}'" json:"params"`
	EffectiveDate time.Time  `gorm:"not null" json:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	DisplayOrder  int        `gorm:"not null;default:0" json:"display_order"`
	IsEnabled     bool       `gorm:"default:true" json:"is_enabled"`
}

// ChangeParams is the tagged union of per-change-type parameter sets.
type ChangeParams interface {
	Validate() error
}

// FlowChangeParams backs income_add/expense_add (amount required),
// income_modify/expense_modify (amount + adjustment), and
// income_remove/expense_remove (category only).
type FlowChangeParams struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Adjustment Adjustment      `json:"adjustment,omitempty"`
}

// Validate checks category presence; amount/adjustment requirements depend
// on the change type and are enforced in DecodeParams.
func (p FlowChangeParams) Validate() error {
	if p.Category == "" {
		return fmt.Errorf("category is required")
	}
	return nil
}

// BalanceChangeParams backs asset_modify and debt_modify.
type BalanceChangeParams struct {
	AccountID  string          `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Adjustment Adjustment      `json:"adjustment"`
}

func (p BalanceChangeParams) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if p.Adjustment != AdjustmentAbsolute && p.Adjustment != AdjustmentDelta {
		return fmt.Errorf("adjustment must be %q or %q", AdjustmentAbsolute, AdjustmentDelta)
	}
	return nil
}

// LumpSumParams backs lump_sum: a one-time amount credited to (positive) or
// debited from (negative) an account in the effective month only.
type LumpSumParams struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (p LumpSumParams) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if p.Amount.IsZero() {
		return fmt.Errorf("amount must be non-zero")
	}
	return nil
}

// PayoffParams backs debt_payoff: zero the liability and drop its generated
// payment flow from the effective month forward.
type PayoffParams struct {
	AccountID string `json:"account_id"`
}

func (p PayoffParams) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	return nil
}

// RefinanceParams backs refinance: replace rate and term, optionally
// restating the balance (cash-out or consolidation).
type RefinanceParams struct {
	AccountID     string           `json:"account_id"`
	NewRate       float64          `json:"new_rate"`
	NewTermMonths int              `json:"new_term_months"`
	NewBalance    *decimal.Decimal `json:"new_balance,omitempty"`
}

func (p RefinanceParams) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if p.NewRate < 0 {
		return fmt.Errorf("new_rate must not be negative")
	}
	if p.NewTermMonths <= 0 {
		return fmt.Errorf("new_term_months must be positive")
	}
	return nil
}

// ContributionRateParams backs contribution_rate: redirect the given
// fraction of total income into the retirement bucket each month.
type ContributionRateParams struct {
	Rate float64 `json:"rate"`
}

func (p ContributionRateParams) Validate() error {
	if p.Rate < 0 || p.Rate > 1 {
		return fmt.Errorf("rate must be within [0, 1]")
	}
	return nil
}

// DecodeParams parses and validates the change's JSON parameters into the
// typed variant for its change type. Unknown types and malformed parameter
// documents are input errors, surfaced here and never absorbed by the
// engine.
func (c *ScenarioChange) DecodeParams() (ChangeParams, error) {
	raw := []byte(c.Params)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	decode := func(into ChangeParams) (ChangeParams, error) {
		if err := json.Unmarshal(raw, into); err != nil {
			return nil, fmt.Errorf("change %s: malformed params: %w", c.ChangeType, err)
		}
		return into, nil
	}

	var params ChangeParams
	var err error

	switch c.ChangeType {
	case ChangeIncomeAdd, ChangeExpenseAdd:
		var p FlowChangeParams
		if _, err = decode(&p); err == nil {
			if p.Amount.Sign() <= 0 {
				return nil, fmt.Errorf("change %s: amount must be positive", c.ChangeType)
			}
			p.Adjustment = AdjustmentAbsolute
			params = p
		}
	case ChangeIncomeModify, ChangeExpenseModify:
		var p FlowChangeParams
		if _, err = decode(&p); err == nil {
			if p.Adjustment != AdjustmentAbsolute && p.Adjustment != AdjustmentDelta {
				return nil, fmt.Errorf("change %s: adjustment must be %q or %q", c.ChangeType, AdjustmentAbsolute, AdjustmentDelta)
			}
			params = p
		}
	case ChangeIncomeRemove, ChangeExpenseRemove:
		var p FlowChangeParams
		if _, err = decode(&p); err == nil {
			params = p
		}
	case ChangeAssetModify, ChangeDebtModify:
		var p BalanceChangeParams
		if _, err = decode(&p); err == nil {
			params = p
		}
	case ChangeLumpSum:
		var p LumpSumParams
		if _, err = decode(&p); err == nil {
			params = p
		}
	case ChangeDebtPayoff:
		var p PayoffParams
		if _, err = decode(&p); err == nil {
			params = p
		}
	case ChangeRefinance:
		var p RefinanceParams
		if _, err = decode(&p); err == nil {
			params = p
		}
	case ChangeContributionRate:
		var p ContributionRateParams
		if _, err = decode(&p); err == nil {
			params = p
		}
	default:
		return nil, fmt.Errorf("unknown change type %q", c.ChangeType)
	}
	if err != nil {
		return nil, err
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("change %s: %w", c.ChangeType, err)
	}
	return params, nil
}
