package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"horizon/internal/models"
	"horizon/internal/money"
)

// The simulator is a pure, synchronous transform: it performs no I/O, holds
// no shared state, and is deterministic for a given input. That keeps
// refresh idempotent (two runs over unchanged data produce identical rows)
// and makes solver trials cheap to run in parallel over copied inputs.

// simulationInput is the full, immutable input to one simulation run.
type simulationInput struct {
	StartDate            time.Time
	Months               int
	InflationRate        float64
	InvestmentReturnRate float64
	SalaryGrowthRate     float64
	Accounts             []simAccount
	Flows                []simFlow
	Changes              []simChange
}

// simAccount seeds one account's running balance.
type simAccount struct {
	ID           string
	Type         models.AccountType
	Balance      decimal.Decimal
	InterestRate float64 // liabilities only
	TermMonths   int     // amortizing liabilities only, 0 when unset
}

// simFlow is a recurring flow normalized to a monthly amount.
type simFlow struct {
	Category    string
	Direction   models.FlowDirection
	Monthly     decimal.Decimal
	AccountID   string // linked liability for payment flows, else empty
	IsEssential bool
}

// simChange is a decoded, validated scenario change.
type simChange struct {
	Type          models.ChangeType
	Params        models.ChangeParams
	EffectiveDate time.Time
	EndDate       *time.Time
	DisplayOrder  int
}

// simMonth is one simulated month's aggregate metrics.
type simMonth struct {
	MonthNumber int
	MonthDate   time.Time

	TotalAssets      decimal.Decimal
	LiquidAssets     decimal.Decimal
	RetirementAssets decimal.Decimal
	TotalLiabilities decimal.Decimal
	NetWorth         decimal.Decimal

	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	NetCashFlow   decimal.Decimal
	DebtService   decimal.Decimal

	DSCR            decimal.Decimal
	SavingsRate     decimal.Decimal
	LiquidityMonths decimal.Decimal
	DaysCashOnHand  decimal.Decimal

	IncomeBreakdown  map[string]decimal.Decimal
	ExpenseBreakdown map[string]decimal.Decimal
}

// Synthetic bucket ids used when a household lacks a liquid or retirement
// account to receive accumulated cash flow or contributions.
const (
	syntheticCashID       = "_cash"
	syntheticRetirementID = "_retirement"
)

// simulate runs the scenario month by month from 1 to input.Months.
func simulate(in simulationInput) ([]simMonth, error) {
	if in.Months <= 0 {
		return nil, fmt.Errorf("projection horizon must be positive, got %d", in.Months)
	}

	// Stable change ordering: effective date, then display order. Later
	// display order wins conflicting absolute overrides because changes are
	// applied in this order; delta adjustments accumulate.
	changes := make([]simChange, len(in.Changes))
	copy(changes, in.Changes)
	sort.SliceStable(changes, func(i, j int) bool {
		if !changes[i].EffectiveDate.Equal(changes[j].EffectiveDate) {
			return changes[i].EffectiveDate.Before(changes[j].EffectiveDate)
		}
		return changes[i].DisplayOrder < changes[j].DisplayOrder
	})

	// Running state, seeded from month 0.
	balances := make(map[string]decimal.Decimal, len(in.Accounts))
	accountType := make(map[string]models.AccountType, len(in.Accounts))
	debtRate := make(map[string]float64)
	accountOrder := make([]string, 0, len(in.Accounts))
	cashID, retirementID := "", ""

	for _, a := range in.Accounts {
		balances[a.ID] = a.Balance
		accountType[a.ID] = a.Type
		accountOrder = append(accountOrder, a.ID)
		if a.Type.IsLiabilityType() {
			debtRate[a.ID] = a.InterestRate
		}
		if cashID == "" && a.Type.IsLiquidType() {
			cashID = a.ID
		}
		if retirementID == "" && a.Type == models.AccountTypeRetirement {
			retirementID = a.ID
		}
	}
	if cashID == "" {
		cashID = syntheticCashID
		balances[cashID] = decimal.Zero
		accountType[cashID] = models.AccountTypeCash
		accountOrder = append(accountOrder, cashID)
	}
	if retirementID == "" {
		retirementID = syntheticRetirementID
		balances[retirementID] = decimal.Zero
		accountType[retirementID] = models.AccountTypeRetirement
		accountOrder = append(accountOrder, retirementID)
	}

	// Monthly payment owed per liability, derived from payment flows.
	// Refinances override it; payoffs and retirement of the balance drop it.
	debtPayment := make(map[string]decimal.Decimal)
	for _, f := range in.Flows {
		if f.Direction == models.FlowDirectionExpense && f.AccountID != "" {
			if _, isDebt := debtRate[f.AccountID]; isDebt {
				debtPayment[f.AccountID] = debtPayment[f.AccountID].Add(f.Monthly)
			}
		}
	}
	paidOff := make(map[string]bool)

	incomeGrowth := money.MonthlyCompoundRate(in.SalaryGrowthRate)
	expenseGrowth := money.MonthlyCompoundRate(in.InflationRate)
	incomeFactor, expenseFactor := 1.0, 1.0

	rows := make([]simMonth, 0, in.Months)

	for m := 1; m <= in.Months; m++ {
		prevDate := in.StartDate.AddDate(0, m-1, 0)
		monthDate := in.StartDate.AddDate(0, m, 0)
		incomeFactor *= 1 + incomeGrowth
		expenseFactor *= 1 + expenseGrowth

		// Step 1: changes active this month, in order.
		var active []simChange
		for _, c := range changes {
			if c.EffectiveDate.After(monthDate) {
				continue
			}
			if c.EndDate != nil && c.EndDate.Before(monthDate) {
				continue
			}
			active = append(active, c)
		}

		// Step 2a: balance-affecting changes apply once, in the first month
		// of their active window.
		for _, c := range active {
			if !(m == 1 || c.EffectiveDate.After(prevDate)) {
				continue
			}
			switch p := c.Params.(type) {
			case models.BalanceChangeParams:
				if _, ok := balances[p.AccountID]; !ok {
					return nil, fmt.Errorf("change %s targets unknown account %s", c.Type, p.AccountID)
				}
				if p.Adjustment == models.AdjustmentAbsolute {
					balances[p.AccountID] = money.Round2(p.Amount)
				} else {
					balances[p.AccountID] = money.Round2(balances[p.AccountID].Add(p.Amount))
				}
			case models.LumpSumParams:
				if _, ok := balances[p.AccountID]; !ok {
					return nil, fmt.Errorf("lump_sum targets unknown account %s", p.AccountID)
				}
				balances[p.AccountID] = money.Round2(balances[p.AccountID].Add(p.Amount))
			case models.PayoffParams:
				if _, ok := debtRate[p.AccountID]; !ok {
					return nil, fmt.Errorf("debt_payoff targets unknown liability %s", p.AccountID)
				}
				balances[p.AccountID] = decimal.Zero
				paidOff[p.AccountID] = true
			case models.RefinanceParams:
				if _, ok := debtRate[p.AccountID]; !ok {
					return nil, fmt.Errorf("refinance targets unknown liability %s", p.AccountID)
				}
				debtRate[p.AccountID] = p.NewRate
				if p.NewBalance != nil {
					balances[p.AccountID] = money.Round2(*p.NewBalance)
				}
				debtPayment[p.AccountID] = money.AmortizedPayment(balances[p.AccountID], p.NewRate, p.NewTermMonths)
			}
		}

		// Step 2b: effective income/expense maps for this month, built fresh
		// from grown base flows so windowed deltas never compound across
		// months.
		income := make(map[string]decimal.Decimal)
		expenses := make(map[string]decimal.Decimal)
		essential := decimal.Zero
		for _, f := range in.Flows {
			if f.AccountID != "" {
				if _, isDebt := debtRate[f.AccountID]; isDebt {
					continue // debt payments handled below against balances
				}
			}
			switch f.Direction {
			case models.FlowDirectionIncome:
				amt := f.Monthly.Mul(decimal.NewFromFloat(incomeFactor)).Round(2)
				income[f.Category] = income[f.Category].Add(amt)
			case models.FlowDirectionExpense:
				amt := f.Monthly.Mul(decimal.NewFromFloat(expenseFactor)).Round(2)
				expenses[f.Category] = expenses[f.Category].Add(amt)
				if f.IsEssential {
					essential = essential.Add(amt)
				}
			}
		}

		contributionRate := 0.0
		for _, c := range active {
			switch p := c.Params.(type) {
			case models.FlowChangeParams:
				target := income
				if c.Type == models.ChangeExpenseAdd || c.Type == models.ChangeExpenseModify || c.Type == models.ChangeExpenseRemove {
					target = expenses
				}
				switch c.Type {
				case models.ChangeIncomeAdd, models.ChangeExpenseAdd:
					target[p.Category] = target[p.Category].Add(money.Round2(p.Amount))
				case models.ChangeIncomeModify, models.ChangeExpenseModify:
					if p.Adjustment == models.AdjustmentAbsolute {
						target[p.Category] = money.Round2(p.Amount)
					} else {
						target[p.Category] = money.Round2(target[p.Category].Add(p.Amount))
					}
				case models.ChangeIncomeRemove, models.ChangeExpenseRemove:
					delete(target, p.Category)
				}
			case models.ContributionRateParams:
				contributionRate = p.Rate
			}
		}

		// Step 3: grow non-debt assets by the monthly equivalent of their
		// annual rate. Investment buckets compound at the return rate,
		// property at inflation, liquid cash holds nominal value.
		for id, t := range accountType {
			switch {
			case t == models.AccountTypeRetirement || t == models.AccountTypeBrokerage:
				balances[id] = money.Grow(balances[id], in.InvestmentReturnRate)
			case t == models.AccountTypeProperty || t == models.AccountTypeOtherAsset:
				balances[id] = money.Grow(balances[id], in.InflationRate)
			}
		}

		// Step 4: amortize each liability that still carries a payment.
		debtService := decimal.Zero
		for _, id := range accountOrder {
			t := accountType[id]
			if !t.IsLiabilityType() || paidOff[id] {
				continue
			}
			payment := debtPayment[id]
			if payment.Sign() <= 0 || balances[id].Sign() <= 0 {
				continue
			}
			interest, principal := money.SplitPayment(balances[id], payment, debtRate[id])
			paid := interest.Add(principal)
			balances[id] = balances[id].Sub(principal)

			category := PaymentCategory(t)
			expenses[category] = expenses[category].Add(paid)
			essential = essential.Add(paid)
			debtService = debtService.Add(paid)
		}

		// Step 5: aggregate totals and settle the month's cash into the
		// liquid bucket, redirecting the contribution slice to retirement.
		totalIncome := sumValues(income)
		totalExpenses := sumValues(expenses)
		netCashFlow := totalIncome.Sub(totalExpenses)

		contribution := decimal.Zero
		if contributionRate > 0 && totalIncome.Sign() > 0 {
			contribution = totalIncome.Mul(decimal.NewFromFloat(contributionRate)).Round(2)
			balances[retirementID] = balances[retirementID].Add(contribution)
		}
		balances[cashID] = balances[cashID].Add(netCashFlow).Sub(contribution)

		totalAssets, liquidAssets, retirementAssets, totalLiabilities := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
		for id, t := range accountType {
			b := balances[id]
			if t.IsLiabilityType() {
				totalLiabilities = totalLiabilities.Add(b)
				continue
			}
			totalAssets = totalAssets.Add(b)
			if t.IsLiquidType() {
				liquidAssets = liquidAssets.Add(b)
			}
			if t == models.AccountTypeRetirement {
				retirementAssets = retirementAssets.Add(b)
			}
		}

		// Step 6: zero-guarded ratios.
		row := simMonth{
			MonthNumber:      m,
			MonthDate:        monthDate,
			TotalAssets:      totalAssets,
			LiquidAssets:     liquidAssets,
			RetirementAssets: retirementAssets,
			TotalLiabilities: totalLiabilities,
			NetWorth:         totalAssets.Sub(totalLiabilities),
			TotalIncome:      totalIncome,
			TotalExpenses:    totalExpenses,
			NetCashFlow:      netCashFlow,
			DebtService:      debtService,
			IncomeBreakdown:  income,
			ExpenseBreakdown: expenses,
		}
		if debtService.Sign() > 0 {
			row.DSCR = totalIncome.Div(debtService).Round(4)
		}
		if totalIncome.Sign() > 0 {
			row.SavingsRate = netCashFlow.Div(totalIncome).Round(4)
		}
		if essential.Sign() > 0 {
			row.LiquidityMonths = liquidAssets.Div(essential).Round(4)
		}
		if totalExpenses.Sign() > 0 {
			annualExpenses := totalExpenses.Mul(decimal.NewFromInt(12))
			row.DaysCashOnHand = liquidAssets.Mul(decimal.NewFromInt(365)).Div(annualExpenses).Round(2)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func sumValues(m map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}
