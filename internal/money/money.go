// Package money centralizes monetary arithmetic for the simulation core.
// All currency amounts are shopspring decimals rounded to two places with
// half-up rounding (Decimal.Round rounds half away from zero, which is
// half-up for the non-negative amounts handled here). Growth and interest
// rates are annual fractions; the conversions to monthly rates live here so
// every component compounds the same way.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round2 rounds an amount to cents, half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts a float into a cent-rounded amount.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// MonthlyCompoundRate converts an annual growth rate into its
// monthly-compounded equivalent: (1+annual)^(1/12) - 1. Compounding this
// once per month for twelve months reproduces the annual rate exactly.
func MonthlyCompoundRate(annualRate float64) float64 {
	if annualRate == 0 {
		return 0
	}
	return math.Pow(1+annualRate, 1.0/12.0) - 1
}

// Grow applies one month of compounding at the given annual rate.
func Grow(balance decimal.Decimal, annualRate float64) decimal.Decimal {
	if annualRate == 0 || balance.IsZero() {
		return balance
	}
	monthly := decimal.NewFromFloat(MonthlyCompoundRate(annualRate))
	return balance.Add(balance.Mul(monthly)).Round(2)
}

// MonthlyInterest returns one month of simple interest on a debt balance at
// the given annual rate (annual/12, the convention for loan statements).
func MonthlyInterest(balance decimal.Decimal, annualRate float64) decimal.Decimal {
	if annualRate == 0 || balance.IsZero() {
		return decimal.Zero
	}
	monthly := decimal.NewFromFloat(annualRate).Div(decimal.NewFromInt(12))
	return balance.Mul(monthly).Round(2)
}

// AmortizedPayment computes the fixed monthly payment for a term loan:
//
//	M = P * r(1+r)^n / ((1+r)^n - 1)
//
// with r the monthly rate (annual/12) and n the term in months. A zero rate
// degenerates to straight-line P/n. Zero principal or term yields zero.
// The result is rounded half-up to cents.
func AmortizedPayment(principal decimal.Decimal, annualRate float64, termMonths int) decimal.Decimal {
	if termMonths <= 0 || principal.Sign() <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(termMonths))

	if annualRate == 0 {
		return principal.Div(n).Round(2)
	}

	r := decimal.NewFromFloat(annualRate).Div(decimal.NewFromInt(12))
	onePlusRPowN := decimal.NewFromInt(1).Add(r).Pow(n)
	payment := principal.Mul(r).Mul(onePlusRPowN).Div(onePlusRPowN.Sub(decimal.NewFromInt(1)))
	return payment.Round(2)
}

// SplitPayment divides a debt payment into its interest and principal
// portions at the given annual rate. Principal is floored so the balance
// never goes negative; the final payment of a loan is simply smaller.
func SplitPayment(balance, payment decimal.Decimal, annualRate float64) (interest, principal decimal.Decimal) {
	interest = MonthlyInterest(balance, annualRate)
	principal = payment.Sub(interest)
	if principal.Sign() < 0 {
		principal = decimal.Zero
	}
	if principal.GreaterThan(balance) {
		principal = balance
	}
	return interest, principal
}
