package services

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "horizon/internal/errors"
	"horizon/internal/logger"
	"horizon/internal/models"
	"horizon/internal/money"
)

// flowService generates liability payment flows from account terms.
type flowService struct {
	db *gorm.DB
}

// NewFlowService creates a new FlowServicer.
func NewFlowService(db *gorm.DB) FlowServicer {
	return &flowService{db: db}
}

// RegenerateLiabilityFlows derives one recurring expense flow per payable
// liability and swaps them in for the household's previous generated set in
// a single transaction. User-declared flows are never touched.
func (s *flowService) RegenerateLiabilityFlows(householdID string) ([]models.RecurringFlow, error) {
	var liabilities []models.Account
	if err := s.db.
		Preload("Snapshots").
		Preload("LiabilityDetails").
		Where("household_id = ? AND is_active = ?", householdID, true).
		Find(&liabilities).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	generated := make([]models.RecurringFlow, 0, len(liabilities))
	for i := range liabilities {
		account := &liabilities[i]
		if !account.IsLiability() {
			continue
		}

		payment, ok := LiabilityPayment(account)
		if !ok {
			// Not payable: no term, zero balance, or revolving debt without
			// a minimum payment. Skipped silently per contract.
			continue
		}

		generated = append(generated, models.RecurringFlow{
			HouseholdID:       householdID,
			Direction:         models.FlowDirectionExpense,
			Category:          PaymentCategory(account.Type),
			Amount:            payment,
			Frequency:         models.FrequencyMonthly,
			AccountID:         &account.ID,
			IsEssential:       true,
			IsSystemGenerated: true,
			IsActive:          true,
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("household_id = ? AND is_system_generated = ?", householdID, true).
			Delete(&models.RecurringFlow{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(generated) == 0 {
			return nil
		}
		if err := tx.Create(&generated).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Debugw("regenerated liability flows",
		"household_id", householdID,
		"flows", len(generated),
	)
	return generated, nil
}

// LiabilityPayment computes the monthly payment owed on a liability account.
// An explicit minimum payment is used verbatim; otherwise the amortized
// payment is computed from rate, term, and current balance. The boolean is
// false when the liability is not payable.
func LiabilityPayment(account *models.Account) (decimal.Decimal, bool) {
	details := account.LiabilityDetails
	if details == nil {
		return decimal.Zero, false
	}

	if details.MinimumPayment != nil && details.MinimumPayment.Sign() > 0 {
		return money.Round2(*details.MinimumPayment), true
	}

	balance := account.CurrentBalance()
	if details.TermMonths == nil || *details.TermMonths <= 0 || balance.Sign() <= 0 {
		return decimal.Zero, false
	}

	return money.AmortizedPayment(balance, details.InterestRate, *details.TermMonths), true
}

// PaymentCategory maps a liability account type to its generated flow
// category.
func PaymentCategory(accountType models.AccountType) string {
	switch accountType {
	case models.AccountTypeMortgage:
		return models.CategoryMortgagePrincipal
	case models.AccountTypeAutoLoan:
		return models.CategoryAutoLoan
	case models.AccountTypeCreditCard:
		return models.CategoryCreditCardPayment
	case models.AccountTypeStudentLoan:
		return models.CategoryStudentLoanPayment
	case models.AccountTypeHELOC:
		return models.CategoryHELOCPayment
	default:
		return models.CategoryDebtPayment
	}
}
