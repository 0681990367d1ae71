// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"horizon/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("event_type", validateEventType)
		_ = v.RegisterValidation("change_type", validateChangeType)
		_ = v.RegisterValidation("goal_type", validateGoalType)
		_ = v.RegisterValidation("intervention_kind", validateInterventionKind)
		_ = v.RegisterValidation("flow_direction", validateFlowDirection)
		_ = v.RegisterValidation("flow_frequency", validateFlowFrequency)
		_ = v.RegisterValidation("account_type", validateAccountType)
		_ = v.RegisterValidation("adjustment", validateAdjustment)
	}
}

func validateEventType(fl validator.FieldLevel) bool {
	return models.ValidEventType(models.EventType(fl.Field().String()))
}

func validateChangeType(fl validator.FieldLevel) bool {
	switch models.ChangeType(fl.Field().String()) {
	case models.ChangeIncomeAdd, models.ChangeIncomeModify, models.ChangeIncomeRemove,
		models.ChangeExpenseAdd, models.ChangeExpenseModify, models.ChangeExpenseRemove,
		models.ChangeAssetModify, models.ChangeDebtModify, models.ChangeLumpSum,
		models.ChangeDebtPayoff, models.ChangeRefinance, models.ChangeContributionRate:
		return true
	}
	return false
}

func validateGoalType(fl validator.FieldLevel) bool {
	return models.ValidGoalType(models.GoalType(fl.Field().String()))
}

func validateInterventionKind(fl validator.FieldLevel) bool {
	return models.ValidInterventionKind(models.InterventionKind(fl.Field().String()))
}

func validateFlowDirection(fl validator.FieldLevel) bool {
	switch models.FlowDirection(fl.Field().String()) {
	case models.FlowDirectionIncome, models.FlowDirectionExpense:
		return true
	}
	return false
}

func validateFlowFrequency(fl validator.FieldLevel) bool {
	switch models.FlowFrequency(fl.Field().String()) {
	case models.FrequencyWeekly, models.FrequencyBiweekly, models.FrequencyMonthly,
		models.FrequencyQuarterly, models.FrequencyAnnual:
		return true
	}
	return false
}

func validateAccountType(fl validator.FieldLevel) bool {
	t := models.AccountType(fl.Field().String())
	switch t {
	case models.AccountTypeCash, models.AccountTypeChecking, models.AccountTypeSavings,
		models.AccountTypeBrokerage, models.AccountTypeRetirement,
		models.AccountTypeProperty, models.AccountTypeOtherAsset:
		return true
	}
	return t.IsLiabilityType()
}

func validateAdjustment(fl validator.FieldLevel) bool {
	switch models.Adjustment(fl.Field().String()) {
	case models.AdjustmentAbsolute, models.AdjustmentDelta:
		return true
	}
	return false
}
