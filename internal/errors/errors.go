// Package errors provides the structured error type used across the Horizon
// core. Service-layer code returns AppErrors so that callers (the HTTP
// adapter, the batch processor) can distinguish input errors from internal
// failures without string matching, and so internal detail never leaks into
// responses.
package errors

import "net/http"

// AppError is a structured application error with a stable code, a
// human-readable message, an HTTP status for the REST adapter, and an
// optional wrapped internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap returns a copy of sentinel carrying internal as the wrapped cause.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage returns a copy of sentinel with a more specific message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Household errors.
var (
	ErrHouseholdNotFound = &AppError{Code: "HOUSEHOLD_NOT_FOUND", Message: "Household not found", StatusCode: http.StatusNotFound}
	ErrAccountNotFound   = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
)

// Scenario and projection errors.
var (
	ErrScenarioNotFound   = &AppError{Code: "SCENARIO_NOT_FOUND", Message: "Scenario not found", StatusCode: http.StatusNotFound}
	ErrNoBaseline         = &AppError{Code: "NO_BASELINE", Message: "Household has no live baseline scenario", StatusCode: http.StatusNotFound}
	ErrBaselinePinned     = &AppError{Code: "BASELINE_PINNED", Message: "Scenario baseline is pinned and cannot be recomputed", StatusCode: http.StatusConflict}
	ErrInvalidChangeType  = &AppError{Code: "INVALID_CHANGE_TYPE", Message: "Unknown scenario change type", StatusCode: http.StatusBadRequest}
	ErrInvalidChangeParam = &AppError{Code: "INVALID_CHANGE_PARAMS", Message: "Malformed scenario change parameters", StatusCode: http.StatusBadRequest}
	ErrInvalidHorizon     = &AppError{Code: "INVALID_HORIZON", Message: "Projection horizon must be positive", StatusCode: http.StatusBadRequest}
)

// Event pipeline errors.
var (
	ErrEventNotFound    = &AppError{Code: "EVENT_NOT_FOUND", Message: "Reality change event not found", StatusCode: http.StatusNotFound}
	ErrInvalidEventType = &AppError{Code: "INVALID_EVENT_TYPE", Message: "Unknown reality change event type", StatusCode: http.StatusBadRequest}
	ErrRefreshTimeout   = &AppError{Code: "REFRESH_TIMEOUT", Message: "Household refresh exceeded its time limit", StatusCode: http.StatusServiceUnavailable}
	ErrRefreshContended = &AppError{Code: "REFRESH_CONTENDED", Message: "Household refresh already in flight", StatusCode: http.StatusConflict}
)

// Goal errors.
var (
	ErrGoalNotFound           = &AppError{Code: "GOAL_NOT_FOUND", Message: "Goal not found", StatusCode: http.StatusNotFound}
	ErrInvalidGoalType        = &AppError{Code: "INVALID_GOAL_TYPE", Message: "Unknown goal type", StatusCode: http.StatusBadRequest}
	ErrInvalidIntervention    = &AppError{Code: "INVALID_INTERVENTION", Message: "Unknown solver intervention kind", StatusCode: http.StatusBadRequest}
	ErrGoalSolutionNotFound   = &AppError{Code: "GOAL_SOLUTION_NOT_FOUND", Message: "Goal solution not found", StatusCode: http.StatusNotFound}
	ErrGoalSolutionUnsolvable = &AppError{Code: "GOAL_SOLUTION_UNSOLVABLE", Message: "Goal solution did not reach the target and cannot be materialized", StatusCode: http.StatusUnprocessableEntity}
)
