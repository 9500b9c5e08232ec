package core

import "errors"

// Ledger error taxonomy. Every failed operation maps to exactly one of these
// sentinels; callers match with errors.Is. All failures are recoverable by
// retrying with corrected input; none leaves partial state behind.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBudgetExceeded    = errors.New("budget exceeded")
	ErrGoalNotMet        = errors.New("goal not met")
	ErrAlreadyExists     = errors.New("already exists")
	ErrGoalExpired       = errors.New("goal expired")
)
