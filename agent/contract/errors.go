package contract

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")

	ErrAgentNotFound          = errors.New("agent not found")
	ErrRestaurantNotFound     = errors.New("restaurant not found")
	ErrThreadNotFound         = errors.New("thread not found")
	ErrThreadExists           = errors.New("thread already exists for pair")
	ErrEnquiryNotFound        = errors.New("enquiry not found")
	ErrEnquiryAlreadyResolved = errors.New("enquiry already resolved")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrStepBudgetExceeded     = errors.New("generation step budget exceeded")
)
