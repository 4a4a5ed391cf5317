package types

import (
	"errors"
	"fmt"
)

var (
	ErrNeedNotFound       = errors.New("need not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrBasketItemNotFound = errors.New("basket item not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrSignupNotFound     = errors.New("signup not found")
	ErrForbidden          = errors.New("manager role required")
	ErrEmptyBasket        = errors.New("basket is empty")
)

// ValidationError reports a bad input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AvailabilityError is returned when a requested quantity does not fit in
// what is left of a need.
type AvailabilityError struct {
	NeedID    string
	NeedTitle string
	Requested int
	Available int
}

func (e *AvailabilityError) Error() string {
	if e.Available == 0 {
		return fmt.Sprintf("need %q (%s) is fully funded: requested %d, available 0", e.NeedTitle, e.NeedID, e.Requested)
	}
	return fmt.Sprintf("insufficient availability for need %q (%s): requested %d, available %d", e.NeedTitle, e.NeedID, e.Requested, e.Available)
}
