package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrNoLineItems        = errors.New("order must contain at least one item")
	ErrInvalidLineItem    = errors.New("invalid line item")
	ErrInvalidAmount      = errors.New("shipping and tax must not be negative")
	ErrAmountExceedsLimit = errors.New("order total exceeds the maximum allowed charge")
	ErrNoSessionHandle    = errors.New("no checkout session for this order")
	ErrSessionMismatch    = errors.New("checkout session belongs to a different order")
	ErrPaymentIncomplete  = errors.New("payment has not been completed")
	ErrAlreadyPaid        = errors.New("order has already been paid")
	ErrOrderNotPayable    = errors.New("order cannot be paid in its current status")
	ErrInvalidTransition  = errors.New("invalid order status transition")
)

// InvalidLineItemError names the cart line that could not be priced.
type InvalidLineItemError struct {
	Index  int
	Name   string
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("item %d (%q): %s", e.Index+1, e.Name, e.Reason)
}

func (e *InvalidLineItemError) Is(target error) bool {
	return target == ErrInvalidLineItem
}

// ProviderError wraps a failed call to the payment provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err was caused by the request rather than by
// the store or the payment provider.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrNoLineItems,
		ErrInvalidLineItem,
		ErrInvalidAmount,
		ErrAmountExceedsLimit,
		ErrNoSessionHandle,
		ErrSessionMismatch,
		ErrPaymentIncomplete,
		ErrAlreadyPaid,
		ErrOrderNotPayable,
		ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
