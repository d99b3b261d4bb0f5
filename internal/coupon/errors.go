package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrCodeRequired         = errors.New("coupon code is required")
	ErrNotFound             = errors.New("invalid or inactive coupon code")
	ErrNotYetValid          = errors.New("coupon is not yet valid")
	ErrExpired              = errors.New("coupon has expired")
	ErrExhausted            = errors.New("coupon usage limit reached")
	ErrExhaustedForCustomer = errors.New("coupon usage limit reached for this customer")
	ErrBelowMinimum         = errors.New("cart total is below the coupon minimum")
)

// BelowMinimumError carries the minimum purchase so callers can show it.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum purchase of %s required for this coupon", e.Minimum.StringFixed(2))
}

func (e *BelowMinimumError) Is(target error) bool {
	return target == ErrBelowMinimum
}

var ruleViolations = []error{
	ErrCodeRequired,
	ErrNotFound,
	ErrNotYetValid,
	ErrExpired,
	ErrExhausted,
	ErrExhaustedForCustomer,
	ErrBelowMinimum,
}

// IsRuleViolation reports whether err means the coupon was rejected, as
// opposed to the lookup itself failing.
func IsRuleViolation(err error) bool {
	for _, target := range ruleViolations {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Minimum extracts the required minimum purchase from a BelowMinimum
// rejection.
func Minimum(err error) (decimal.Decimal, bool) {
	var below *BelowMinimumError
	if errors.As(err, &below) {
		return below.Minimum, true
	}
	return decimal.Zero, false
}
