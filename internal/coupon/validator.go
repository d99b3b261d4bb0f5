// Package coupon decides whether a coupon code applies to a cart and how
// much it takes off.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// usageUnknown skips the per-customer cap when no email is known yet.
const usageUnknown = -1

var hundred = decimal.NewFromInt(100)

type Repository interface {
	FindActiveCoupon(ctx context.Context, code string) (*models.Coupon, error)
	CountCustomerUsage(ctx context.Context, couponID int64, email string) (int, error)
}

type Result struct {
	Coupon         *models.Coupon
	DiscountAmount decimal.Decimal
}

type Validator struct {
	repo Repository
	now  func() time.Time
}

func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate looks the code up and applies the eligibility rules in order,
// stopping at the first one that fails. It never changes usage counters.
func (v *Validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal, email string) (*Result, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCodeRequired
	}

	c, err := v.repo.FindActiveCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrCouponNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find coupon")
	}

	if err := checkWindow(c, v.now()); err != nil {
		return nil, err
	}
	if err := checkGlobalCap(c); err != nil {
		return nil, err
	}

	uses := usageUnknown
	email = strings.TrimSpace(email)
	if c.MaximumUsesPerCustomer != nil && email != "" {
		uses, err = v.repo.CountCustomerUsage(ctx, c.ID, email)
		if err != nil {
			return nil, errors.Wrap(err, "count customer usage")
		}
	}
	if err := checkCustomerCap(c, uses); err != nil {
		return nil, err
	}

	discount, err := Discount(c, subtotal)
	if err != nil {
		return nil, err
	}

	return &Result{Coupon: c, DiscountAmount: discount}, nil
}

// checkWindow enforces the validity window. Both bounds are inclusive.
func checkWindow(c *models.Coupon, now time.Time) error {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrNotYetValid
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrExpired
	}
	return nil
}

func checkGlobalCap(c *models.Coupon) error {
	if c.MaximumUses != nil && c.UsedCount >= *c.MaximumUses {
		return ErrExhausted
	}
	return nil
}

func checkCustomerCap(c *models.Coupon, uses int) error {
	if c.MaximumUsesPerCustomer == nil || uses == usageUnknown {
		return nil
	}
	if uses >= *c.MaximumUsesPerCustomer {
		return ErrExhaustedForCustomer
	}
	return nil
}

// Discount checks the minimum purchase and computes the discount, capped at
// the subtotal and rounded half-up to cents.
func Discount(c *models.Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if c.MinimumPurchase != nil && subtotal.LessThan(*c.MinimumPurchase) {
		return decimal.Zero, &BelowMinimumError{Minimum: *c.MinimumPurchase}
	}

	var raw decimal.Decimal
	switch c.DiscountType {
	case models.DiscountTypePercentage:
		raw = subtotal.Mul(c.DiscountValue).Div(hundred)
	case models.DiscountTypeFixedAmount:
		raw = c.DiscountValue
	default:
		return decimal.Zero, errors.Errorf("unknown discount type %q", c.DiscountType)
	}

	if raw.GreaterThan(subtotal) {
		raw = subtotal
	}
	if raw.IsNegative() {
		raw = decimal.Zero
	}

	return raw.Round(2), nil
}
