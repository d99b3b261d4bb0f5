// Package checkout prices orders, hands them to the payment provider and
// reconciles the provider's outcome back onto the order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/safar/storefront/internal/coupon"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// MaxOrderTotal is the largest order total the provider will charge.
	MaxOrderTotal = decimal.RequireFromString("999999.99")

	hundred = decimal.NewFromInt(100)
)

// MaxChargeMinor is the provider's ceiling in minor units.
const MaxChargeMinor int64 = 99_999_999

type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	SetCheckoutSession(ctx context.Context, orderID int64, sessionID string) error
	RecordPayment(ctx context.Context, p *models.OrderPayment) (bool, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) error
	ClaimNextPaidOrder(ctx context.Context) (*models.Order, error)
}

type CouponValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal, email string) (*coupon.Result, error)
}

type Service struct {
	store     Store
	coupons   CouponValidator
	provider  PaymentProvider
	publisher events.Publisher
	log       logrus.FieldLogger
}

func NewService(store Store, coupons CouponValidator, provider PaymentProvider, publisher events.Publisher, log logrus.FieldLogger) *Service {
	return &Service{
		store:     store,
		coupons:   coupons,
		provider:  provider,
		publisher: publisher,
		log:       log,
	}
}

type CreateOrderInput struct {
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   string
	ShippingAddress models.Address
	BillingAddress  models.Address
	Items           []LineItemInput
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
	CouponCode      string
	Notes           string
}

// LineItemInput is one cart line as submitted. UnitPrice is parsed here so
// a bad price can be reported against the item that carried it.
type LineItemInput struct {
	ProductID string
	Name      string
	SKU       string
	Category  string
	Image     string
	UnitPrice string
	Quantity  int
}

// CreateOrder prices the cart on the server, applies the coupon if one is
// given, and persists the order atomically. Nothing is written when the
// total exceeds MaxOrderTotal.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoLineItems
	}
	if in.ShippingCost.IsNegative() || in.Tax.IsNegative() {
		return nil, ErrInvalidAmount
	}

	items, subtotal, err := priceItems(in.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Subtotal:        subtotal,
		ShippingCost:    in.ShippingCost.Round(2),
		Tax:             in.Tax.Round(2),
		DiscountAmount:  decimal.Zero,
		Notes:           in.Notes,
		Items:           items,
	}

	if code := strings.TrimSpace(in.CouponCode); code != "" {
		result, err := s.coupons.Validate(ctx, code, subtotal, order.CustomerEmail)
		if err != nil {
			return nil, err
		}

		c := result.Coupon
		order.DiscountAmount = result.DiscountAmount
		order.CouponCode = &c.Code
		order.CouponDiscountType = &c.DiscountType
		value := c.DiscountValue
		order.CouponDiscountValue = &value
	}

	order.Total = order.Subtotal.
		Add(order.ShippingCost).
		Add(order.Tax).
		Sub(order.DiscountAmount).
		Round(2)

	if order.Total.GreaterThan(MaxOrderTotal) {
		s.log.WithFields(logrus.Fields{
			"email": order.CustomerEmail,
			"total": order.Total.StringFixed(2),
		}).Warn("order rejected above charge limit")
		return nil, ErrAmountExceedsLimit
	}

	created, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		return nil, mapCouponStoreError(err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     created.ID,
		"order_number": created.OrderNumber,
		"total":        created.Total.StringFixed(2),
		"coupon":       order.CouponCode != nil,
	}).Info("order created")

	s.publish(ctx, events.TypeOrderCreated, created)

	return created, nil
}

func priceItems(in []LineItemInput) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(in))
	subtotal := decimal.Zero

	for i, li := range in {
		name := strings.TrimSpace(li.Name)
		if name == "" {
			return nil, decimal.Zero, &InvalidLineItemError{Index: i, Name: li.Name, Reason: "name is required"}
		}

		price, err := decimal.NewFromString(strings.TrimSpace(li.UnitPrice))
		if err != nil {
			return nil, decimal.Zero, &InvalidLineItemError{Index: i, Name: name, Reason: fmt.Sprintf("unparsable price %q", li.UnitPrice)}
		}
		if price.IsNegative() {
			return nil, decimal.Zero, &InvalidLineItemError{Index: i, Name: name, Reason: "price must not be negative"}
		}
		if li.Quantity < 1 {
			return nil, decimal.Zero, &InvalidLineItemError{Index: i, Name: name, Reason: "quantity must be at least 1"}
		}

		price = price.Round(2)
		lineTotal := price.Mul(decimal.NewFromInt(int64(li.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		items = append(items, models.OrderItem{
			ProductID:       li.ProductID,
			ProductName:     name,
			ProductSKU:      li.SKU,
			ProductCategory: li.Category,
			ProductImage:    li.Image,
			UnitPrice:       price,
			Quantity:        li.Quantity,
			LineTotal:       lineTotal,
		})
	}

	return items, subtotal, nil
}

// mapCouponStoreError turns redemption failures detected under the coupon
// row lock into the same rule errors validation reports.
func mapCouponStoreError(err error) error {
	switch {
	case errors.Is(err, database.ErrCouponExhausted):
		return coupon.ErrExhausted
	case errors.Is(err, database.ErrCustomerLimit):
		return coupon.ErrExhaustedForCustomer
	case errors.Is(err, database.ErrCouponNotFound):
		return coupon.ErrNotFound
	}
	return fmt.Errorf("create order: %w", err)
}

// ToMinorUnits converts a decimal amount to cents, rounding half-up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// CreateCheckoutSession opens a hosted checkout session for a stored order
// and remembers its id for reconciliation.
func (s *Service) CreateCheckoutSession(ctx context.Context, orderID int64) (string, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.PaymentStatus == models.PaymentStatusCompleted {
		return "", ErrAlreadyPaid
	}
	if order.Status != models.OrderStatusPending {
		return "", ErrOrderNotPayable
	}

	req := SessionRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Discount:      ToMinorUnits(order.DiscountAmount),
		Version:       order.Version,
	}

	var sum int64
	for _, item := range order.Items {
		unit := ToMinorUnits(item.UnitPrice)
		req.LineItems = append(req.LineItems, SessionLineItem{
			Name:       item.ProductName,
			UnitAmount: unit,
			Quantity:   int64(item.Quantity),
		})
		sum += unit * int64(item.Quantity)
	}

	for _, extra := range []struct {
		name   string
		amount decimal.Decimal
	}{
		{"Shipping", order.ShippingCost},
		{"Tax", order.Tax},
	} {
		if !extra.amount.IsPositive() {
			continue
		}
		unit := ToMinorUnits(extra.amount)
		req.LineItems = append(req.LineItems, SessionLineItem{Name: extra.name, UnitAmount: unit, Quantity: 1})
		sum += unit
	}

	if sum-req.Discount > MaxChargeMinor {
		s.log.WithFields(logrus.Fields{
			"order_id": order.ID,
			"amount":   sum - req.Discount,
		}).Warn("checkout rejected above charge limit")
		return "", ErrAmountExceedsLimit
	}

	session, err := s.provider.CreateSession(ctx, req)
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Error("create checkout session failed")
		return "", &ProviderError{Op: "create session", Err: err}
	}

	if err := s.store.SetCheckoutSession(ctx, order.ID, session.ID); err != nil {
		return "", fmt.Errorf("store checkout session: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"session_id": session.ID,
	}).Info("checkout session created")

	return session.URL, nil
}

// VerifyAndRecord asks the provider for the session's payment status. A paid
// session is recorded once and marks the order COMPLETED; an unpaid one is
// reported as ErrPaymentIncomplete without touching the order. Any other
// status is returned as is.
func (s *Service) VerifyAndRecord(ctx context.Context, orderID int64, sessionID string) (string, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" && order.StripeSessionID != nil {
		sessionID = *order.StripeSessionID
	}
	if sessionID == "" {
		return "", ErrNoSessionHandle
	}

	result, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Error("retrieve checkout session failed")
		return "", &ProviderError{Op: "retrieve session", Err: err}
	}

	if result.OrderRef != "" && result.OrderRef != strconv.FormatInt(order.ID, 10) {
		return "", ErrSessionMismatch
	}

	switch result.PaymentStatus {
	case SessionPaid:
		transactionID := result.TransactionID
		if transactionID == "" {
			transactionID = result.ID
		}

		payment := &models.OrderPayment{
			OrderID:       order.ID,
			PaymentMethod: "stripe",
			Amount:        decimal.New(result.AmountTotal, -2),
			Currency:      strings.ToUpper(result.Currency),
			TransactionID: transactionID,
			Status:        models.PaymentStatusCompleted,
			RawResponse:   result.Raw,
		}

		inserted, err := s.store.RecordPayment(ctx, payment)
		if err != nil {
			return "", fmt.Errorf("record payment: %w", err)
		}

		logger := s.log.WithFields(logrus.Fields{
			"order_id":       order.ID,
			"session_id":     sessionID,
			"transaction_id": transactionID,
		})
		if !inserted {
			logger.Info("payment already recorded")
			return models.PaymentStatusCompleted, nil
		}
		if order.Status == models.OrderStatusCancelled {
			// The session was opened before the order was cancelled.
			logger.Error("payment received for cancelled order; refund required")
		} else {
			logger.Info("payment recorded")
		}

		order.PaymentStatus = models.PaymentStatusCompleted
		s.publish(ctx, events.TypeOrderPaid, order)

		return models.PaymentStatusCompleted, nil

	case SessionUnpaid:
		return "", ErrPaymentIncomplete

	default:
		return result.PaymentStatus, nil
	}
}

// UpdateStatus applies a fulfilment transition allowed by
// models.CanTransition.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, status)
	}

	if err := s.store.UpdateOrderStatus(ctx, order.ID, order.Status, status); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     order.Status,
		"to":       status,
	}).Info("order status changed")

	order.Status = status
	s.publish(ctx, events.TypeOrderStatusChanged, order)

	return order, nil
}

// ClaimNextPaidOrder hands the oldest paid order to fulfilment.
func (s *Service) ClaimNextPaidOrder(ctx context.Context) (*models.Order, error) {
	order, err := s.store.ClaimNextPaidOrder(ctx)
	if err != nil {
		return nil, err
	}

	s.log.WithField("order_id", order.ID).Info("order claimed for fulfilment")
	s.publish(ctx, events.TypeOrderStatusChanged, order)

	return order, nil
}

// publish is best effort; the order is already committed.
func (s *Service) publish(ctx context.Context, eventType string, order *models.Order) {
	if err := s.publisher.Publish(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":    eventType,
			"order_id": order.ID,
		}).Warn("publish event failed")
	}
}
