// Package stripe implements checkout.PaymentProvider on Stripe Checkout.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/config"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type couponAPI interface {
	New(params *stripe.CouponParams) (*stripe.Coupon, error)
}

type Client struct {
	sessions   sessionAPI
	coupons    couponAPI
	currency   string
	successURL string
	cancelURL  string
}

func New(cfg config.StripeConfig) *Client {
	sc := client.New(cfg.SecretKey, nil)
	return newClient(sc.CheckoutSessions, sc.Coupons, cfg)
}

func newClient(sessions sessionAPI, coupons couponAPI, cfg config.StripeConfig) *Client {
	return &Client{
		sessions:   sessions,
		coupons:    coupons,
		currency:   cfg.Currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

// CreateSession creates a payment-mode Checkout Session. A non-zero
// discount becomes a single-use amount-off coupon so Stripe charges exactly
// the order total.
func (c *Client) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(req.OrderID, 10)),
	}
	idempotencyKey := fmt.Sprintf("checkout-%d-%d", req.OrderID, req.Version)

	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	params.AddMetadata("order_id", strconv.FormatInt(req.OrderID, 10))
	params.AddMetadata("order_number", req.OrderNumber)

	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(c.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	if req.Discount > 0 {
		couponParams := &stripe.CouponParams{
			AmountOff:      stripe.Int64(req.Discount),
			Currency:       stripe.String(c.currency),
			Duration:       stripe.String(string(stripe.CouponDurationOnce)),
			MaxRedemptions: stripe.Int64(1),
			Name:           stripe.String(fmt.Sprintf("Order %s discount", req.OrderNumber)),
		}
		couponParams.Context = ctx
		couponParams.SetIdempotencyKey(idempotencyKey + "-discount")

		cp, err := c.coupons.New(couponParams)
		if err != nil {
			return nil, fmt.Errorf("create discount coupon: %w", err)
		}

		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(cp.ID)},
		}
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &checkout.Session{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*checkout.SessionResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	s, err := c.sessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	result := &checkout.SessionResult{
		ID:            s.ID,
		OrderRef:      s.ClientReferenceID,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
	}
	if s.PaymentIntent != nil {
		result.TransactionID = s.PaymentIntent.ID
	}

	if s.LastResponse != nil && len(s.LastResponse.RawJSON) > 0 {
		result.Raw = json.RawMessage(s.LastResponse.RawJSON)
	} else if raw, err := json.Marshal(s); err == nil {
		result.Raw = raw
	}

	return result, nil
}
