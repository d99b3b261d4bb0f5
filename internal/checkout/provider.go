package checkout

import (
	"context"
	"encoding/json"
)

// Payment statuses reported by the provider for a checkout session.
const (
	SessionPaid              = "paid"
	SessionUnpaid            = "unpaid"
	SessionNoPaymentRequired = "no_payment_required"
)

type PaymentProvider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionResult, error)
}

// SessionRequest carries amounts in minor currency units.
type SessionRequest struct {
	OrderID       int64
	OrderNumber   string
	CustomerEmail string
	LineItems     []SessionLineItem
	Discount      int64
	// Version is the order's row version. Retries for the same version
	// share an idempotency key at the provider.
	Version int
}

type SessionLineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type Session struct {
	ID  string
	URL string
}

type SessionResult struct {
	ID            string
	OrderRef      string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	TransactionID string
	Raw           json.RawMessage
}
