package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountTypePercentage  = "percentage"
	DiscountTypeFixedAmount = "fixed_amount"
)

type Coupon struct {
	ID                     int64            `json:"id"`
	Code                   string           `json:"code"`
	Description            string           `json:"description,omitempty"`
	DiscountType           string           `json:"discount_type"`
	DiscountValue          decimal.Decimal  `json:"discount_value"`
	MinimumPurchase        *decimal.Decimal `json:"minimum_purchase,omitempty"`
	MaximumUses            *int             `json:"maximum_uses,omitempty"`
	MaximumUsesPerCustomer *int             `json:"maximum_uses_per_customer,omitempty"`
	ValidFrom              *time.Time       `json:"valid_from,omitempty"`
	ValidUntil             *time.Time       `json:"valid_until,omitempty"`
	UsedCount              int              `json:"used_count"`
	IsActive               bool             `json:"is_active"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

type CouponUsage struct {
	ID            int64     `json:"id"`
	CouponID      int64     `json:"coupon_id"`
	OrderID       int64     `json:"order_id"`
	CustomerEmail string    `json:"customer_email"`
	UsedAt        time.Time `json:"used_at"`
}

// Address is stored as JSONB on the order row.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Address) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("address: unsupported scan type")
	}
}

type Order struct {
	ID                  int64            `json:"id"`
	OrderNumber         string           `json:"order_number"`
	CustomerEmail       string           `json:"customer_email"`
	CustomerName        string           `json:"customer_name"`
	CustomerPhone       string           `json:"customer_phone,omitempty"`
	ShippingAddress     Address          `json:"shipping_address"`
	BillingAddress      Address          `json:"billing_address"`
	Subtotal            decimal.Decimal  `json:"subtotal"`
	ShippingCost        decimal.Decimal  `json:"shipping_cost"`
	Tax                 decimal.Decimal  `json:"tax"`
	DiscountAmount      decimal.Decimal  `json:"discount_amount"`
	Total               decimal.Decimal  `json:"total"`
	CouponCode          *string          `json:"coupon_code,omitempty"`
	CouponDiscountType  *string          `json:"coupon_discount_type,omitempty"`
	CouponDiscountValue *decimal.Decimal `json:"coupon_discount_value,omitempty"`
	Status              string           `json:"status"`
	PaymentStatus       string           `json:"payment_status"`
	StripeSessionID     *string          `json:"stripe_session_id,omitempty"`
	Notes               string           `json:"notes,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	Version             int              `json:"version"`
	Items               []OrderItem      `json:"items,omitempty"`
	Payments            []OrderPayment   `json:"payments,omitempty"`
}

// OrderItem is a snapshot of a cart line; product fields are copied, not
// referenced.
type OrderItem struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       string          `json:"product_id,omitempty"`
	ProductName     string          `json:"product_name"`
	ProductSKU      string          `json:"product_sku,omitempty"`
	ProductCategory string          `json:"product_category,omitempty"`
	ProductImage    string          `json:"product_image,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	LineTotal       decimal.Decimal `json:"line_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

type OrderPayment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	RawResponse   json.RawMessage `json:"raw_response,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Donation struct {
	ID             int64           `json:"id"`
	ProductName    string          `json:"product_name"`
	ProductSKU     string          `json:"product_sku,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitValue      decimal.Decimal `json:"unit_value"`
	FireDepartment string          `json:"fire_department"`
	City           string          `json:"city,omitempty"`
	State          string          `json:"state,omitempty"`
	DonatedAt      time.Time       `json:"donated_at"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type MonthlyDonationStats struct {
	Month      string          `json:"month"`
	Donations  int64           `json:"donations"`
	Units      int64           `json:"units"`
	TotalValue decimal.Decimal `json:"total_value"`
}

const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one fulfilment
// status to another. DELIVERED and CANCELLED are terminal.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
