package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// rawAmount accepts a JSON number or string and keeps its text so the
// service can report unparsable prices per item.
type rawAmount string

func (a *rawAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = rawAmount(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	*a = rawAmount(b)
	return nil
}

type validateCouponRequest struct {
	CouponCode string          `json:"couponCode" validate:"required"`
	CartTotal  decimal.Decimal `json:"cartTotal"`
	Email      string          `json:"email" validate:"omitempty,email"`
}

type validateCouponResponse struct {
	Code           string `json:"code"`
	DiscountAmount string `json:"discountAmount"`
	DiscountType   string `json:"discountType"`
	DiscountValue  string `json:"discountValue"`
}

type addressRequest struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

func (a addressRequest) model() models.Address {
	return models.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type orderItemRequest struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name" validate:"required"`
	SKU       string    `json:"sku"`
	Category  string    `json:"category"`
	Image     string    `json:"image"`
	Price     rawAmount `json:"price"`
	Quantity  int       `json:"quantity"`
}

type createOrderRequest struct {
	CustomerEmail   string             `json:"customerEmail" validate:"required,email"`
	CustomerName    string             `json:"customerName" validate:"required"`
	CustomerPhone   string             `json:"customerPhone"`
	ShippingAddress addressRequest     `json:"shippingAddress" validate:"required"`
	BillingAddress  *addressRequest    `json:"billingAddress" validate:"omitempty"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingCost    decimal.Decimal    `json:"shippingCost"`
	Tax             decimal.Decimal    `json:"tax"`
	CouponCode      string             `json:"couponCode"`
	Notes           string             `json:"notes"`
}

type createOrderResponse struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Total       string `json:"total"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PROCESSING SHIPPED DELIVERED CANCELLED"`
}

type checkoutSessionRequest struct {
	OrderID int64 `json:"orderId" validate:"required,gt=0"`
}

type checkoutSessionResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

type verifySessionRequest struct {
	OrderID   int64  `json:"orderId" validate:"required,gt=0"`
	SessionID string `json:"sessionId"`
}

type verifySessionResponse struct {
	PaymentStatus string `json:"paymentStatus"`
}

type createCouponRequest struct {
	Code                   string           `json:"code" validate:"required,max=64"`
	Description            string           `json:"description"`
	DiscountType           string           `json:"discountType" validate:"required,oneof=percentage fixed_amount"`
	DiscountValue          decimal.Decimal  `json:"discountValue"`
	MinimumPurchase        *decimal.Decimal `json:"minimumPurchase"`
	MaximumUses            *int             `json:"maximumUses" validate:"omitempty,min=0"`
	MaximumUsesPerCustomer *int             `json:"maximumUsesPerCustomer" validate:"omitempty,min=0"`
	ValidFrom              *time.Time       `json:"validFrom"`
	ValidUntil             *time.Time       `json:"validUntil"`
	IsActive               *bool            `json:"isActive"`
}

type createDonationRequest struct {
	ProductName    string          `json:"productName" validate:"required"`
	ProductSKU     string          `json:"productSku"`
	Quantity       int             `json:"quantity" validate:"required,min=1"`
	UnitValue      decimal.Decimal `json:"unitValue"`
	FireDepartment string          `json:"fireDepartment" validate:"required"`
	City           string          `json:"city"`
	State          string          `json:"state"`
	DonatedAt      *time.Time      `json:"donatedAt"`
	Notes          string          `json:"notes"`
}
