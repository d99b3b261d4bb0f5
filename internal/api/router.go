package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/coupon"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CouponValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal, email string) (*coupon.Result, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, in checkout.CreateOrderInput) (*models.Order, error)
	CreateCheckoutSession(ctx context.Context, orderID int64) (string, error)
	VerifyAndRecord(ctx context.Context, orderID int64, sessionID string) (string, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error)
	ClaimNextPaidOrder(ctx context.Context) (*models.Order, error)
}

// Repository covers the read and admin paths that need no business logic
// beyond the store.
type Repository interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, email, cursor string, limit int) (*store.CursorPage, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) (*models.Coupon, error)
	ListCoupons(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	DeactivateCoupon(ctx context.Context, code string) error
	CreateDonation(ctx context.Context, d *models.Donation) (*models.Donation, error)
	GetDonation(ctx context.Context, id int64) (*models.Donation, error)
	ListDonations(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	MonthlyDonationStats(ctx context.Context, months int) ([]models.MonthlyDonationStats, error)
}

type Deps struct {
	Orders  OrderService
	Coupons CouponValidator
	Repo    Repository
	Health  func(ctx context.Context) error
	Log     logrus.FieldLogger
}

type handler struct {
	orders   OrderService
	coupons  CouponValidator
	repo     Repository
	health   func(ctx context.Context) error
	log      logrus.FieldLogger
	validate *validator.Validate
}

// NewRouter builds the HTTP router for the storefront service.
func NewRouter(deps Deps) http.Handler {
	h := &handler{
		orders:   deps.Orders,
		coupons:  deps.Coupons,
		repo:     deps.Repo,
		health:   deps.Health,
		log:      deps.Log,
		validate: newValidate(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.getHealth)

	r.Post("/coupons/validate", h.validateCoupon)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.updateOrderStatus)
	})

	r.Route("/stripe", func(r chi.Router) {
		r.Post("/create-checkout-session", h.createCheckoutSession)
		r.Post("/verify-session", h.verifySession)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/coupons", h.createCoupon)
		r.Get("/coupons", h.listCoupons)
		r.Get("/coupons/{code}", h.getCoupon)
		r.Delete("/coupons/{code}", h.deactivateCoupon)
		r.Post("/orders/claim", h.claimNextOrder)
	})

	r.Route("/donations", func(r chi.Router) {
		r.Post("/", h.createDonation)
		r.Get("/", h.listDonations)
		r.Get("/stats/monthly", h.monthlyDonationStats)
		r.Get("/{id}", h.getDonation)
	})

	return r
}

func (h *handler) getHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.log.WithError(err).Error("health check failed")
			h.respondError(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
