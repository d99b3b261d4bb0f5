package store

import (
	"context"
	"database/sql"

	"github.com/safar/storefront/internal/models"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same query
// functions run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Store binds the package functions to one connection pool. It satisfies
// the repository interfaces declared by the coupon and checkout packages.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	return GetCouponByCode(ctx, s.db, code)
}

func (s *Store) FindActiveCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	return GetActiveCouponByCode(ctx, s.db, code)
}

func (s *Store) CountCustomerUsage(ctx context.Context, couponID int64, email string) (int, error) {
	return CountCustomerUsage(ctx, s.db, couponID, email)
}

func (s *Store) CreateCoupon(ctx context.Context, c *models.Coupon) (*models.Coupon, error) {
	return CreateCoupon(ctx, s.db, c)
}

func (s *Store) ListCoupons(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListCoupons(ctx, s.db, page, pageSize)
}

func (s *Store) DeactivateCoupon(ctx context.Context, code string) error {
	return DeactivateCoupon(ctx, s.db, code)
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	return CreateOrder(ctx, s.db, order)
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return GetOrder(ctx, s.db, id)
}

func (s *Store) ListOrders(ctx context.Context, email, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersCursor(ctx, s.db, email, cursor, limit)
}

func (s *Store) SetCheckoutSession(ctx context.Context, orderID int64, sessionID string) error {
	return SetCheckoutSession(ctx, s.db, orderID, sessionID)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) error {
	return UpdateOrderStatus(ctx, s.db, orderID, from, to)
}

func (s *Store) ClaimNextPaidOrder(ctx context.Context) (*models.Order, error) {
	return ClaimNextPaidOrder(ctx, s.db)
}

func (s *Store) RecordPayment(ctx context.Context, p *models.OrderPayment) (bool, error) {
	return RecordPayment(ctx, s.db, p)
}

func (s *Store) CreateDonation(ctx context.Context, d *models.Donation) (*models.Donation, error) {
	return CreateDonation(ctx, s.db, d)
}

func (s *Store) GetDonation(ctx context.Context, id int64) (*models.Donation, error) {
	return GetDonation(ctx, s.db, id)
}

func (s *Store) ListDonations(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListDonations(ctx, s.db, page, pageSize)
}

func (s *Store) MonthlyDonationStats(ctx context.Context, months int) ([]models.MonthlyDonationStats, error) {
	return MonthlyDonationStats(ctx, s.db, months, timeNow())
}
