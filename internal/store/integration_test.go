//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logging"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if _, err := database.Migrate(ctx, db, database.MigrateUp, logging.Discard()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func intPtr(n int) *int { return &n }

func createCoupon(t *testing.T, db *sql.DB, code string, maxUses, perCustomer *int) *models.Coupon {
	t.Helper()

	c, err := store.CreateCoupon(context.Background(), db, &models.Coupon{
		Code:                   code,
		DiscountType:           models.DiscountTypeFixedAmount,
		DiscountValue:          decimal.NewFromInt(5),
		MaximumUses:            maxUses,
		MaximumUsesPerCustomer: perCustomer,
		IsActive:               true,
	})
	if err != nil {
		t.Fatalf("Create coupon: %v", err)
	}
	return c
}

func newOrder(email string, couponCode *string) *models.Order {
	o := &models.Order{
		CustomerEmail:   email,
		CustomerName:    "Test Customer",
		ShippingAddress: models.Address{Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"},
		BillingAddress:  models.Address{Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"},
		Subtotal:        decimal.NewFromInt(100),
		Total:           decimal.NewFromInt(100),
		Items: []models.OrderItem{
			{ProductName: "Towel", UnitPrice: decimal.NewFromInt(50), Quantity: 2, LineTotal: decimal.NewFromInt(100)},
		},
	}
	if couponCode != nil {
		kind := models.DiscountTypeFixedAmount
		value := decimal.NewFromInt(5)
		o.CouponCode = couponCode
		o.CouponDiscountType = &kind
		o.CouponDiscountValue = &value
		o.DiscountAmount = value
		o.Total = o.Subtotal.Sub(value)
	}
	return o
}

func countRows(t *testing.T, db *sql.DB, query string, args ...interface{}) int {
	t.Helper()

	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Count rows: %v", err)
	}
	return n
}

func TestConcurrentCouponRedemption(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	coupon := createCoupon(t, db, "LAUNCH", intPtr(3), nil)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			code := "launch"
			_, err := store.CreateOrder(ctx, db, newOrder(fmt.Sprintf("buyer%d@example.com", i), &code))
			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	exhaustedCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrCouponExhausted):
			exhaustedCount++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 3 {
		t.Errorf("Expected 3 successful redemptions, got %d", successCount)
	}
	if exhaustedCount != concurrency-3 {
		t.Errorf("Expected %d exhausted redemptions, got %d", concurrency-3, exhaustedCount)
	}

	after, err := store.GetCouponByCode(ctx, db, "LAUNCH")
	if err != nil {
		t.Fatalf("Get coupon: %v", err)
	}
	if after.UsedCount != 3 {
		t.Errorf("Expected used_count 3, got %d", after.UsedCount)
	}
	if n := countRows(t, db, `SELECT COUNT(*) FROM coupon_usage WHERE coupon_id = $1`, coupon.ID); n != 3 {
		t.Errorf("Expected 3 usage rows, got %d", n)
	}
	if n := countRows(t, db, `SELECT COUNT(*) FROM orders`); n != 3 {
		t.Errorf("Expected 3 orders, got %d", n)
	}
}

func TestConcurrentRedemptionPerCustomer(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createCoupon(t, db, "ONCEEACH", nil, intPtr(1))

	concurrency := 5
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			code := "ONCEEACH"
			_, err := store.CreateOrder(ctx, db, newOrder("Same@Example.com", &code))
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrCustomerLimit):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 1 {
		t.Errorf("Expected exactly 1 redemption for the customer, got %d", successCount)
	}
}

func TestCreateOrderIsAtomic(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createCoupon(t, db, "ATOMIC", intPtr(10), nil)

	code := "ATOMIC"
	order := newOrder("buyer@example.com", &code)
	order.Items = append(order.Items, models.OrderItem{
		ProductName: "Broken",
		UnitPrice:   decimal.NewFromInt(1),
		Quantity:    0,
		LineTotal:   decimal.Zero,
	})

	if _, err := store.CreateOrder(ctx, db, order); err == nil {
		t.Fatal("Expected item constraint failure")
	}

	if n := countRows(t, db, `SELECT COUNT(*) FROM orders`); n != 0 {
		t.Errorf("Expected no orders after rollback, got %d", n)
	}
	if n := countRows(t, db, `SELECT COUNT(*) FROM order_items`); n != 0 {
		t.Errorf("Expected no order items after rollback, got %d", n)
	}

	after, err := store.GetCouponByCode(ctx, db, "ATOMIC")
	if err != nil {
		t.Fatalf("Get coupon: %v", err)
	}
	if after.UsedCount != 0 {
		t.Errorf("Expected used_count 0 after rollback, got %d", after.UsedCount)
	}
}

func TestRecordPaymentIsIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	order, err := store.CreateOrder(ctx, db, newOrder("buyer@example.com", nil))
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	payment := &models.OrderPayment{
		OrderID:       order.ID,
		PaymentMethod: "stripe",
		Amount:        order.Total,
		Currency:      "usd",
		TransactionID: "pi_test_123",
		Status:        models.PaymentStatusCompleted,
		RawResponse:   []byte(`{"id":"cs_test_1","payment_status":"paid"}`),
	}

	inserted, err := store.RecordPayment(ctx, db, payment)
	if err != nil {
		t.Fatalf("Record payment: %v", err)
	}
	if !inserted {
		t.Error("Expected first payment to be inserted")
	}

	inserted, err = store.RecordPayment(ctx, db, payment)
	if err != nil {
		t.Fatalf("Record payment again: %v", err)
	}
	if inserted {
		t.Error("Expected repeat payment to be ignored")
	}

	got, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if got.PaymentStatus != models.PaymentStatusCompleted {
		t.Errorf("Expected payment status COMPLETED, got %s", got.PaymentStatus)
	}
	if len(got.Payments) != 1 {
		t.Errorf("Expected 1 payment row, got %d", len(got.Payments))
	}
	if len(got.Items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(got.Items))
	}
}

func TestConcurrentClaimNextPaidOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		order, err := store.CreateOrder(ctx, db, newOrder(fmt.Sprintf("buyer%d@example.com", i), nil))
		if err != nil {
			t.Fatalf("Create order: %v", err)
		}
		_, err = store.RecordPayment(ctx, db, &models.OrderPayment{
			OrderID:       order.ID,
			PaymentMethod: "stripe",
			Amount:        order.Total,
			Currency:      "usd",
			TransactionID: fmt.Sprintf("pi_%d", i),
			Status:        models.PaymentStatusCompleted,
		})
		if err != nil {
			t.Fatalf("Record payment: %v", err)
		}
	}

	workers := 4
	var wg sync.WaitGroup
	claimed := make(chan int64, workers)
	empty := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			order, err := store.ClaimNextPaidOrder(ctx, db)
			switch {
			case err == nil:
				claimed <- order.ID
			case errors.Is(err, database.ErrOrderNotFound):
				empty <- struct{}{}
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	close(claimed)
	close(empty)

	seen := make(map[int64]bool)
	for id := range claimed {
		if seen[id] {
			t.Errorf("Order %d claimed twice", id)
		}
		seen[id] = true
	}
	if len(seen) != 2 {
		t.Errorf("Expected 2 claimed orders, got %d", len(seen))
	}
	if len(empty) != workers-2 {
		t.Errorf("Expected %d empty claims, got %d", workers-2, len(empty))
	}
}

func TestMonthlyDonationStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	for _, d := range []models.Donation{
		{ProductName: "Cold Plunge", Quantity: 2, UnitValue: decimal.NewFromInt(3999), FireDepartment: "Station 7", DonatedAt: now},
		{ProductName: "Barrel Sauna", Quantity: 1, UnitValue: decimal.NewFromInt(4500), FireDepartment: "Station 9", DonatedAt: now},
	} {
		d := d
		if _, err := store.CreateDonation(ctx, db, &d); err != nil {
			t.Fatalf("Create donation: %v", err)
		}
	}

	stats, err := store.MonthlyDonationStats(ctx, db, 6, now)
	if err != nil {
		t.Fatalf("Monthly stats: %v", err)
	}
	if len(stats) != 6 {
		t.Fatalf("Expected 6 months, got %d", len(stats))
	}

	current := stats[len(stats)-1]
	if current.Donations != 2 || current.Units != 3 {
		t.Errorf("Expected 2 donations and 3 units this month, got %d and %d", current.Donations, current.Units)
	}
	if !current.TotalValue.Equal(decimal.NewFromInt(12498)) {
		t.Errorf("Expected total value 12498, got %s", current.TotalValue)
	}
}
