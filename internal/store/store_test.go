package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return db, mock
}

var couponCols = []string{
	"id", "code", "description", "discount_type", "discount_value", "minimum_purchase",
	"maximum_uses", "maximum_uses_per_customer", "valid_from", "valid_until",
	"used_count", "is_active", "created_at", "updated_at",
}

// couponRow returns a single active percentage coupon. perCustomer may be nil.
func couponRow(id int64, code string, maxUses, perCustomer interface{}, used int) *sqlmock.Rows {
	return sqlmock.NewRows(couponCols).AddRow(
		id, code, "", "percentage", "10", nil,
		maxUses, perCustomer, nil, nil,
		used, true, fixedTime, fixedTime,
	)
}

var orderCols = []string{
	"id", "order_number", "customer_email", "customer_name", "customer_phone",
	"shipping_address", "billing_address", "subtotal", "shipping_cost", "tax", "discount_amount", "total",
	"coupon_code", "coupon_discount_type", "coupon_discount_value", "status", "payment_status",
	"stripe_session_id", "notes", "created_at", "updated_at", "version",
}

const addressJSON = `{"line1":"1 Main St","city":"Austin","state":"TX","postal_code":"78701","country":"US"}`

func addOrderRow(rows *sqlmock.Rows, id int64, status, paymentStatus string, createdAt time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, "ORD-20260315-ABCD1234", "buyer@example.com", "Buyer", "",
		addressJSON, addressJSON, "100.00", "0.00", "0.00", "0.00", "100.00",
		nil, nil, nil, status, paymentStatus,
		nil, "", createdAt, createdAt, 1,
	)
}
