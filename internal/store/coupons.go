package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const couponColumns = `id, code, description, discount_type, discount_value, minimum_purchase,
	maximum_uses, maximum_uses_per_customer, valid_from, valid_until,
	used_count, is_active, created_at, updated_at`

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Description,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinimumPurchase,
		&c.MaximumUses,
		&c.MaximumUsesPerCustomer,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.UsedCount,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NormalizeCode upper-cases and trims a coupon code. Codes are stored and
// looked up in this form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func CreateCoupon(ctx context.Context, db DBTX, c *models.Coupon) (*models.Coupon, error) {
	query := `
		INSERT INTO coupons (code, description, discount_type, discount_value, minimum_purchase,
			maximum_uses, maximum_uses_per_customer, valid_from, valid_until,
			used_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, NOW(), NOW())
		RETURNING ` + couponColumns

	created, err := scanCoupon(db.QueryRowContext(ctx, query,
		NormalizeCode(c.Code),
		c.Description,
		c.DiscountType,
		c.DiscountValue,
		c.MinimumPurchase,
		c.MaximumUses,
		c.MaximumUsesPerCustomer,
		c.ValidFrom,
		c.ValidUntil,
		c.IsActive,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrCouponExists
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	return created, nil
}

func GetCouponByCode(ctx context.Context, db DBTX, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	c, err := scanCoupon(db.QueryRowContext(ctx, query, NormalizeCode(code)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	return c, nil
}

func GetActiveCouponByCode(ctx context.Context, db DBTX, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 AND is_active`

	c, err := scanCoupon(db.QueryRowContext(ctx, query, NormalizeCode(code)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get active coupon: %w", err)
	}

	return c, nil
}

// LockActiveCoupon takes a row lock on an active coupon for the rest of tx.
// Concurrent redemptions of the same code serialize here.
func LockActiveCoupon(ctx context.Context, tx *sql.Tx, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + `
		FROM coupons
		WHERE code = $1 AND is_active
		FOR UPDATE`

	c, err := scanCoupon(tx.QueryRowContext(ctx, query, NormalizeCode(code)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCouponNotFound
		}
		return nil, fmt.Errorf("lock coupon: %w", err)
	}

	return c, nil
}

func ListCoupons(ctx context.Context, db DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coupons`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count coupons: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + couponColumns + `
		FROM coupons
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []models.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(coupons, total, page, pageSize), nil
}

func DeactivateCoupon(ctx context.Context, db DBTX, code string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE coupons SET is_active = FALSE, updated_at = NOW() WHERE code = $1`,
		NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("deactivate coupon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCouponNotFound
	}

	return nil
}

func CountCustomerUsage(ctx context.Context, db DBTX, couponID int64, email string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupon_usage WHERE coupon_id = $1 AND LOWER(customer_email) = LOWER($2)`,
		couponID, strings.TrimSpace(email)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count coupon usage: %w", err)
	}
	return count, nil
}

func InsertCouponUsage(ctx context.Context, db DBTX, couponID, orderID int64, email string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO coupon_usage (coupon_id, order_id, customer_email, used_at)
		 VALUES ($1, $2, $3, NOW())`,
		couponID, orderID, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("insert coupon usage: %w", err)
	}
	return nil
}

// IncrementCouponUsage bumps used_count only while it is below the cap.
// Zero rows affected means another redemption took the last use.
func IncrementCouponUsage(ctx context.Context, db DBTX, couponID int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE coupons
		 SET used_count = used_count + 1,
		     updated_at = NOW()
		 WHERE id = $1
		   AND (maximum_uses IS NULL OR used_count < maximum_uses)`,
		couponID)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCouponExhausted
	}

	return nil
}
