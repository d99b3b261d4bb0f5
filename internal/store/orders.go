package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const orderColumns = `id, order_number, customer_email, customer_name, customer_phone,
	shipping_address, billing_address, subtotal, shipping_cost, tax, discount_amount, total,
	coupon_code, coupon_discount_type, coupon_discount_value, status, payment_status,
	stripe_session_id, notes, created_at, updated_at, version`

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerEmail,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Tax,
		&o.DiscountAmount,
		&o.Total,
		&o.CouponCode,
		&o.CouponDiscountType,
		&o.CouponDiscountValue,
		&o.Status,
		&o.PaymentStatus,
		&o.StripeSessionID,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Version,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s",
		time.Now().UTC().Format("20060102"),
		strings.ToUpper(uuid.NewString()[:8]))
}

// CreateOrder persists a priced order, its items and, when CouponCode is
// set, the coupon redemption in a single transaction. The coupon row is
// locked and the per-customer cap re-checked before the guarded
// used_count increment, so a failure at any step leaves nothing behind.
func CreateOrder(ctx context.Context, db *sql.DB, order *models.Order) (*models.Order, error) {
	var created *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var coupon *models.Coupon
		if order.CouponCode != nil {
			c, err := LockActiveCoupon(ctx, tx, *order.CouponCode)
			if err != nil {
				return err
			}

			if c.MaximumUsesPerCustomer != nil && order.CustomerEmail != "" {
				used, err := CountCustomerUsage(ctx, tx, c.ID, order.CustomerEmail)
				if err != nil {
					return err
				}
				if used >= *c.MaximumUsesPerCustomer {
					return database.ErrCustomerLimit
				}
			}
			coupon = c
		}

		o := *order
		o.OrderNumber = generateOrderNumber()
		o.Status = models.OrderStatusPending
		o.PaymentStatus = models.PaymentStatusPending
		o.Items = nil
		o.Payments = nil

		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, customer_email, customer_name, customer_phone,
				shipping_address, billing_address, subtotal, shipping_cost, tax, discount_amount, total,
				coupon_code, coupon_discount_type, coupon_discount_value, status, payment_status,
				notes, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW(), 1)
			 RETURNING id, created_at, updated_at, version`,
			o.OrderNumber, o.CustomerEmail, o.CustomerName, o.CustomerPhone,
			o.ShippingAddress, o.BillingAddress, o.Subtotal, o.ShippingCost, o.Tax, o.DiscountAmount, o.Total,
			o.CouponCode, o.CouponDiscountType, o.CouponDiscountValue, o.Status, o.PaymentStatus,
			o.Notes,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt, &o.Version)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range order.Items {
			item.OrderID = o.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, product_sku, product_category,
					product_image, unit_price, quantity, line_total, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
				 RETURNING id, created_at`,
				item.OrderID, item.ProductID, item.ProductName, item.ProductSKU, item.ProductCategory,
				item.ProductImage, item.UnitPrice, item.Quantity, item.LineTotal,
			).Scan(&item.ID, &item.CreatedAt)
			if err != nil {
				return fmt.Errorf("create order item %q: %w", item.ProductName, err)
			}
			o.Items = append(o.Items, item)
		}

		if coupon != nil {
			if err := InsertCouponUsage(ctx, tx, coupon.ID, o.ID, o.CustomerEmail); err != nil {
				return err
			}
			if err := IncrementCouponUsage(ctx, tx, coupon.ID); err != nil {
				return err
			}
		}

		created = &o
		return nil
	})

	if err != nil {
		return nil, err
	}

	return created, nil
}

func GetOrder(ctx context.Context, db DBTX, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, product_id, product_name, product_sku, product_category,
			product_image, unit_price, quantity, line_total, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := db.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductSKU,
			&item.ProductCategory,
			&item.ProductImage,
			&item.UnitPrice,
			&item.Quantity,
			&item.LineTotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	payments, err := ListPayments(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Payments = payments

	return order, nil
}

// ListOrdersCursor pages orders newest first. An empty email lists every
// customer's orders.
func ListOrdersCursor(ctx context.Context, db DBTX, email, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text = '' OR LOWER(customer_email) = LOWER($1::text))
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, strings.TrimSpace(email), cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func SetCheckoutSession(ctx context.Context, db DBTX, orderID int64, sessionID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET stripe_session_id = $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2`,
		sessionID, orderID)
	if err != nil {
		return fmt.Errorf("set checkout session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

// UpdateOrderStatus moves an order from one status to another only if it is
// still in the expected status.
func UpdateOrderStatus(ctx context.Context, db DBTX, orderID int64, from, to string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND status = $3`,
		to, orderID, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrStatusConflict
	}

	return nil
}

// GetNextPendingOrder locks the oldest paid order still waiting for
// fulfilment, skipping rows other workers hold.
func GetNextPendingOrder(ctx context.Context, tx *sql.Tx) (*models.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		  AND payment_status = $2
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, models.OrderStatusPending, models.PaymentStatusCompleted))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get next pending order: %w", err)
	}

	return order, nil
}

// ClaimNextPaidOrder moves the oldest paid PENDING order to PROCESSING.
// It returns database.ErrOrderNotFound when the queue is empty.
func ClaimNextPaidOrder(ctx context.Context, db *sql.DB) (*models.Order, error) {
	var claimed *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := GetNextPendingOrder(ctx, tx)
		if err != nil {
			return err
		}

		if err := UpdateOrderStatus(ctx, tx, order.ID, models.OrderStatusPending, models.OrderStatusProcessing); err != nil {
			return err
		}

		order.Status = models.OrderStatusProcessing
		claimed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}
