package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// RecordPayment stores a confirmed payment and marks the order COMPLETED in
// one transaction. A payment already recorded for the same order and
// transaction id is left untouched; inserted reports whether a row was
// written.
func RecordPayment(ctx context.Context, db *sql.DB, p *models.OrderPayment) (inserted bool, err error) {
	err = database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var orderID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM orders WHERE id = $1 FOR UPDATE`,
			p.OrderID).Scan(&orderID)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		var raw interface{}
		if len(p.RawResponse) > 0 {
			raw = string(p.RawResponse)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO order_payments (order_id, payment_method, amount, currency, transaction_id,
				status, raw_response, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			 ON CONFLICT (order_id, transaction_id) DO NOTHING`,
			p.OrderID, p.PaymentMethod, p.Amount, p.Currency, p.TransactionID, p.Status, raw)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		inserted = rowsAffected > 0

		_, err = tx.ExecContext(ctx,
			`UPDATE orders
			 SET payment_status = $1,
			     updated_at = NOW(),
			     version = version + 1
			 WHERE id = $2
			   AND payment_status <> $1`,
			models.PaymentStatusCompleted, p.OrderID)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}

		return nil
	})

	return inserted, err
}

func ListPayments(ctx context.Context, db DBTX, orderID int64) ([]models.OrderPayment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, payment_method, amount, currency, transaction_id, status,
			raw_response, created_at
		 FROM order_payments
		 WHERE order_id = $1
		 ORDER BY created_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.OrderPayment
	for rows.Next() {
		var p models.OrderPayment
		var raw []byte
		err := rows.Scan(
			&p.ID,
			&p.OrderID,
			&p.PaymentMethod,
			&p.Amount,
			&p.Currency,
			&p.TransactionID,
			&p.Status,
			&raw,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.RawResponse = raw
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}
