package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const donationColumns = `id, product_name, product_sku, quantity, unit_value, fire_department,
	city, state, donated_at, notes, created_at`

func scanDonation(row rowScanner) (*models.Donation, error) {
	d := &models.Donation{}
	err := row.Scan(
		&d.ID,
		&d.ProductName,
		&d.ProductSKU,
		&d.Quantity,
		&d.UnitValue,
		&d.FireDepartment,
		&d.City,
		&d.State,
		&d.DonatedAt,
		&d.Notes,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func CreateDonation(ctx context.Context, db DBTX, d *models.Donation) (*models.Donation, error) {
	query := `
		INSERT INTO donations (product_name, product_sku, quantity, unit_value, fire_department,
			city, state, donated_at, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING ` + donationColumns

	created, err := scanDonation(db.QueryRowContext(ctx, query,
		d.ProductName,
		d.ProductSKU,
		d.Quantity,
		d.UnitValue,
		d.FireDepartment,
		d.City,
		d.State,
		d.DonatedAt,
		d.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("create donation: %w", err)
	}

	return created, nil
}

func GetDonation(ctx context.Context, db DBTX, id int64) (*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1`

	d, err := scanDonation(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrDonationNotFound
		}
		return nil, fmt.Errorf("get donation: %w", err)
	}

	return d, nil
}

func ListDonations(ctx context.Context, db DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM donations`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count donations: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + donationColumns + `
		FROM donations
		ORDER BY donated_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	donations := []models.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		donations = append(donations, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(donations, total, page, pageSize), nil
}

// MonthlyDonationStats aggregates donations per calendar month (UTC) for the
// last months months including the current one. Months without donations
// are reported with zero totals, oldest first.
func MonthlyDonationStats(ctx context.Context, db DBTX, months int, now time.Time) ([]models.MonthlyDonationStats, error) {
	if months < 1 {
		months = 1
	}
	start := monthStart(now).AddDate(0, -(months - 1), 0)

	rows, err := db.QueryContext(ctx,
		`SELECT to_char(date_trunc('month', donated_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
			COUNT(*),
			COALESCE(SUM(quantity), 0),
			COALESCE(SUM(quantity * unit_value), 0)
		 FROM donations
		 WHERE donated_at >= $1
		 GROUP BY month
		 ORDER BY month`,
		start)
	if err != nil {
		return nil, fmt.Errorf("monthly donation stats: %w", err)
	}
	defer rows.Close()

	found := make(map[string]models.MonthlyDonationStats)
	for rows.Next() {
		var s models.MonthlyDonationStats
		if err := rows.Scan(&s.Month, &s.Donations, &s.Units, &s.TotalValue); err != nil {
			return nil, fmt.Errorf("scan donation stats: %w", err)
		}
		found[s.Month] = s
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return fillMonths(start, months, found), nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func fillMonths(start time.Time, months int, found map[string]models.MonthlyDonationStats) []models.MonthlyDonationStats {
	stats := make([]models.MonthlyDonationStats, 0, months)
	for i := 0; i < months; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		s, ok := found[key]
		if !ok {
			s = models.MonthlyDonationStats{Month: key, TotalValue: decimal.Zero}
		}
		stats = append(stats, s)
	}
	return stats
}
