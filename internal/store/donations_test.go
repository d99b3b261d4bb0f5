package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/safar/storefront/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyDonationStatsFillsEmptyMonths(t *testing.T) {
	db, mock := newMock(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`GROUP BY month`).
		WithArgs(start).
		WillReturnRows(sqlmock.NewRows([]string{"month", "count", "units", "value"}).
			AddRow("2026-02", 2, 5, "1500.00"))

	stats, err := MonthlyDonationStats(context.Background(), db, 3, fixedTime)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	assert.Equal(t, "2026-01", stats[0].Month)
	assert.Equal(t, int64(0), stats[0].Donations)
	assert.True(t, stats[0].TotalValue.IsZero())

	assert.Equal(t, "2026-02", stats[1].Month)
	assert.Equal(t, int64(2), stats[1].Donations)
	assert.Equal(t, int64(5), stats[1].Units)
	assert.Equal(t, "1500.00", stats[1].TotalValue.StringFixed(2))

	assert.Equal(t, "2026-03", stats[2].Month)
}

func TestMonthlyDonationStatsCrossesYear(t *testing.T) {
	db, mock := newMock(t)

	now := time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`GROUP BY month`).
		WithArgs(time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows([]string{"month", "count", "units", "value"}))

	stats, err := MonthlyDonationStats(context.Background(), db, 4, now)
	require.NoError(t, err)

	var months []string
	for _, s := range stats {
		months = append(months, s.Month)
	}
	assert.Equal(t, []string{"2025-11", "2025-12", "2026-01", "2026-02"}, months)
}

func TestGetDonationNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM donations WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := GetDonation(context.Background(), db, 3)
	assert.True(t, errors.Is(err, database.ErrDonationNotFound))
}
