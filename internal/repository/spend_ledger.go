package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fuelpay/internal/model"
)

// SpendLedger reads a driver's settled spend from the fuel transaction
// ledger. Rows are written when settlement reports in; the spend-limit guard
// only ever reads them.
type SpendLedger interface {
	DailySpent(ctx context.Context, driverID uuid.UUID, now time.Time) (decimal.Decimal, error)
	MonthlySpent(ctx context.Context, driverID uuid.UUID, now time.Time) (decimal.Decimal, error)
}

type spendLedger struct {
	db *gorm.DB
}

// NewSpendLedger creates a ledger reader over the fuel transactions table.
func NewSpendLedger(db *gorm.DB) SpendLedger {
	return &spendLedger{db: db}
}

// DailySpent sums settled spend since local midnight.
func (l *spendLedger) DailySpent(ctx context.Context, driverID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return l.sumSince(ctx, driverID, start)
}

// MonthlySpent sums settled spend since the first of the month.
func (l *spendLedger) MonthlySpent(ctx context.Context, driverID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return l.sumSince(ctx, driverID, start)
}

func (l *spendLedger) sumSince(ctx context.Context, driverID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := l.db.WithContext(ctx).Model(&model.FuelTransaction{}).
		Select("SUM(amount)").
		Where("driver_id = ? AND settled_at >= ?", driverID, since).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
