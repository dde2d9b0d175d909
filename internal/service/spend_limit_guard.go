package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fuelpay/internal/cache"
	"fuelpay/internal/errors"
	"fuelpay/internal/repository"
)

// spendCacheTTL bounds how stale a cached ledger sum may be. Limits are a
// coarse backstop, not real-time fraud scoring, so a short window is fine.
const spendCacheTTL = 30 * time.Second

// SpendLimitGuard compares a proposed amount against the driver's remaining
// daily and monthly headroom. It reads the settled ledger and the configured
// limits; it never mutates any state.
type SpendLimitGuard interface {
	CheckLimits(ctx context.Context, driverID uuid.UUID, amount decimal.Decimal) error
}

type spendLimitGuard struct {
	settingsRepo repository.DriverSettingsRepository
	ledger       repository.SpendLedger
	cache        *cache.Client
	now          func() time.Time
}

// NewSpendLimitGuard creates a new spend limit guard.
func NewSpendLimitGuard(
	settingsRepo repository.DriverSettingsRepository,
	ledger repository.SpendLedger,
	cache *cache.Client,
) SpendLimitGuard {
	return &spendLimitGuard{
		settingsRepo: settingsRepo,
		ledger:       ledger,
		cache:        cache,
		now:          time.Now,
	}
}

// CheckLimits returns nil when the amount fits both scopes. Daily is checked
// first; an amount equal to the remaining headroom passes, one cent over
// fails with the violated scope and the headroom.
func (s *spendLimitGuard) CheckLimits(ctx context.Context, driverID uuid.UUID, amount decimal.Decimal) error {
	settings, err := s.settingsRepo.FindByDriverID(ctx, driverID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// No settings row means no limits configured.
			return nil
		}
		return fmt.Errorf("find driver settings: %w", err)
	}

	now := s.now()

	if settings.DailyLimit.IsPositive() {
		spent, err := s.cachedSpend(ctx, errors.LimitScopeDaily, driverID, now)
		if err != nil {
			return err
		}
		if err := checkScope(errors.LimitScopeDaily, settings.DailyLimit, spent, amount); err != nil {
			return err
		}
	}

	if settings.MonthlyLimit.IsPositive() {
		spent, err := s.cachedSpend(ctx, errors.LimitScopeMonthly, driverID, now)
		if err != nil {
			return err
		}
		if err := checkScope(errors.LimitScopeMonthly, settings.MonthlyLimit, spent, amount); err != nil {
			return err
		}
	}

	return nil
}

func checkScope(scope string, limit, spent, amount decimal.Decimal) error {
	remaining := limit.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if amount.GreaterThan(remaining) {
		return &errors.LimitExceededError{Scope: scope, Remaining: remaining}
	}
	return nil
}

// cachedSpend reads the ledger sum through a short-TTL cache. A cache miss or
// unavailable redis falls through to the ledger.
func (s *spendLimitGuard) cachedSpend(ctx context.Context, scope string, driverID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	key := fmt.Sprintf("spend:%s:%s", scope, driverID)

	if data, _ := s.cache.Get(ctx, key); data != nil {
		if spent, err := decimal.NewFromString(string(data)); err == nil {
			return spent, nil
		}
	}

	var (
		spent decimal.Decimal
		err   error
	)
	switch scope {
	case errors.LimitScopeDaily:
		spent, err = s.ledger.DailySpent(ctx, driverID, now)
	default:
		spent, err = s.ledger.MonthlySpent(ctx, driverID, now)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read %s spend: %w", scope, err)
	}

	_ = s.cache.Set(ctx, key, []byte(spent.String()), spendCacheTTL)
	return spent, nil
}
