package domain

import (
	"context"
	"errors"
	"math/big"
)

type UpsertRuleRequest struct {
	TenantID    string
	Category    Category
	BaseRateBps int64
	IsActive    bool
}

type Service interface {
	// ResolveCashback computes the cashback for a purchase using the tenant's
	// active rule for the category. A missing rule yields zero cashback.
	ResolveCashback(ctx context.Context, tenantID string, category Category, amountCents, tierMultiplierBps int64) (int64, error)
	ListRules(ctx context.Context, tenantID string) ([]CashbackRule, error)
	UpsertRule(ctx context.Context, req UpsertRuleRequest) (CashbackRule, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidRate     = errors.New("invalid_rate")
)

var (
	bpsSquared = big.NewInt(100_000_000)
	half       = big.NewInt(50_000_000)
)

// ComputeCashback returns round(amountCents * baseRateBps/10000 *
// tierMultiplierBps/10000), rounded half-up to the nearest cent. big.Int keeps
// the intermediate product exact for any cent amount.
func ComputeCashback(amountCents, baseRateBps, tierMultiplierBps int64) int64 {
	if amountCents <= 0 || baseRateBps <= 0 || tierMultiplierBps <= 0 {
		return 0
	}
	product := new(big.Int).Mul(big.NewInt(amountCents), big.NewInt(baseRateBps))
	product.Mul(product, big.NewInt(tierMultiplierBps))
	product.Add(product, half)
	product.Quo(product, bpsSquared)
	return product.Int64()
}
