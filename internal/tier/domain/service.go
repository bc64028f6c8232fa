package domain

import (
	"context"
	"errors"

	customerdomain "github.com/smallbiznis/perq/internal/customer/domain"
	"gorm.io/gorm"
)

type TierProgress struct {
	CurrentTier        string `json:"current_tier"`
	TotalSpendCents    int64  `json:"total_spend_cents"`
	NextTier           string `json:"next_tier,omitempty"`
	NextThresholdCents int64  `json:"next_threshold_cents,omitempty"`
	RemainingCents     int64  `json:"remaining_cents"`
	PercentToNext      int64  `json:"percent_to_next"`
}

type GetTierProgressRequest struct {
	TenantID   string
	CustomerID string
}

type UpsertRuleRequest struct {
	TenantID           string
	Name               string
	MinTotalSpendCents int64
	MultiplierBps      int64
	IsActive           bool
}

type Service interface {
	// RecomputeTier selects the tier for the customer's current spend and
	// persists it when it changed. It must run inside the same transaction
	// that updated the spend, against the spend value written there.
	RecomputeTier(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer) (tier string, changed bool, err error)
	// MultiplierFor resolves the cashback multiplier for a tier name within a
	// transaction. Unknown or empty tiers fall back to 1x.
	MultiplierFor(ctx context.Context, tx *gorm.DB, tenantID string, tier string) (int64, error)
	// CalculateTierProgress is read-only and runs outside any lock.
	CalculateTierProgress(ctx context.Context, req GetTierProgressRequest) (TierProgress, error)
	ListRules(ctx context.Context, tenantID string) ([]TierRule, error)
	UpsertRule(ctx context.Context, req UpsertRuleRequest) (TierRule, error)
}

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidCustomer   = errors.New("invalid_customer")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidThreshold  = errors.New("invalid_threshold")
	ErrInvalidMultiplier = errors.New("invalid_multiplier")
)

// SelectTier picks the active rule with the greatest threshold not exceeding
// totalSpendCents. When no rule qualifies it falls back to the lowest-defined
// active rule. Deterministic for a given rule set and spend.
func SelectTier(rules []TierRule, totalSpendCents int64) (TierRule, bool) {
	var (
		best       *TierRule
		lowest     *TierRule
		haveActive bool
	)
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive {
			continue
		}
		haveActive = true
		if lowest == nil || rule.MinTotalSpendCents < lowest.MinTotalSpendCents {
			lowest = rule
		}
		if rule.MinTotalSpendCents > totalSpendCents {
			continue
		}
		if best == nil || rule.MinTotalSpendCents > best.MinTotalSpendCents {
			best = rule
		}
	}
	if !haveActive {
		return TierRule{}, false
	}
	if best == nil {
		return *lowest, true
	}
	return *best, true
}
