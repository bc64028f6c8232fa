package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/tier/domain"
	"gorm.io/gorm"
)

type Repository interface {
	ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.TierRule, error)
	Upsert(ctx context.Context, db *gorm.DB, rule *domain.TierRule) error
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.TierRule, error) {
	var rules []domain.TierRule
	err := db.WithContext(ctx).
		Model(&domain.TierRule{}).
		Where("tenant_id = ?", tenantID).
		Order("min_total_spend_cents asc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rule *domain.TierRule) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE tier_rules
		 SET min_total_spend_cents = ?, multiplier_bps = ?, is_active = ?, updated_at = ?
		 WHERE tenant_id = ? AND name = ?`,
		rule.MinTotalSpendCents,
		rule.MultiplierBps,
		rule.IsActive,
		rule.UpdatedAt,
		rule.TenantID,
		rule.Name,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO tier_rules (id, tenant_id, name, min_total_spend_cents, multiplier_bps, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.TenantID,
		rule.Name,
		rule.MinTotalSpendCents,
		rule.MultiplierBps,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
}
