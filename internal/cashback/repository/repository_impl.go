package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/cashback/domain"
	"gorm.io/gorm"
)

type Repository interface {
	ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.CashbackRule, error)
	Upsert(ctx context.Context, db *gorm.DB, rule *domain.CashbackRule) error
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.CashbackRule, error) {
	var rules []domain.CashbackRule
	err := db.WithContext(ctx).
		Model(&domain.CashbackRule{}).
		Where("tenant_id = ?", tenantID).
		Order("category asc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// Upsert deactivates any existing rule for the category before inserting the
// new one, keeping a single authoritative active rule per category.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rule *domain.CashbackRule) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rule.IsActive {
			if err := tx.Exec(
				`UPDATE cashback_rules SET is_active = ?, updated_at = ?
				 WHERE tenant_id = ? AND category = ? AND is_active = ?`,
				false,
				time.Now().UTC(),
				rule.TenantID,
				rule.Category,
				true,
			).Error; err != nil {
				return err
			}
		}
		return tx.Exec(
			`INSERT INTO cashback_rules (id, tenant_id, category, base_rate_bps, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rule.ID,
			rule.TenantID,
			rule.Category,
			rule.BaseRateBps,
			rule.IsActive,
			rule.CreatedAt,
			rule.UpdatedAt,
		).Error
	})
}
