package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, contact_email, contact_phone, subscription_status,
		        free_trial_limit, free_trial_activations, trial_expired_notified,
		        last_warned_remaining, created_at, updated_at
		 FROM tenants WHERE id = ?`,
		id,
	).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return &tenant, nil
}

func (r *repo) TryConsumeActivation(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET free_trial_activations = free_trial_activations + 1, updated_at = ?
		 WHERE id = ? AND free_trial_activations < free_trial_limit`,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ReturnActivation(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET free_trial_activations = free_trial_activations - 1,
		     trial_expired_notified = ?,
		     updated_at = ?
		 WHERE id = ? AND free_trial_activations > 0`,
		false,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkTrialExpiredNotified(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET trial_expired_notified = ?, updated_at = ?
		 WHERE id = ? AND trial_expired_notified = ?`,
		true,
		time.Now().UTC(),
		id,
		false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) TryMarkWarned(ctx context.Context, db *gorm.DB, id snowflake.ID, remaining int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET last_warned_remaining = ?, updated_at = ?
		 WHERE id = ? AND (last_warned_remaining = 0 OR last_warned_remaining > ?)`,
		remaining,
		time.Now().UTC(),
		id,
		remaining,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ResetTrial(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET free_trial_activations = 0,
		     trial_expired_notified = ?,
		     last_warned_remaining = 0,
		     subscription_status = ?,
		     updated_at = ?
		 WHERE id = ?`,
		false,
		domain.SubscriptionStatusTrialing,
		time.Now().UTC(),
		id,
	).Error
}
