package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/notification/domain"
	pkgdb "github.com/smallbiznis/perq/pkg/db"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, notification *domain.Notification) error
	MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, sentAt time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, detail string) error
	// ClaimFailed locks a bounded batch of recently failed notifications for
	// retry within the surrounding transaction.
	ClaimFailed(ctx context.Context, tx *gorm.DB, cutoff time.Time, maxAttempts, limit int) ([]domain.Notification, error)
	ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, status domain.Status, limit int) ([]*domain.Notification, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, notification *domain.Notification) error {
	return db.WithContext(ctx).Create(notification).Error
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, sentAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications
		 SET status = ?, sent_at = ?, error_detail = '', attempts = attempts + 1, updated_at = ?
		 WHERE id = ?`,
		domain.StatusSent,
		sentAt,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, detail string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications
		 SET status = ?, error_detail = ?, attempts = attempts + 1, updated_at = ?
		 WHERE id = ?`,
		domain.StatusFailed,
		detail,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) ClaimFailed(ctx context.Context, tx *gorm.DB, cutoff time.Time, maxAttempts, limit int) ([]domain.Notification, error) {
	var notifications []domain.Notification
	err := pkgdb.ForUpdateSkipLocked(tx.WithContext(ctx)).
		Model(&domain.Notification{}).
		Where("status = ? AND created_at >= ? AND attempts < ?", domain.StatusFailed, cutoff, maxAttempts).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *repo) ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, status domain.Status, limit int) ([]*domain.Notification, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("tenant_id = ?", tenantID)
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	var notifications []*domain.Notification
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}
