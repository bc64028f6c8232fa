package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/payment/domain"
	"gorm.io/gorm"
)

type Repository interface {
	InsertLink(ctx context.Context, db *gorm.DB, link *domain.PaymentLink) error
	FindLinkByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.PaymentLink, error)
	// InsertEvent records a webhook delivery. It reports false when the
	// (provider, event id) pair was already recorded.
	InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*domain.EventRecord, error)
	MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	// ConfirmPending moves a pending link to confirmed and flags its credit as
	// outstanding. It reports false when the link already left pending.
	ConfirmPending(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	FailPending(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ClearCreditPending(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ListCreditPending(ctx context.Context, db *gorm.DB, limit int) ([]domain.PaymentLink, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) InsertLink(ctx context.Context, db *gorm.DB, link *domain.PaymentLink) error {
	return db.WithContext(ctx).Create(link).Error
}

func (r *repo) FindLinkByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.PaymentLink, error) {
	var link domain.PaymentLink
	err := db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&link).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_events (id, provider, provider_event_id, event_type, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*domain.EventRecord, error) {
	var event domain.EventRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repo) MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events SET processed_at = ? WHERE id = ? AND processed_at IS NULL`,
		at,
		id,
	).Error
}

func (r *repo) ConfirmPending(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_links
		 SET status = ?, credit_pending = ?, confirmed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.LinkStatusConfirmed,
		true,
		at,
		at,
		id,
		domain.LinkStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FailPending(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_links
		 SET status = ?, failed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.LinkStatusFailed,
		at,
		at,
		id,
		domain.LinkStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ClearCreditPending(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_links SET credit_pending = ?, updated_at = ? WHERE id = ?`,
		false,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) ListCreditPending(ctx context.Context, db *gorm.DB, limit int) ([]domain.PaymentLink, error) {
	var links []domain.PaymentLink
	err := db.WithContext(ctx).
		Model(&domain.PaymentLink{}).
		Where("status = ? AND credit_pending = ?", domain.LinkStatusConfirmed, true).
		Order("confirmed_at asc, id asc").
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}
