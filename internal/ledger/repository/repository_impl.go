package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/ledger/domain"
	pkgdb "github.com/smallbiznis/perq/pkg/db"
	"github.com/smallbiznis/perq/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertCard(ctx context.Context, db *gorm.DB, card *domain.Card) error
	FindCardByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Card, error)
	FindCardByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Card, error)
	// CreditBalance applies a signed delta, refusing to take the balance
	// negative. Returns false when the guard rejected the update.
	CreditBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, deltaCents int64) (bool, error)
	// DebitBalance subtracts only while the balance covers the amount. The
	// conditional update keeps two concurrent redeems from both succeeding.
	DebitBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, amountCents int64) (bool, error)
	ActivateCard(ctx context.Context, tx *gorm.DB, id, customerID snowflake.ID, at time.Time) (bool, error)
	SetCardStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.CardStatus) (bool, error)
	InsertTransaction(ctx context.Context, tx *gorm.DB, txn *domain.Transaction) error
	ListTransactionsByCard(ctx context.Context, db *gorm.DB, tenantID, cardID snowflake.ID, page pagination.Pagination) ([]*domain.Transaction, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) InsertCard(ctx context.Context, db *gorm.DB, card *domain.Card) error {
	return db.WithContext(ctx).Create(card).Error
}

func (r *repo) FindCardByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Card, error) {
	var card domain.Card
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, customer_id, status, balance_cents, activated_at, created_at, updated_at
		 FROM cards WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&card).Error
	if err != nil {
		return nil, err
	}
	if card.ID == 0 {
		return nil, nil
	}
	return &card, nil
}

func (r *repo) FindCardByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Card, error) {
	var card domain.Card
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

func (r *repo) CreditBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, deltaCents int64) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE cards
		 SET balance_cents = balance_cents + ?, updated_at = ?
		 WHERE id = ? AND balance_cents + ? >= 0`,
		deltaCents,
		time.Now().UTC(),
		id,
		deltaCents,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DebitBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, amountCents int64) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE cards
		 SET balance_cents = balance_cents - ?, updated_at = ?
		 WHERE id = ? AND balance_cents >= ?`,
		amountCents,
		time.Now().UTC(),
		id,
		amountCents,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ActivateCard(ctx context.Context, tx *gorm.DB, id, customerID snowflake.ID, at time.Time) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE cards
		 SET status = ?, customer_id = ?, activated_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.CardStatusActive,
		customerID,
		at,
		at,
		id,
		domain.CardStatusUnassigned,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetCardStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.CardStatus) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE cards SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		time.Now().UTC(),
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertTransaction(ctx context.Context, tx *gorm.DB, txn *domain.Transaction) error {
	return tx.WithContext(ctx).Create(txn).Error
}

func (r *repo) ListTransactionsByCard(ctx context.Context, db *gorm.DB, tenantID, cardID snowflake.ID, page pagination.Pagination) ([]*domain.Transaction, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("tenant_id = ? AND card_id = ?", tenantID, cardID)

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor != nil && cursor.CreatedAt != "" {
			stmt = stmt.Where("created_at < ?", cursor.CreatedAt)
		}
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 10
	}

	var transactions []*domain.Transaction
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
