package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/customer/domain"
	pkgdb "github.com/smallbiznis/perq/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (id, tenant_id, name, phone, email, tier, total_spend_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.TenantID,
		customer.Name,
		customer.Phone,
		customer.Email,
		customer.Tier,
		customer.TotalSpendCents,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, name, phone, email, tier, total_spend_cents, created_at, updated_at
		 FROM customers WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repo) AddSpend(ctx context.Context, tx *gorm.DB, id snowflake.ID, amountCents int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE customers
		 SET total_spend_cents = total_spend_cents + ?, updated_at = ?
		 WHERE id = ?`,
		amountCents,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) UpdateTier(ctx context.Context, tx *gorm.DB, id snowflake.ID, tier string) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE customers SET tier = ?, updated_at = ? WHERE id = ?`,
		tier,
		time.Now().UTC(),
		id,
	).Error
}
