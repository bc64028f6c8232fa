package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Customer, error)
	// FindByIDForUpdate locks the customer row for the duration of the
	// surrounding transaction so spend and tier writes cannot interleave.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*Customer, error)
	AddSpend(ctx context.Context, tx *gorm.DB, id snowflake.ID, amountCents int64) error
	UpdateTier(ctx context.Context, tx *gorm.DB, id snowflake.ID, tier string) error
}
