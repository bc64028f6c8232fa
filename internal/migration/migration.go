package migration

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	cashbackdomain "github.com/smallbiznis/perq/internal/cashback/domain"
	customerdomain "github.com/smallbiznis/perq/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/perq/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/perq/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/perq/internal/payment/domain"
	tenantdomain "github.com/smallbiznis/perq/internal/tenant/domain"
	tierdomain "github.com/smallbiznis/perq/internal/tier/domain"
	"gorm.io/gorm"
)

// Run creates the schema on startup so a fresh database is usable out of the
// box for local and self-hosted environments.
func Run(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	return db.AutoMigrate(
		&tenantdomain.Tenant{},
		&customerdomain.Customer{},
		&tierdomain.TierRule{},
		&cashbackdomain.CashbackRule{},
		&ledgerdomain.Card{},
		&ledgerdomain.Transaction{},
		&paymentdomain.PaymentLink{},
		&paymentdomain.EventRecord{},
		&notificationdomain.Notification{},
	)
}

// EnsureDefaultTenant seeds the bootstrap tenant when it does not exist yet.
func EnsureDefaultTenant(db *gorm.DB, id int64, trialLimit int) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if id == 0 {
		return nil
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&tenantdomain.Tenant{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.Create(&tenantdomain.Tenant{
			ID:                 snowflake.ID(id),
			Name:               "Main",
			SubscriptionStatus: tenantdomain.SubscriptionStatusTrialing,
			FreeTrialLimit:     int64(trialLimit),
			CreatedAt:          now,
			UpdatedAt:          now,
		}).Error
	})
}
