package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	// TryConsumeActivation increments free_trial_activations only while it is
	// below free_trial_limit. Returns false when the limit was already reached.
	TryConsumeActivation(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// ReturnActivation undoes one TryConsumeActivation. It also re-arms the
	// expiry notice, since the returned slot reopens the trial.
	ReturnActivation(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// MarkTrialExpiredNotified flips trial_expired_notified exactly once per
	// trial cycle. Returns true only for the call that performed the flip.
	MarkTrialExpiredNotified(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// TryMarkWarned lowers last_warned_remaining to the given value. Returns
	// false when that threshold (or a lower one) was already communicated.
	TryMarkWarned(ctx context.Context, db *gorm.DB, id snowflake.ID, remaining int64) (bool, error)
	ResetTrial(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
