package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TierRule maps a loyalty tier to the cumulative spend that unlocks it and the
// cashback multiplier it grants. Rules are evaluated most-restrictive-first.
type TierRule struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID           snowflake.ID `gorm:"not null;index;uniqueIndex:ux_tier_rules_tenant_name,priority:1" json:"tenant_id"`
	Name               string       `gorm:"type:text;not null;uniqueIndex:ux_tier_rules_tenant_name,priority:2" json:"name"`
	MinTotalSpendCents int64        `gorm:"not null" json:"min_total_spend_cents"`
	MultiplierBps      int64        `gorm:"not null;default:10000" json:"multiplier_bps"`
	IsActive           bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TierRule) TableName() string { return "tier_rules" }

// DefaultMultiplierBps is the 1x multiplier applied when a customer has no
// tier yet or the tenant defined no rules.
const DefaultMultiplierBps = int64(10000)
