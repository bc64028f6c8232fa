package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Category string

const (
	CategoryPurchase Category = "PURCHASE"
	CategoryRepair   Category = "REPAIR"
	CategoryOther    Category = "OTHER"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPurchase, CategoryRepair, CategoryOther:
		return true
	}
	return false
}

// CashbackRule is the per-tenant base rate for one purchase category. Only one
// active rule per category is authoritative.
type CashbackRule struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Category    Category     `gorm:"type:text;not null" json:"category"`
	BaseRateBps int64        `gorm:"not null" json:"base_rate_bps"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CashbackRule) TableName() string { return "cashback_rules" }
