package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer belongs to one tenant. TotalSpendCents only ever grows; it is
// incremented by EARN transactions and drives tier recomputation.
type Customer struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name            string       `gorm:"not null" json:"name"`
	Phone           string       `gorm:"type:text" json:"phone,omitempty"`
	Email           string       `gorm:"type:text" json:"email,omitempty"`
	Tier            string       `gorm:"type:text;not null;default:''" json:"tier"`
	TotalSpendCents int64        `gorm:"not null;default:0" json:"total_spend_cents"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
