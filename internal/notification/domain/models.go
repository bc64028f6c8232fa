package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelEmail:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification records one dispatch attempt. It is mutated only by send
// attempts and never feeds back into ledger state.
type Notification struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	CustomerID  snowflake.ID      `gorm:"index" json:"customer_id,omitempty"`
	Channel     Channel           `gorm:"type:text;not null" json:"channel"`
	Template    Template          `gorm:"type:text;not null" json:"template"`
	Recipient   string            `gorm:"type:text" json:"recipient,omitempty"`
	Body        string            `gorm:"type:text" json:"body,omitempty"`
	Variables   datatypes.JSONMap `gorm:"type:jsonb" json:"variables,omitempty"`
	Status      Status            `gorm:"type:text;not null;index" json:"status"`
	ErrorDetail string            `gorm:"type:text" json:"error_detail,omitempty"`
	Attempts    int               `gorm:"not null;default:0" json:"attempts"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Notification) TableName() string { return "notifications" }
