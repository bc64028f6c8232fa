package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type LinkStatus string

const (
	LinkStatusPending   LinkStatus = "pending"
	LinkStatusConfirmed LinkStatus = "confirmed"
	LinkStatusFailed    LinkStatus = "failed"
)

// PaymentLink is a pending external top-up. The status machine is strictly
// one-way: pending moves to confirmed or failed exactly once.
type PaymentLink struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	CardID      snowflake.ID `gorm:"not null;index" json:"card_id"`
	ExternalID  string       `gorm:"type:text;not null;uniqueIndex:ux_payment_links_external" json:"external_id"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	Status      LinkStatus   `gorm:"type:text;not null;index;default:'pending'" json:"status"`
	// CreditPending marks a confirmed link whose ledger credit has not landed
	// yet. The reconcile sweep retries these until the credit commits.
	CreditPending bool       `gorm:"not null;default:false;index" json:"credit_pending"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PaymentLink) TableName() string { return "payment_links" }

// EventRecord stores every webhook delivery. The unique (provider, event id)
// pair is the dedupe guard against processor redelivery.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:1" json:"provider"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:text;not null" json:"event_type"`
	Payload         datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	ReceivedAt      time.Time      `gorm:"not null" json:"received_at"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// WebhookEvent is the canonical event parsed from a processor delivery.
type WebhookEvent struct {
	EventID          string            `json:"eventId"`
	EventType        string            `json:"eventType"`
	ExternalObjectID string            `json:"externalObjectId"`
	AmountCents      int64             `json:"amountCents"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
