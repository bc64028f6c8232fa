package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Tenant is a store/business account. Card activations while the tenant is not
// on a paid subscription consume its free trial allowance.
type Tenant struct {
	ID                   snowflake.ID       `gorm:"primaryKey" json:"id"`
	Name                 string             `gorm:"not null" json:"name"`
	ContactEmail         string             `gorm:"type:text" json:"contact_email,omitempty"`
	ContactPhone         string             `gorm:"type:text" json:"contact_phone,omitempty"`
	SubscriptionStatus   SubscriptionStatus `gorm:"type:text;not null;default:'trialing'" json:"subscription_status"`
	FreeTrialLimit       int64              `gorm:"not null;default:0" json:"free_trial_limit"`
	FreeTrialActivations int64              `gorm:"not null;default:0" json:"free_trial_activations"`
	TrialExpiredNotified bool               `gorm:"not null;default:false" json:"trial_expired_notified"`
	// LastWarnedRemaining records the lowest "remaining" threshold already
	// communicated to the tenant. Zero means no warning has fired this cycle.
	LastWarnedRemaining int64     `gorm:"not null;default:0" json:"last_warned_remaining"`
	CreatedAt           time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }
