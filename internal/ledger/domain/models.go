package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type CardStatus string

const (
	CardStatusUnassigned CardStatus = "unassigned"
	CardStatusActive     CardStatus = "active"
	CardStatusBlocked    CardStatus = "blocked"
)

// Card is a balance-bearing loyalty instrument. BalanceCents never goes
// negative; every change is recorded as a Transaction.
type Card struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	CustomerID   snowflake.ID `gorm:"index" json:"customer_id,omitempty"`
	Status       CardStatus   `gorm:"type:text;not null;default:'unassigned'" json:"status"`
	BalanceCents int64        `gorm:"not null;default:0" json:"balance_cents"`
	ActivatedAt  *time.Time   `json:"activated_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Card) TableName() string { return "cards" }

type TransactionType string

const (
	TransactionTypeEarn     TransactionType = "EARN"
	TransactionTypeRedeem   TransactionType = "REDEEM"
	TransactionTypeAdjust   TransactionType = "ADJUST"
	TransactionTypeAddFunds TransactionType = "ADD_FUNDS"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeEarn, TransactionTypeRedeem, TransactionTypeAdjust, TransactionTypeAddFunds:
		return true
	}
	return false
}

// Transaction is an immutable ledger entry. It is inserted once inside the
// same transaction that moved the card balance and never updated or deleted.
type Transaction struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID           snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	CardID             snowflake.ID    `gorm:"not null;index" json:"card_id"`
	CustomerID         snowflake.ID    `gorm:"index" json:"customer_id,omitempty"`
	StoreID            snowflake.ID    `gorm:"index" json:"store_id,omitempty"`
	ActorID            snowflake.ID    `json:"actor_id,omitempty"`
	Type               TransactionType `gorm:"type:text;not null" json:"type"`
	Category           string          `gorm:"type:text" json:"category,omitempty"`
	AmountCents        int64           `gorm:"not null" json:"amount_cents"`
	CashbackCents      int64           `gorm:"not null;default:0" json:"cashback_cents"`
	BeforeBalanceCents int64           `gorm:"not null" json:"before_balance_cents"`
	AfterBalanceCents  int64           `gorm:"not null" json:"after_balance_cents"`
	Note               string          `gorm:"type:text" json:"note,omitempty"`
	// PaymentLinkID ties a reconciliation credit to its payment link. The
	// unique index is the backstop against double-crediting a replayed event.
	PaymentLinkID *snowflake.ID `gorm:"uniqueIndex:ux_transactions_payment_link" json:"payment_link_id,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }
