package domain

import (
	"context"
	"errors"
)

type ApplyTransactionRequest struct {
	TenantID    string
	CardID      string
	Type        TransactionType
	Category    string
	AmountCents int64
	StoreID     string
	ActorID     string
	Note        string
	// PaymentLinkID is set only by payment reconciliation.
	PaymentLinkID string
}

type CreateCardRequest struct {
	TenantID string
}

type ActivateCardRequest struct {
	TenantID   string
	CardID     string
	CustomerID string
}

type ActivateCardResult struct {
	Card                 Card  `json:"card"`
	ActivationsRemaining int64 `json:"activations_remaining"`
	TrialJustExpired     bool  `json:"trial_just_expired"`
}

type SetCardBlockedRequest struct {
	TenantID string
	CardID   string
	Blocked  bool
}

type ListTransactionsRequest struct {
	TenantID  string
	CardID    string
	PageToken string
	PageSize  int32
}

type ListTransactionsResponse struct {
	Transactions  []Transaction `json:"transactions"`
	NextPageToken string        `json:"next_page_token,omitempty"`
	HasMore       bool          `json:"has_more"`
}

type Service interface {
	// ApplyTransaction is the single mutation entry point for card balances.
	// Validation failures abort before any write; the balance update and the
	// transaction row commit atomically.
	ApplyTransaction(ctx context.Context, req ApplyTransactionRequest) (Transaction, error)
	CreateCard(ctx context.Context, req CreateCardRequest) (Card, error)
	ActivateCard(ctx context.Context, req ActivateCardRequest) (ActivateCardResult, error)
	SetCardBlocked(ctx context.Context, req SetCardBlockedRequest) (Card, error)
	GetCard(ctx context.Context, tenantID, cardID string) (Card, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

var (
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidType         = errors.New("invalid_type")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrCardNotFound        = errors.New("card_not_found")
	ErrCardNotActive       = errors.New("card_not_active")
	ErrCardAlreadyActive   = errors.New("card_already_active")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrDuplicateReference  = errors.New("duplicate_reference")
)
