package domain

import (
	"context"
	"errors"
)

type CreateLinkRequest struct {
	TenantID    string
	CardID      string
	ExternalID  string
	AmountCents int64
}

type Service interface {
	// IngestWebhook processes one processor delivery. Redelivered events and
	// events for already-terminal links are acknowledged as no-ops.
	IngestWebhook(ctx context.Context, provider string, payload []byte) error
	CreateLink(ctx context.Context, req CreateLinkRequest) (PaymentLink, error)
	// ReconcileSweep retries ledger credits for confirmed links whose credit
	// did not land. Returns the number of links reconciled.
	ReconcileSweep(ctx context.Context) (int, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidCard     = errors.New("invalid_card")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidProvider = errors.New("invalid_provider")
	// ErrInvalidPayload is permanent: the processor should not redeliver.
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrInvalidEvent   = errors.New("invalid_event")
	ErrLinkNotFound   = errors.New("link_not_found")
	ErrDuplicateLink  = errors.New("duplicate_link")
)
