package domain

import (
	"context"
	"errors"
)

type EnqueueRequest struct {
	TenantID string
	// CustomerID may be empty for tenant-level notices (trial warnings).
	CustomerID string
	Channel    Channel
	Template   Template
	Variables  map[string]string
}

type ListRequest struct {
	TenantID  string
	Status    Status
	PageToken string
	PageSize  int32
}

type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	HasMore       bool           `json:"has_more"`
}

type Service interface {
	// Enqueue records the notification and attempts immediate delivery.
	// Gateway failures are recorded on the row, never returned to the caller's
	// financial path.
	Enqueue(ctx context.Context, req EnqueueRequest) (Notification, error)
	// RetrySweep re-attempts recent failed notifications in a bounded batch.
	// Returns the number of notifications retried.
	RetrySweep(ctx context.Context) (int, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidChannel  = errors.New("invalid_channel")
	ErrInvalidTemplate = errors.New("invalid_template")
)
