package domain

import (
	"context"
	"errors"
)

// UnlimitedActivations is returned as ActivationsRemaining for tenants on a
// paid subscription.
const UnlimitedActivations = int64(-1)

// WarnThreshold is the remaining-activations level at or below which the
// tenant is warned that the trial is running out.
const WarnThreshold = int64(5)

type TrackCardActivationResult struct {
	Allowed              bool  `json:"allowed"`
	ActivationsUsed      int64 `json:"activations_used"`
	ActivationsRemaining int64 `json:"activations_remaining"`
	TrialJustExpired     bool  `json:"trial_just_expired"`
	// WarnRemaining is > 0 when this activation crossed a warning threshold
	// that has not been communicated yet.
	WarnRemaining int64 `json:"warn_remaining,omitempty"`
}

type TrialStatus struct {
	SubscriptionStatus   SubscriptionStatus `json:"subscription_status"`
	FreeTrialLimit       int64              `json:"free_trial_limit"`
	ActivationsUsed      int64              `json:"activations_used"`
	ActivationsRemaining int64              `json:"activations_remaining"`
	TrialExpired         bool               `json:"trial_expired"`
}

type Service interface {
	// TrackCardActivation atomically consumes one trial slot. The limit check
	// and the increment are a single conditional update so two concurrent
	// activations can never both slip past the limit.
	TrackCardActivation(ctx context.Context, tenantID string) (TrackCardActivationResult, error)
	// ReturnCardActivation gives back a slot consumed by TrackCardActivation
	// when the activation it was consumed for did not happen.
	ReturnCardActivation(ctx context.Context, tenantID string) error
	GetTrialStatus(ctx context.Context, tenantID string) (TrialStatus, error)
	CanActivateCards(ctx context.Context, tenantID string) (bool, error)
	ResetTrial(ctx context.Context, tenantID string) error
	GetByID(ctx context.Context, tenantID string) (Tenant, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrTrialLimitExceeded = errors.New("trial_limit_exceeded")
)
