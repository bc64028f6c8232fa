package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("tenant.service"),
		repo: p.Repo,
	}
}

func (s *Service) TrackCardActivation(ctx context.Context, tenantID string) (domain.TrackCardActivationResult, error) {
	id, err := s.parseID(tenantID)
	if err != nil {
		return domain.TrackCardActivationResult{}, err
	}

	var result domain.TrackCardActivationResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if tenant == nil {
			return domain.ErrNotFound
		}

		if tenant.SubscriptionStatus == domain.SubscriptionStatusActive {
			result = domain.TrackCardActivationResult{
				Allowed:              true,
				ActivationsUsed:      tenant.FreeTrialActivations,
				ActivationsRemaining: domain.UnlimitedActivations,
			}
			return nil
		}

		consumed, err := s.repo.TryConsumeActivation(ctx, tx, id)
		if err != nil {
			return err
		}
		if !consumed {
			result = domain.TrackCardActivationResult{
				Allowed:              false,
				ActivationsUsed:      tenant.FreeTrialActivations,
				ActivationsRemaining: 0,
			}
			return domain.ErrTrialLimitExceeded
		}

		// Re-read inside the same transaction so the counters reflect the
		// increment this call just performed.
		tenant, err = s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if tenant == nil {
			return domain.ErrNotFound
		}

		remaining := tenant.FreeTrialLimit - tenant.FreeTrialActivations
		if remaining < 0 {
			remaining = 0
		}
		result = domain.TrackCardActivationResult{
			Allowed:              true,
			ActivationsUsed:      tenant.FreeTrialActivations,
			ActivationsRemaining: remaining,
		}

		if remaining == 0 {
			flipped, err := s.repo.MarkTrialExpiredNotified(ctx, tx, id)
			if err != nil {
				return err
			}
			result.TrialJustExpired = flipped
			return nil
		}

		if remaining <= domain.WarnThreshold {
			warned, err := s.repo.TryMarkWarned(ctx, tx, id, remaining)
			if err != nil {
				return err
			}
			if warned {
				result.WarnRemaining = remaining
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	s.log.Info("card activation tracked",
		zap.String("tenant_id", id.String()),
		zap.Int64("activations_used", result.ActivationsUsed),
		zap.Int64("activations_remaining", result.ActivationsRemaining),
		zap.Bool("trial_just_expired", result.TrialJustExpired),
	)
	return result, nil
}

func (s *Service) ReturnCardActivation(ctx context.Context, tenantID string) error {
	id, err := s.parseID(tenantID)
	if err != nil {
		return err
	}

	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if tenant == nil {
		return domain.ErrNotFound
	}
	// Paid tenants never consumed a slot, so there is nothing to give back.
	if tenant.SubscriptionStatus == domain.SubscriptionStatusActive {
		return nil
	}

	returned, err := s.repo.ReturnActivation(ctx, s.db, id)
	if err != nil {
		return err
	}
	if returned {
		s.log.Info("card activation returned", zap.String("tenant_id", id.String()))
	}
	return nil
}

func (s *Service) GetTrialStatus(ctx context.Context, tenantID string) (domain.TrialStatus, error) {
	id, err := s.parseID(tenantID)
	if err != nil {
		return domain.TrialStatus{}, err
	}

	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.TrialStatus{}, err
	}
	if tenant == nil {
		return domain.TrialStatus{}, domain.ErrNotFound
	}

	status := domain.TrialStatus{
		SubscriptionStatus: tenant.SubscriptionStatus,
		FreeTrialLimit:     tenant.FreeTrialLimit,
		ActivationsUsed:    tenant.FreeTrialActivations,
	}
	if tenant.SubscriptionStatus == domain.SubscriptionStatusActive {
		status.ActivationsRemaining = domain.UnlimitedActivations
		return status, nil
	}

	remaining := tenant.FreeTrialLimit - tenant.FreeTrialActivations
	if remaining < 0 {
		remaining = 0
	}
	status.ActivationsRemaining = remaining
	status.TrialExpired = remaining == 0
	return status, nil
}

func (s *Service) CanActivateCards(ctx context.Context, tenantID string) (bool, error) {
	status, err := s.GetTrialStatus(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if status.ActivationsRemaining == domain.UnlimitedActivations {
		return true, nil
	}
	return status.ActivationsRemaining > 0, nil
}

func (s *Service) ResetTrial(ctx context.Context, tenantID string) error {
	id, err := s.parseID(tenantID)
	if err != nil {
		return err
	}

	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if tenant == nil {
		return domain.ErrNotFound
	}

	if err := s.repo.ResetTrial(ctx, s.db, id); err != nil {
		return err
	}
	s.log.Info("trial reset", zap.String("tenant_id", id.String()))
	return nil
}

func (s *Service) GetByID(ctx context.Context, tenantID string) (domain.Tenant, error) {
	id, err := s.parseID(tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}

	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return *tenant, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
