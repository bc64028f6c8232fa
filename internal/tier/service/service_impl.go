package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/perq/internal/customer/domain"
	"github.com/smallbiznis/perq/internal/tier/domain"
	"github.com/smallbiznis/perq/internal/tier/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         repository.Repository
	CustomerRepo customerdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         repository.Repository
	customerRepo customerdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("tier.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
	}
}

func (s *Service) RecomputeTier(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer) (string, bool, error) {
	if customer == nil || customer.ID == 0 {
		return "", false, domain.ErrInvalidCustomer
	}

	rules, err := s.repo.ListByTenant(ctx, tx, customer.TenantID)
	if err != nil {
		return "", false, err
	}

	selected, ok := domain.SelectTier(rules, customer.TotalSpendCents)
	if !ok {
		return customer.Tier, false, nil
	}
	if selected.Name == customer.Tier {
		return customer.Tier, false, nil
	}
	// Tiers only move up. A rule edit that raises thresholds must not demote
	// customers who already hold a higher tier.
	for _, rule := range rules {
		if rule.IsActive && rule.Name == customer.Tier && rule.MinTotalSpendCents > selected.MinTotalSpendCents {
			return customer.Tier, false, nil
		}
	}

	if err := s.customerRepo.UpdateTier(ctx, tx, customer.ID, selected.Name); err != nil {
		return "", false, err
	}
	s.log.Info("tier changed",
		zap.String("customer_id", customer.ID.String()),
		zap.String("from", customer.Tier),
		zap.String("to", selected.Name),
	)
	return selected.Name, true, nil
}

func (s *Service) MultiplierFor(ctx context.Context, tx *gorm.DB, tenantID string, tier string) (int64, error) {
	id, err := parseID(tenantID, domain.ErrInvalidTenant)
	if err != nil {
		return 0, err
	}
	tier = strings.TrimSpace(tier)
	if tier == "" {
		return domain.DefaultMultiplierBps, nil
	}

	rules, err := s.repo.ListByTenant(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	for _, rule := range rules {
		if rule.IsActive && rule.Name == tier {
			return rule.MultiplierBps, nil
		}
	}
	return domain.DefaultMultiplierBps, nil
}

func (s *Service) CalculateTierProgress(ctx context.Context, req domain.GetTierProgressRequest) (domain.TierProgress, error) {
	tenantID, err := parseID(req.TenantID, domain.ErrInvalidTenant)
	if err != nil {
		return domain.TierProgress{}, err
	}
	customerID, err := parseID(req.CustomerID, domain.ErrInvalidCustomer)
	if err != nil {
		return domain.TierProgress{}, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, tenantID, customerID)
	if err != nil {
		return domain.TierProgress{}, err
	}
	if customer == nil {
		return domain.TierProgress{}, domain.ErrInvalidCustomer
	}

	rules, err := s.repo.ListByTenant(ctx, s.db, tenantID)
	if err != nil {
		return domain.TierProgress{}, err
	}

	progress := domain.TierProgress{
		CurrentTier:     customer.Tier,
		TotalSpendCents: customer.TotalSpendCents,
		PercentToNext:   100,
	}

	// First active rule strictly above the current spend is the next tier.
	var next *domain.TierRule
	for i := range rules {
		rule := rules[i]
		if !rule.IsActive || rule.MinTotalSpendCents <= customer.TotalSpendCents {
			continue
		}
		if next == nil || rule.MinTotalSpendCents < next.MinTotalSpendCents {
			next = &rules[i]
		}
	}
	if next == nil {
		return progress, nil
	}

	progress.NextTier = next.Name
	progress.NextThresholdCents = next.MinTotalSpendCents
	progress.RemainingCents = next.MinTotalSpendCents - customer.TotalSpendCents
	percent := customer.TotalSpendCents * 100 / next.MinTotalSpendCents
	if percent > 100 {
		percent = 100
	}
	progress.PercentToNext = percent
	return progress, nil
}

func (s *Service) ListRules(ctx context.Context, tenantID string) ([]domain.TierRule, error) {
	id, err := parseID(tenantID, domain.ErrInvalidTenant)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByTenant(ctx, s.db, id)
}

func (s *Service) UpsertRule(ctx context.Context, req domain.UpsertRuleRequest) (domain.TierRule, error) {
	tenantID, err := parseID(req.TenantID, domain.ErrInvalidTenant)
	if err != nil {
		return domain.TierRule{}, err
	}
	name := strings.ToUpper(strings.TrimSpace(req.Name))
	if name == "" {
		return domain.TierRule{}, domain.ErrInvalidName
	}
	if req.MinTotalSpendCents < 0 {
		return domain.TierRule{}, domain.ErrInvalidThreshold
	}
	if req.MultiplierBps <= 0 {
		return domain.TierRule{}, domain.ErrInvalidMultiplier
	}

	now := time.Now().UTC()
	rule := domain.TierRule{
		ID:                 s.genID.Generate(),
		TenantID:           tenantID,
		Name:               name,
		MinTotalSpendCents: req.MinTotalSpendCents,
		MultiplierBps:      req.MultiplierBps,
		IsActive:           req.IsActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Upsert(ctx, s.db, &rule); err != nil {
		return domain.TierRule{}, err
	}
	return rule, nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
