package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/cache"
	"github.com/smallbiznis/perq/internal/cashback/domain"
	"github.com/smallbiznis/perq/internal/cashback/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ruleCacheTTL = 5 * time.Minute

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository
	rules cache.Cache[snowflake.ID, []domain.CashbackRule]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("cashback.service"),
		genID: p.GenID,
		repo:  p.Repo,
		rules: cache.NewTTLCache[snowflake.ID, []domain.CashbackRule](),
	}
}

func (s *Service) ResolveCashback(ctx context.Context, tenantID string, category domain.Category, amountCents, tierMultiplierBps int64) (int64, error) {
	id, err := parseID(tenantID)
	if err != nil {
		return 0, err
	}
	if !category.Valid() {
		return 0, domain.ErrInvalidCategory
	}

	rules, err := s.rulesForTenant(ctx, id)
	if err != nil {
		return 0, err
	}

	// No active rule means no cashback, not an error.
	var baseRateBps int64
	for _, rule := range rules {
		if rule.IsActive && rule.Category == category {
			baseRateBps = rule.BaseRateBps
			break
		}
	}
	if baseRateBps == 0 {
		return 0, nil
	}
	return domain.ComputeCashback(amountCents, baseRateBps, tierMultiplierBps), nil
}

func (s *Service) ListRules(ctx context.Context, tenantID string) ([]domain.CashbackRule, error) {
	id, err := parseID(tenantID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByTenant(ctx, s.db, id)
}

func (s *Service) UpsertRule(ctx context.Context, req domain.UpsertRuleRequest) (domain.CashbackRule, error) {
	id, err := parseID(req.TenantID)
	if err != nil {
		return domain.CashbackRule{}, err
	}
	if !req.Category.Valid() {
		return domain.CashbackRule{}, domain.ErrInvalidCategory
	}
	if req.BaseRateBps < 0 || req.BaseRateBps > 10000 {
		return domain.CashbackRule{}, domain.ErrInvalidRate
	}

	now := time.Now().UTC()
	rule := domain.CashbackRule{
		ID:          s.genID.Generate(),
		TenantID:    id,
		Category:    req.Category,
		BaseRateBps: req.BaseRateBps,
		IsActive:    req.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Upsert(ctx, s.db, &rule); err != nil {
		return domain.CashbackRule{}, err
	}
	s.rules.Delete(id)
	return rule, nil
}

func (s *Service) rulesForTenant(ctx context.Context, tenantID snowflake.ID) ([]domain.CashbackRule, error) {
	if cached, ok := s.rules.Get(tenantID); ok {
		return cached, nil
	}
	rules, err := s.repo.ListByTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	s.rules.Set(tenantID, rules, ruleCacheTTL)
	return rules, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidTenant
	}
	return id, nil
}
