package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/perq/internal/cashback/domain"
	"github.com/smallbiznis/perq/internal/cashback/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CashbackRule{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, node
}

func TestResolveCashback(t *testing.T) {
	svc, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	_, err := svc.UpsertRule(ctx, domain.UpsertRuleRequest{
		TenantID:    tenantID.String(),
		Category:    domain.CategoryPurchase,
		BaseRateBps: 500,
		IsActive:    true,
	})
	require.NoError(t, err)

	cashback, err := svc.ResolveCashback(ctx, tenantID.String(), domain.CategoryPurchase, 10_000, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), cashback)

	// No rule for the category means zero cashback, not an error.
	cashback, err = svc.ResolveCashback(ctx, tenantID.String(), domain.CategoryRepair, 10_000, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cashback)
}

func TestResolveCashback_InvalidInput(t *testing.T) {
	svc, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	_, err := svc.ResolveCashback(ctx, "bogus", domain.CategoryPurchase, 10_000, 10000)
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)

	_, err = svc.ResolveCashback(ctx, tenantID.String(), domain.Category("GROCERIES"), 10_000, 10000)
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestUpsertRule_ReplacesActiveRule(t *testing.T) {
	svc, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	_, err := svc.UpsertRule(ctx, domain.UpsertRuleRequest{
		TenantID:    tenantID.String(),
		Category:    domain.CategoryPurchase,
		BaseRateBps: 500,
		IsActive:    true,
	})
	require.NoError(t, err)

	cashback, err := svc.ResolveCashback(ctx, tenantID.String(), domain.CategoryPurchase, 10_000, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), cashback)

	// A new rule takes over immediately; the cached rule set is invalidated.
	_, err = svc.UpsertRule(ctx, domain.UpsertRuleRequest{
		TenantID:    tenantID.String(),
		Category:    domain.CategoryPurchase,
		BaseRateBps: 250,
		IsActive:    true,
	})
	require.NoError(t, err)

	cashback, err = svc.ResolveCashback(ctx, tenantID.String(), domain.CategoryPurchase, 10_000, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(250), cashback)

	rules, err := svc.ListRules(ctx, tenantID.String())
	require.NoError(t, err)

	active := 0
	for _, rule := range rules {
		if rule.IsActive && rule.Category == domain.CategoryPurchase {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestUpsertRule_Validation(t *testing.T) {
	svc, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	_, err := svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: tenantID.String(), Category: "FOOD", BaseRateBps: 500})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)

	_, err = svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: tenantID.String(), Category: domain.CategoryPurchase, BaseRateBps: 10_001})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: tenantID.String(), Category: domain.CategoryPurchase, BaseRateBps: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}
