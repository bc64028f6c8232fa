package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	customerdomain "github.com/smallbiznis/perq/internal/customer/domain"
	customerrepo "github.com/smallbiznis/perq/internal/customer/repository"
	"github.com/smallbiznis/perq/internal/tier/domain"
	"github.com/smallbiznis/perq/internal/tier/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.TierRule{}, &customerdomain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Repo:         repository.Provide(),
		CustomerRepo: customerrepo.Provide(),
	})
	return svc, db, node
}

func seedRules(t *testing.T, svc domain.Service, tenantID snowflake.ID) {
	t.Helper()

	for _, rule := range []domain.UpsertRuleRequest{
		{TenantID: tenantID.String(), Name: "SILVER", MinTotalSpendCents: 0, MultiplierBps: 10000, IsActive: true},
		{TenantID: tenantID.String(), Name: "GOLD", MinTotalSpendCents: 100_000, MultiplierBps: 15000, IsActive: true},
		{TenantID: tenantID.String(), Name: "PLATINUM", MinTotalSpendCents: 500_000, MultiplierBps: 20000, IsActive: true},
	} {
		_, err := svc.UpsertRule(context.Background(), rule)
		require.NoError(t, err)
	}
}

func seedCustomer(t *testing.T, db *gorm.DB, node *snowflake.Node, tenantID snowflake.ID, tier string, spend int64) customerdomain.Customer {
	t.Helper()

	customer := customerdomain.Customer{
		ID:              node.Generate(),
		TenantID:        tenantID,
		Name:            "Dewi",
		Phone:           "+628123456789",
		Tier:            tier,
		TotalSpendCents: spend,
	}
	require.NoError(t, db.Create(&customer).Error)
	return customer
}

func TestSelectTier_Deterministic(t *testing.T) {
	rules := []domain.TierRule{
		{Name: "GOLD", MinTotalSpendCents: 100_000, IsActive: true},
		{Name: "SILVER", MinTotalSpendCents: 0, IsActive: true},
		{Name: "PLATINUM", MinTotalSpendCents: 500_000, IsActive: true},
		{Name: "LEGACY", MinTotalSpendCents: 50_000, IsActive: false},
	}

	tests := []struct {
		spend int64
		want  string
	}{
		{0, "SILVER"},
		{99_999, "SILVER"},
		{100_000, "GOLD"},
		{499_999, "GOLD"},
		{500_000, "PLATINUM"},
		{10_000_000, "PLATINUM"},
	}
	for _, tc := range tests {
		selected, ok := domain.SelectTier(rules, tc.spend)
		require.True(t, ok)
		assert.Equal(t, tc.want, selected.Name, "spend=%d", tc.spend)
	}

	_, ok := domain.SelectTier(nil, 100_000)
	assert.False(t, ok)
}

func TestRecomputeTier_CrossesThreshold(t *testing.T) {
	svc, db, node := newTestService(t)
	tenantID := node.Generate()
	seedRules(t, svc, tenantID)
	customer := seedCustomer(t, db, node, tenantID, "SILVER", 85_000)
	ctx := context.Background()

	// Still below the GOLD threshold.
	tier, changed, err := svc.RecomputeTier(ctx, db, &customer)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "SILVER", tier)

	customer.TotalSpendCents += 20_000
	tier, changed, err = svc.RecomputeTier(ctx, db, &customer)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "GOLD", tier)

	var stored customerdomain.Customer
	require.NoError(t, db.First(&stored, "id = ?", customer.ID).Error)
	assert.Equal(t, "GOLD", stored.Tier)
}

func TestMultiplierFor(t *testing.T) {
	svc, db, node := newTestService(t)
	tenantID := node.Generate()
	seedRules(t, svc, tenantID)
	ctx := context.Background()

	multiplier, err := svc.MultiplierFor(ctx, db, tenantID.String(), "GOLD")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), multiplier)

	// Unknown or empty tiers fall back to 1x.
	multiplier, err = svc.MultiplierFor(ctx, db, tenantID.String(), "DIAMOND")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMultiplierBps, multiplier)

	multiplier, err = svc.MultiplierFor(ctx, db, tenantID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMultiplierBps, multiplier)
}

func TestCalculateTierProgress(t *testing.T) {
	svc, db, node := newTestService(t)
	tenantID := node.Generate()
	seedRules(t, svc, tenantID)
	customer := seedCustomer(t, db, node, tenantID, "SILVER", 85_000)
	ctx := context.Background()

	progress, err := svc.CalculateTierProgress(ctx, domain.GetTierProgressRequest{
		TenantID:   tenantID.String(),
		CustomerID: customer.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "SILVER", progress.CurrentTier)
	assert.Equal(t, "GOLD", progress.NextTier)
	assert.Equal(t, int64(100_000), progress.NextThresholdCents)
	assert.Equal(t, int64(15_000), progress.RemainingCents)
	assert.Equal(t, int64(85), progress.PercentToNext)
}

func TestCalculateTierProgress_TopTier(t *testing.T) {
	svc, db, node := newTestService(t)
	tenantID := node.Generate()
	seedRules(t, svc, tenantID)
	customer := seedCustomer(t, db, node, tenantID, "PLATINUM", 600_000)

	progress, err := svc.CalculateTierProgress(context.Background(), domain.GetTierProgressRequest{
		TenantID:   tenantID.String(),
		CustomerID: customer.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "PLATINUM", progress.CurrentTier)
	assert.Empty(t, progress.NextTier)
	assert.Equal(t, int64(100), progress.PercentToNext)
}

func TestUpsertRule_Validation(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	_, err := svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: tenantID.String(), Name: "", MultiplierBps: 10000})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: tenantID.String(), Name: "GOLD", MinTotalSpendCents: -1, MultiplierBps: 10000})
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	_, err = svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: tenantID.String(), Name: "GOLD", MultiplierBps: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidMultiplier)

	_, err = svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: "bogus", Name: "GOLD", MultiplierBps: 10000})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestUpsertRule_UpdatesExisting(t *testing.T) {
	svc, _, node := newTestService(t)
	tenantID := node.Generate()
	ctx := context.Background()

	_, err := svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: tenantID.String(), Name: "GOLD", MinTotalSpendCents: 100_000, MultiplierBps: 15000, IsActive: true})
	require.NoError(t, err)

	_, err = svc.UpsertRule(ctx, domain.UpsertRuleRequest{TenantID: tenantID.String(), Name: "GOLD", MinTotalSpendCents: 120_000, MultiplierBps: 16000, IsActive: true})
	require.NoError(t, err)

	rules, err := svc.ListRules(ctx, tenantID.String())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(120_000), rules[0].MinTotalSpendCents)
	assert.Equal(t, int64(16000), rules[0].MultiplierBps)
}
