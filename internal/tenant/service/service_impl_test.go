package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/perq/internal/tenant/domain"
	"github.com/smallbiznis/perq/internal/tenant/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Tenant{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})
	return svc, db, node
}

func seedTenant(t *testing.T, db *gorm.DB, node *snowflake.Node, status domain.SubscriptionStatus, limit, used int64) domain.Tenant {
	t.Helper()

	tenant := domain.Tenant{
		ID:                   node.Generate(),
		Name:                 "Test Store",
		ContactEmail:         "owner@store.test",
		SubscriptionStatus:   status,
		FreeTrialLimit:       limit,
		FreeTrialActivations: used,
	}
	require.NoError(t, db.Create(&tenant).Error)
	return tenant
}

func TestTrackCardActivation_ConsumesSlots(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusTrialing, 3, 0)
	ctx := context.Background()

	first, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, int64(1), first.ActivationsUsed)
	assert.Equal(t, int64(2), first.ActivationsRemaining)
	assert.False(t, first.TrialJustExpired)

	_, err = svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)

	third, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.True(t, third.Allowed)
	assert.Equal(t, int64(0), third.ActivationsRemaining)
	assert.True(t, third.TrialJustExpired)

	fourth, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	assert.ErrorIs(t, err, domain.ErrTrialLimitExceeded)
	assert.False(t, fourth.Allowed)
	assert.Equal(t, int64(0), fourth.ActivationsRemaining)

	var stored domain.Tenant
	require.NoError(t, db.First(&stored, "id = ?", tenant.ID).Error)
	assert.Equal(t, int64(3), stored.FreeTrialActivations)
}

func TestTrackCardActivation_ExpiredNotifiedOnce(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusTrialing, 40, 39)
	ctx := context.Background()

	result, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(40), result.ActivationsUsed)
	assert.Equal(t, int64(0), result.ActivationsRemaining)
	assert.True(t, result.TrialJustExpired)

	// The limit blocks further activations, so the expiry flag can never be
	// reported a second time.
	_, err = svc.TrackCardActivation(ctx, tenant.ID.String())
	assert.ErrorIs(t, err, domain.ErrTrialLimitExceeded)
}

func TestTrackCardActivation_WarnsNearLimit(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusTrialing, 10, 4)
	ctx := context.Background()

	result, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.ActivationsRemaining)
	assert.Equal(t, int64(5), result.WarnRemaining)

	next, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.ActivationsRemaining)
	assert.Equal(t, int64(4), next.WarnRemaining)
}

func TestTrackCardActivation_ActiveSubscriptionUnlimited(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusActive, 1, 1)
	ctx := context.Background()

	result, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, domain.UnlimitedActivations, result.ActivationsRemaining)

	// Paid tenants never consume trial slots.
	var stored domain.Tenant
	require.NoError(t, db.First(&stored, "id = ?", tenant.ID).Error)
	assert.Equal(t, int64(1), stored.FreeTrialActivations)
}

func TestGetTrialStatus(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusTrialing, 40, 38)
	ctx := context.Background()

	status, err := svc.GetTrialStatus(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(40), status.FreeTrialLimit)
	assert.Equal(t, int64(38), status.ActivationsUsed)
	assert.Equal(t, int64(2), status.ActivationsRemaining)
	assert.False(t, status.TrialExpired)

	allowed, err := svc.CanActivateCards(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestResetTrial(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusTrialing, 5, 5)
	ctx := context.Background()

	allowed, err := svc.CanActivateCards(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, svc.ResetTrial(ctx, tenant.ID.String()))

	status, err := svc.GetTrialStatus(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.ActivationsUsed)
	assert.Equal(t, int64(5), status.ActivationsRemaining)

	// The next expiry and warnings must fire again after a reset.
	result, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.ActivationsRemaining)
	assert.Equal(t, int64(4), result.WarnRemaining)
}

func TestReturnCardActivation(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusTrialing, 2, 0)
	ctx := context.Background()

	_, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)

	require.NoError(t, svc.ReturnCardActivation(ctx, tenant.ID.String()))

	var stored domain.Tenant
	require.NoError(t, db.First(&stored, "id = ?", tenant.ID).Error)
	assert.Equal(t, int64(0), stored.FreeTrialActivations)

	// Returning with nothing consumed is a no-op.
	require.NoError(t, svc.ReturnCardActivation(ctx, tenant.ID.String()))
	require.NoError(t, db.First(&stored, "id = ?", tenant.ID).Error)
	assert.Equal(t, int64(0), stored.FreeTrialActivations)
}

func TestReturnCardActivation_ReopensTrial(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusTrialing, 1, 0)
	ctx := context.Background()

	result, err := svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.True(t, result.TrialJustExpired)

	require.NoError(t, svc.ReturnCardActivation(ctx, tenant.ID.String()))

	// The returned slot reopens the trial, and the expiry notice fires again
	// when the last slot is consumed a second time.
	result, err = svc.TrackCardActivation(ctx, tenant.ID.String())
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.TrialJustExpired)
}

func TestReturnCardActivation_ActiveSubscription(t *testing.T) {
	svc, db, node := newTestService(t)
	tenant := seedTenant(t, db, node, domain.SubscriptionStatusActive, 1, 1)

	require.NoError(t, svc.ReturnCardActivation(context.Background(), tenant.ID.String()))

	var stored domain.Tenant
	require.NoError(t, db.First(&stored, "id = ?", tenant.ID).Error)
	assert.Equal(t, int64(1), stored.FreeTrialActivations)
}

func TestTrackCardActivation_InvalidID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.TrackCardActivation(context.Background(), "not-a-snowflake")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.GetTrialStatus(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
