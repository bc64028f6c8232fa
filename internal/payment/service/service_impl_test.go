package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/perq/internal/clock"
	"github.com/smallbiznis/perq/internal/config"
	ledgerdomain "github.com/smallbiznis/perq/internal/ledger/domain"
	"github.com/smallbiznis/perq/internal/payment/domain"
	"github.com/smallbiznis/perq/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ledgerStub records credits keyed by payment link and reports a duplicate on
// any repeat, mirroring the unique index on transactions.
type ledgerStub struct {
	mu      sync.Mutex
	credits map[string]int64
	failAll bool
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{credits: map[string]int64{}}
}

func (l *ledgerStub) setFailing(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failAll = fail
}

func (l *ledgerStub) creditCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.credits)
}

func (l *ledgerStub) ApplyTransaction(ctx context.Context, req ledgerdomain.ApplyTransactionRequest) (ledgerdomain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return ledgerdomain.Transaction{}, errors.New("ledger unavailable")
	}
	if _, ok := l.credits[req.PaymentLinkID]; ok {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrDuplicateReference
	}
	l.credits[req.PaymentLinkID] = req.AmountCents
	return ledgerdomain.Transaction{}, nil
}

func (l *ledgerStub) CreateCard(ctx context.Context, req ledgerdomain.CreateCardRequest) (ledgerdomain.Card, error) {
	return ledgerdomain.Card{}, nil
}

func (l *ledgerStub) ActivateCard(ctx context.Context, req ledgerdomain.ActivateCardRequest) (ledgerdomain.ActivateCardResult, error) {
	return ledgerdomain.ActivateCardResult{}, nil
}

func (l *ledgerStub) SetCardBlocked(ctx context.Context, req ledgerdomain.SetCardBlockedRequest) (ledgerdomain.Card, error) {
	return ledgerdomain.Card{}, nil
}

func (l *ledgerStub) GetCard(ctx context.Context, tenantID, cardID string) (ledgerdomain.Card, error) {
	return ledgerdomain.Card{}, nil
}

func (l *ledgerStub) ListTransactions(ctx context.Context, req ledgerdomain.ListTransactionsRequest) (ledgerdomain.ListTransactionsResponse, error) {
	return ledgerdomain.ListTransactionsResponse{}, nil
}

func newTestService(t *testing.T) (domain.Service, *ledgerStub, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.PaymentLink{}, &domain.EventRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ledger := newLedgerStub()
	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
		Ledger: ledger,
		Clock:  clock.NewSystemClock(),
		Cfg:    config.Config{Sweep: config.SweepConfig{BatchSize: 10}},
	})
	return svc, ledger, db, node
}

func createLink(t *testing.T, svc domain.Service, node *snowflake.Node) domain.PaymentLink {
	t.Helper()

	link, err := svc.CreateLink(context.Background(), domain.CreateLinkRequest{
		TenantID:    node.Generate().String(),
		CardID:      node.Generate().String(),
		AmountCents: 5000,
	})
	require.NoError(t, err)
	return link
}

func eventPayload(t *testing.T, eventID, eventType, externalID string) []byte {
	t.Helper()

	payload, err := json.Marshal(domain.WebhookEvent{
		EventID:          eventID,
		EventType:        eventType,
		ExternalObjectID: externalID,
		AmountCents:      5000,
	})
	require.NoError(t, err)
	return payload
}

func loadLink(t *testing.T, db *gorm.DB, id snowflake.ID) domain.PaymentLink {
	t.Helper()

	var link domain.PaymentLink
	require.NoError(t, db.First(&link, "id = ?", id).Error)
	return link
}

func TestIngestWebhook_SuccessCreditsOnce(t *testing.T) {
	svc, ledger, db, node := newTestService(t)
	link := createLink(t, svc, node)
	ctx := context.Background()

	payload := eventPayload(t, "evt_1", domain.EventTypePaymentSucceeded, link.ExternalID)
	require.NoError(t, svc.IngestWebhook(ctx, "stripe", payload))

	stored := loadLink(t, db, link.ID)
	assert.Equal(t, domain.LinkStatusConfirmed, stored.Status)
	assert.False(t, stored.CreditPending)
	assert.NotNil(t, stored.ConfirmedAt)
	assert.Equal(t, 1, ledger.creditCount())

	var record domain.EventRecord
	require.NoError(t, db.First(&record, "provider_event_id = ?", "evt_1").Error)
	assert.NotNil(t, record.ProcessedAt)

	// Redelivery of the same event is acknowledged without a second credit.
	require.NoError(t, svc.IngestWebhook(ctx, "stripe", payload))
	assert.Equal(t, 1, ledger.creditCount())

	// A fresh event on an already confirmed link is a terminal no-op.
	second := eventPayload(t, "evt_2", domain.EventTypePaymentSucceeded, link.ExternalID)
	require.NoError(t, svc.IngestWebhook(ctx, "stripe", second))
	assert.Equal(t, 1, ledger.creditCount())
}

func TestIngestWebhook_FailedStaysFailed(t *testing.T) {
	svc, ledger, db, node := newTestService(t)
	link := createLink(t, svc, node)
	ctx := context.Background()

	failed := eventPayload(t, "evt_f1", domain.EventTypePaymentFailed, link.ExternalID)
	require.NoError(t, svc.IngestWebhook(ctx, "stripe", failed))

	stored := loadLink(t, db, link.ID)
	assert.Equal(t, domain.LinkStatusFailed, stored.Status)
	assert.NotNil(t, stored.FailedAt)

	// A late success after the failure never credits the card.
	late := eventPayload(t, "evt_f2", domain.EventTypePaymentSucceeded, link.ExternalID)
	require.NoError(t, svc.IngestWebhook(ctx, "stripe", late))

	stored = loadLink(t, db, link.ID)
	assert.Equal(t, domain.LinkStatusFailed, stored.Status)
	assert.Equal(t, 0, ledger.creditCount())
}

func TestIngestWebhook_RejectsBadInput(t *testing.T) {
	svc, _, _, node := newTestService(t)
	link := createLink(t, svc, node)
	ctx := context.Background()

	err := svc.IngestWebhook(ctx, " ", eventPayload(t, "evt_1", domain.EventTypePaymentSucceeded, link.ExternalID))
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)

	err = svc.IngestWebhook(ctx, "stripe", []byte("{not json"))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	err = svc.IngestWebhook(ctx, "stripe", eventPayload(t, "", domain.EventTypePaymentSucceeded, link.ExternalID))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	err = svc.IngestWebhook(ctx, "stripe", eventPayload(t, "evt_x", "payment_refunded", link.ExternalID))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	err = svc.IngestWebhook(ctx, "stripe", eventPayload(t, "evt_y", domain.EventTypePaymentSucceeded, "no-such-object"))
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestCreateLink(t *testing.T) {
	svc, _, _, node := newTestService(t)
	ctx := context.Background()

	tenantID := node.Generate().String()
	cardID := node.Generate().String()

	link, err := svc.CreateLink(ctx, domain.CreateLinkRequest{
		TenantID:    tenantID,
		CardID:      cardID,
		AmountCents: 2500,
		ExternalID:  "plink_abc",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LinkStatusPending, link.Status)
	assert.Equal(t, "plink_abc", link.ExternalID)

	_, err = svc.CreateLink(ctx, domain.CreateLinkRequest{
		TenantID:    tenantID,
		CardID:      cardID,
		AmountCents: 2500,
		ExternalID:  "plink_abc",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateLink)

	_, err = svc.CreateLink(ctx, domain.CreateLinkRequest{TenantID: "bogus", CardID: cardID, AmountCents: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)

	_, err = svc.CreateLink(ctx, domain.CreateLinkRequest{TenantID: tenantID, CardID: "", AmountCents: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidCard)

	_, err = svc.CreateLink(ctx, domain.CreateLinkRequest{TenantID: tenantID, CardID: cardID, AmountCents: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestIngestWebhook_ResumesAfterFailedDelivery(t *testing.T) {
	svc, ledger, db, node := newTestService(t)
	link := createLink(t, svc, node)
	ctx := context.Background()

	// State left behind by a delivery that recorded the event but then hit a
	// transient failure before the link transition: the event row exists with
	// processed_at still null, the link is still pending.
	payload := eventPayload(t, "evt_u1", domain.EventTypePaymentSucceeded, link.ExternalID)
	record := domain.EventRecord{
		ID:              node.Generate(),
		Provider:        "stripe",
		ProviderEventID: "evt_u1",
		EventType:       domain.EventTypePaymentSucceeded,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(&record).Error)

	// Redelivery must finish the work, not be swallowed as a duplicate.
	require.NoError(t, svc.IngestWebhook(ctx, "stripe", payload))

	stored := loadLink(t, db, link.ID)
	assert.Equal(t, domain.LinkStatusConfirmed, stored.Status)
	assert.False(t, stored.CreditPending)
	assert.Equal(t, 1, ledger.creditCount())

	var after domain.EventRecord
	require.NoError(t, db.First(&after, "id = ?", record.ID).Error)
	assert.NotNil(t, after.ProcessedAt)

	// Once processed, further redeliveries are duplicates again.
	require.NoError(t, svc.IngestWebhook(ctx, "stripe", payload))
	assert.Equal(t, 1, ledger.creditCount())
}

func TestReconcileSweep_RecoversDeferredCredit(t *testing.T) {
	svc, ledger, db, node := newTestService(t)
	link := createLink(t, svc, node)
	ctx := context.Background()

	// The ledger is down when the success event arrives. The confirmation
	// still commits and the credit is deferred.
	ledger.setFailing(true)
	payload := eventPayload(t, "evt_r1", domain.EventTypePaymentSucceeded, link.ExternalID)
	require.NoError(t, svc.IngestWebhook(ctx, "stripe", payload))

	stored := loadLink(t, db, link.ID)
	assert.Equal(t, domain.LinkStatusConfirmed, stored.Status)
	assert.True(t, stored.CreditPending)
	assert.Equal(t, 0, ledger.creditCount())

	// Sweeping while the ledger is still down changes nothing.
	reconciled, err := svc.ReconcileSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reconciled)
	assert.True(t, loadLink(t, db, link.ID).CreditPending)

	ledger.setFailing(false)
	reconciled, err = svc.ReconcileSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reconciled)
	assert.Equal(t, 1, ledger.creditCount())

	stored = loadLink(t, db, link.ID)
	assert.False(t, stored.CreditPending)

	// A later sweep finds nothing left to do.
	reconciled, err = svc.ReconcileSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reconciled)
}
