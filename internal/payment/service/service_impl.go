package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sethvargo/go-retry"
	"github.com/smallbiznis/perq/internal/clock"
	"github.com/smallbiznis/perq/internal/config"
	ledgerdomain "github.com/smallbiznis/perq/internal/ledger/domain"
	"github.com/smallbiznis/perq/internal/metrics"
	"github.com/smallbiznis/perq/internal/payment/domain"
	"github.com/smallbiznis/perq/internal/payment/repository"
	pkgdb "github.com/smallbiznis/perq/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    repository.Repository
	Ledger  ledgerdomain.Service
	Clock   clock.Clock
	Cfg     config.Config
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     repository.Repository
	ledger   ledgerdomain.Service
	clock    clock.Clock
	sweepCfg config.SweepConfig
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		ledger:   p.Ledger,
		clock:    p.Clock,
		sweepCfg: p.Cfg.Sweep,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateLink(ctx context.Context, req domain.CreateLinkRequest) (domain.PaymentLink, error) {
	tenantID, err := snowflake.ParseString(strings.TrimSpace(req.TenantID))
	if err != nil || tenantID == 0 {
		return domain.PaymentLink{}, domain.ErrInvalidTenant
	}
	cardID, err := snowflake.ParseString(strings.TrimSpace(req.CardID))
	if err != nil || cardID == 0 {
		return domain.PaymentLink{}, domain.ErrInvalidCard
	}
	if req.AmountCents <= 0 {
		return domain.PaymentLink{}, domain.ErrInvalidAmount
	}

	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		externalID = s.genID.Generate().String()
	}

	now := s.clock.Now()
	link := domain.PaymentLink{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		CardID:      cardID,
		ExternalID:  externalID,
		AmountCents: req.AmountCents,
		Status:      domain.LinkStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertLink(ctx, s.db, &link); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.PaymentLink{}, domain.ErrDuplicateLink
		}
		return domain.PaymentLink{}, err
	}
	return link, nil
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return domain.ErrInvalidProvider
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.count("unknown", "invalid")
		return domain.ErrInvalidPayload
	}
	event.EventID = strings.TrimSpace(event.EventID)
	event.ExternalObjectID = strings.TrimSpace(event.ExternalObjectID)
	if event.EventID == "" || event.ExternalObjectID == "" {
		s.count(event.EventType, "invalid")
		return domain.ErrInvalidPayload
	}
	if event.EventType != domain.EventTypePaymentSucceeded && event.EventType != domain.EventTypePaymentFailed {
		s.count(event.EventType, "invalid")
		return domain.ErrInvalidEvent
	}

	record := domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.EventID,
		EventType:       event.EventType,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, &record)
	if err != nil {
		return err
	}
	if !inserted {
		// The event row outlives a delivery that failed after the insert, so a
		// recorded event is only a duplicate once it finished processing.
		// Unprocessed redeliveries run again; the one-way link transitions make
		// that safe.
		existing, err := s.repo.FindEvent(ctx, s.db, provider, event.EventID)
		if err != nil {
			return err
		}
		if existing == nil || existing.ProcessedAt != nil {
			s.count(event.EventType, "duplicate")
			s.log.Info("duplicate webhook event",
				zap.String("provider", provider),
				zap.String("provider_event_id", event.EventID),
			)
			return nil
		}
		record.ID = existing.ID
		s.log.Info("resuming unprocessed webhook event",
			zap.String("provider", provider),
			zap.String("provider_event_id", event.EventID),
		)
	}

	link, err := s.repo.FindLinkByExternalID(ctx, s.db, event.ExternalObjectID)
	if err != nil {
		return err
	}
	if link == nil {
		s.count(event.EventType, "unknown_link")
		return domain.ErrLinkNotFound
	}

	switch event.EventType {
	case domain.EventTypePaymentSucceeded:
		err = s.handleSucceeded(ctx, link)
	case domain.EventTypePaymentFailed:
		err = s.handleFailed(ctx, link)
	}
	if err != nil {
		return err
	}

	if err := s.repo.MarkEventProcessed(ctx, s.db, record.ID, s.clock.Now()); err != nil {
		s.log.Warn("mark event processed", zap.String("provider_event_id", event.EventID), zap.Error(err))
	}
	s.count(event.EventType, "processed")
	return nil
}

func (s *Service) handleSucceeded(ctx context.Context, link *domain.PaymentLink) error {
	confirmed, err := s.repo.ConfirmPending(ctx, s.db, link.ID, s.clock.Now())
	if err != nil {
		return err
	}
	if !confirmed {
		// The link already left pending, either from an earlier success or a
		// failure that raced this delivery. Nothing more to do.
		s.log.Info("payment link already terminal",
			zap.String("payment_link_id", link.ID.String()),
			zap.String("status", string(link.Status)),
		)
		return nil
	}

	// The confirmation is durable at this point. A credit failure leaves
	// credit_pending set for the reconcile sweep instead of failing the event.
	if err := s.creditLink(ctx, link); err != nil {
		s.log.Error("ledger credit deferred to reconcile",
			zap.String("payment_link_id", link.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) handleFailed(ctx context.Context, link *domain.PaymentLink) error {
	failed, err := s.repo.FailPending(ctx, s.db, link.ID, s.clock.Now())
	if err != nil {
		return err
	}
	if !failed {
		s.log.Info("payment link already terminal",
			zap.String("payment_link_id", link.ID.String()),
			zap.String("status", string(link.Status)),
		)
	}
	return nil
}

// creditLink applies the ADD_FUNDS transaction for a confirmed link. The
// unique payment_link_id column on transactions makes it safe to call more
// than once.
func (s *Service) creditLink(ctx context.Context, link *domain.PaymentLink) error {
	_, err := s.ledger.ApplyTransaction(ctx, ledgerdomain.ApplyTransactionRequest{
		TenantID:      link.TenantID.String(),
		CardID:        link.CardID.String(),
		Type:          ledgerdomain.TransactionTypeAddFunds,
		AmountCents:   link.AmountCents,
		Note:          "payment:" + link.ExternalID,
		PaymentLinkID: link.ID.String(),
	})
	if err != nil && !errors.Is(err, ledgerdomain.ErrDuplicateReference) {
		return err
	}
	return s.repo.ClearCreditPending(ctx, s.db, link.ID)
}

func (s *Service) ReconcileSweep(ctx context.Context) (int, error) {
	links, err := s.repo.ListCreditPending(ctx, s.db, s.sweepCfg.BatchSize)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for i := range links {
		link := links[i]
		backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			return retry.RetryableError(s.creditLink(ctx, &link))
		})
		if err != nil {
			s.log.Warn("reconcile credit failed",
				zap.String("payment_link_id", link.ID.String()),
				zap.Error(err),
			)
			continue
		}
		reconciled++
	}
	if reconciled > 0 {
		s.log.Info("payment reconcile sweep finished", zap.Int("reconciled", reconciled))
	}
	return reconciled, nil
}

func (s *Service) count(eventType, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}
