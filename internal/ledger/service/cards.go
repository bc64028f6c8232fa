package service

import (
	"context"
	"strconv"

	"github.com/smallbiznis/perq/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/perq/internal/notification/domain"
	tenantdomain "github.com/smallbiznis/perq/internal/tenant/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateCard(ctx context.Context, req domain.CreateCardRequest) (domain.Card, error) {
	tenantID, err := parseID(req.TenantID, domain.ErrInvalidTenant)
	if err != nil {
		return domain.Card{}, err
	}

	now := s.clock.Now()
	card := domain.Card{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Status:    domain.CardStatusUnassigned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertCard(ctx, s.db, &card); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

func (s *Service) ActivateCard(ctx context.Context, req domain.ActivateCardRequest) (domain.ActivateCardResult, error) {
	tenantID, err := parseID(req.TenantID, domain.ErrInvalidTenant)
	if err != nil {
		return domain.ActivateCardResult{}, err
	}
	cardID, err := parseID(req.CardID, domain.ErrInvalidID)
	if err != nil {
		return domain.ActivateCardResult{}, err
	}
	customerID, err := parseID(req.CustomerID, domain.ErrInvalidID)
	if err != nil {
		return domain.ActivateCardResult{}, err
	}

	card, err := s.repo.FindCardByID(ctx, s.db, tenantID, cardID)
	if err != nil {
		return domain.ActivateCardResult{}, err
	}
	if card == nil {
		return domain.ActivateCardResult{}, domain.ErrCardNotFound
	}
	if card.Status == domain.CardStatusActive {
		return domain.ActivateCardResult{}, domain.ErrCardAlreadyActive
	}

	// The trial slot is consumed first; the Trial Gate's conditional update
	// is the authoritative limit check.
	tracking, err := s.tenantSvc.TrackCardActivation(ctx, req.TenantID)
	if err != nil {
		return domain.ActivateCardResult{}, err
	}

	var activated bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activated, err = s.repo.ActivateCard(ctx, tx, cardID, customerID, s.clock.Now())
		return err
	})
	if err != nil {
		s.returnActivation(ctx, req.TenantID, tracking)
		return domain.ActivateCardResult{}, err
	}
	if !activated {
		// Lost the race against a concurrent activation of the same card. The
		// slot consumed above must go back.
		s.returnActivation(ctx, req.TenantID, tracking)
		return domain.ActivateCardResult{}, domain.ErrCardAlreadyActive
	}

	card, err = s.repo.FindCardByID(ctx, s.db, tenantID, cardID)
	if err != nil || card == nil {
		return domain.ActivateCardResult{}, domain.ErrCardNotFound
	}

	s.log.Info("card activated",
		zap.String("card_id", cardID.String()),
		zap.String("customer_id", customerID.String()),
		zap.Int64("activations_remaining", tracking.ActivationsRemaining),
	)

	go s.notifyActivation(*card, tracking)

	return domain.ActivateCardResult{
		Card:                 *card,
		ActivationsRemaining: tracking.ActivationsRemaining,
		TrialJustExpired:     tracking.TrialJustExpired,
	}, nil
}

func (s *Service) SetCardBlocked(ctx context.Context, req domain.SetCardBlockedRequest) (domain.Card, error) {
	tenantID, err := parseID(req.TenantID, domain.ErrInvalidTenant)
	if err != nil {
		return domain.Card{}, err
	}
	cardID, err := parseID(req.CardID, domain.ErrInvalidID)
	if err != nil {
		return domain.Card{}, err
	}

	from, to := domain.CardStatusActive, domain.CardStatusBlocked
	if !req.Blocked {
		from, to = domain.CardStatusBlocked, domain.CardStatusActive
	}

	changed, err := s.repo.SetCardStatus(ctx, s.db, cardID, from, to)
	if err != nil {
		return domain.Card{}, err
	}
	if !changed {
		return domain.Card{}, domain.ErrCardNotActive
	}

	card, err := s.repo.FindCardByID(ctx, s.db, tenantID, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	if card == nil {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return *card, nil
}

func (s *Service) GetCard(ctx context.Context, tenantID, cardID string) (domain.Card, error) {
	tid, err := parseID(tenantID, domain.ErrInvalidTenant)
	if err != nil {
		return domain.Card{}, err
	}
	cid, err := parseID(cardID, domain.ErrInvalidID)
	if err != nil {
		return domain.Card{}, err
	}

	card, err := s.repo.FindCardByID(ctx, s.db, tid, cid)
	if err != nil {
		return domain.Card{}, err
	}
	if card == nil {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return *card, nil
}

func (s *Service) returnActivation(ctx context.Context, tenantID string, tracking tenantdomain.TrackCardActivationResult) {
	if tracking.ActivationsRemaining == tenantdomain.UnlimitedActivations {
		return
	}
	if err := s.tenantSvc.ReturnCardActivation(ctx, tenantID); err != nil {
		s.log.Warn("return trial activation", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func (s *Service) notifyActivation(card domain.Card, tracking tenantdomain.TrackCardActivationResult) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if card.CustomerID != 0 {
		channel := s.preferredChannel(ctx, card.TenantID, card.CustomerID)
		s.enqueue(ctx, card.TenantID, card.CustomerID, channel, notificationdomain.TemplateWelcome, map[string]string{
			"balance": formatCents(card.BalanceCents),
		})
	}

	if tracking.TrialJustExpired {
		s.enqueueTenantNotice(ctx, card.TenantID.String(), notificationdomain.TemplateTrialExpired, nil)
	} else if tracking.WarnRemaining > 0 {
		s.enqueueTenantNotice(ctx, card.TenantID.String(), notificationdomain.TemplateTrialExpiring, map[string]string{
			"remaining": strconv.FormatInt(tracking.WarnRemaining, 10),
		})
	}
}

func (s *Service) enqueueTenantNotice(ctx context.Context, tenantID string, template notificationdomain.Template, vars map[string]string) {
	_, err := s.notificationSvc.Enqueue(ctx, notificationdomain.EnqueueRequest{
		TenantID:  tenantID,
		Channel:   notificationdomain.ChannelEmail,
		Template:  template,
		Variables: vars,
	})
	if err != nil {
		s.log.Warn("enqueue tenant notice",
			zap.String("template", string(template)),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
}

