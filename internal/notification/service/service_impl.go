package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/clock"
	"github.com/smallbiznis/perq/internal/config"
	customerdomain "github.com/smallbiznis/perq/internal/customer/domain"
	"github.com/smallbiznis/perq/internal/metrics"
	"github.com/smallbiznis/perq/internal/notification/domain"
	"github.com/smallbiznis/perq/internal/notification/gateway"
	"github.com/smallbiznis/perq/internal/notification/repository"
	tenantdomain "github.com/smallbiznis/perq/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         repository.Repository
	CustomerRepo customerdomain.Repository
	TenantRepo   tenantdomain.Repository
	Gateways     *gateway.Registry
	Clock        clock.Clock
	Cfg          config.Config
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         repository.Repository
	customerRepo customerdomain.Repository
	tenantRepo   tenantdomain.Repository
	gateways     *gateway.Registry
	clock        clock.Clock
	sweepCfg     config.SweepConfig
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("notification.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		tenantRepo:   p.TenantRepo,
		gateways:     p.Gateways,
		clock:        p.Clock,
		sweepCfg:     p.Cfg.Sweep,
		metrics:      p.Metrics,
	}
}

func (s *Service) Enqueue(ctx context.Context, req domain.EnqueueRequest) (domain.Notification, error) {
	tenantID, err := parseID(req.TenantID)
	if err != nil {
		return domain.Notification{}, domain.ErrInvalidTenant
	}
	if !req.Channel.Valid() {
		return domain.Notification{}, domain.ErrInvalidChannel
	}
	if !req.Template.Valid() {
		return domain.Notification{}, domain.ErrInvalidTemplate
	}

	var customerID snowflake.ID
	if strings.TrimSpace(req.CustomerID) != "" {
		customerID, err = parseID(req.CustomerID)
		if err != nil {
			return domain.Notification{}, domain.ErrInvalidTenant
		}
	}

	recipient, lookupErr := s.resolveRecipient(ctx, tenantID, customerID, req.Channel)

	vars := datatypes.JSONMap{}
	for name, value := range req.Variables {
		vars[name] = value
	}

	now := s.clock.Now()
	notification := domain.Notification{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Channel:    req.Channel,
		Template:   req.Template,
		Recipient:  recipient,
		Body:       req.Template.Render(req.Variables),
		Variables:  vars,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, &notification); err != nil {
		return domain.Notification{}, err
	}

	if lookupErr != nil {
		s.recordFailure(ctx, &notification, lookupErr.Error())
		return notification, nil
	}

	s.attemptDelivery(ctx, &notification)
	return notification, nil
}

func (s *Service) RetrySweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.sweepCfg.LookbackWindow)

	var batch []domain.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = s.repo.ClaimFailed(ctx, tx, cutoff, s.sweepCfg.MaxSendAttempts, s.sweepCfg.BatchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	// Delivery happens outside the claim transaction so external I/O never
	// holds database locks.
	for i := range batch {
		s.attemptDelivery(ctx, &batch[i])
	}
	if len(batch) > 0 {
		s.log.Info("notification retry sweep finished", zap.Int("retried", len(batch)))
	}
	return len(batch), nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	tenantID, err := parseID(req.TenantID)
	if err != nil {
		return domain.ListResponse{}, domain.ErrInvalidTenant
	}

	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListByTenant(ctx, s.db, tenantID, req.Status, pageSize)
	if err != nil {
		return domain.ListResponse{}, err
	}

	notifications := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		notifications = append(notifications, *item)
	}
	return domain.ListResponse{Notifications: notifications}, nil
}

func (s *Service) attemptDelivery(ctx context.Context, notification *domain.Notification) {
	if notification.Recipient == "" {
		s.recordFailure(ctx, notification, "missing_recipient")
		return
	}

	err := s.gateways.Send(ctx, notification.Channel, gateway.Message{
		Recipient: notification.Recipient,
		Subject:   notification.Template.Subject(),
		Body:      notification.Body,
	})
	if err != nil {
		s.recordFailure(ctx, notification, err.Error())
		return
	}

	sentAt := s.clock.Now()
	if err := s.repo.MarkSent(ctx, s.db, notification.ID, sentAt); err != nil {
		s.log.Error("mark notification sent", zap.String("notification_id", notification.ID.String()), zap.Error(err))
		return
	}
	notification.Status = domain.StatusSent
	notification.SentAt = &sentAt
	notification.Attempts++
	if s.metrics != nil {
		s.metrics.NotificationSends.WithLabelValues(string(notification.Channel), string(domain.StatusSent)).Inc()
	}
}

func (s *Service) recordFailure(ctx context.Context, notification *domain.Notification, detail string) {
	s.log.Warn("notification delivery failed",
		zap.String("notification_id", notification.ID.String()),
		zap.String("channel", string(notification.Channel)),
		zap.String("template", string(notification.Template)),
		zap.String("detail", detail),
	)
	if err := s.repo.MarkFailed(ctx, s.db, notification.ID, detail); err != nil {
		s.log.Error("mark notification failed", zap.String("notification_id", notification.ID.String()), zap.Error(err))
	}
	notification.Status = domain.StatusFailed
	notification.ErrorDetail = detail
	notification.Attempts++
	if s.metrics != nil {
		s.metrics.NotificationSends.WithLabelValues(string(notification.Channel), string(domain.StatusFailed)).Inc()
	}
}

func (s *Service) resolveRecipient(ctx context.Context, tenantID, customerID snowflake.ID, channel domain.Channel) (string, error) {
	if customerID != 0 {
		customer, err := s.customerRepo.FindByID(ctx, s.db, tenantID, customerID)
		if err != nil {
			return "", err
		}
		if customer == nil {
			return "", customerdomain.ErrNotFound
		}
		if channel == domain.ChannelEmail {
			return customer.Email, nil
		}
		return customer.Phone, nil
	}

	tenant, err := s.tenantRepo.FindByID(ctx, s.db, tenantID)
	if err != nil {
		return "", err
	}
	if tenant == nil {
		return "", tenantdomain.ErrNotFound
	}
	if channel == domain.ChannelEmail {
		return tenant.ContactEmail, nil
	}
	return tenant.ContactPhone, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidTenant
	}
	return id, nil
}
