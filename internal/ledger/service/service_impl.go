package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	cashbackdomain "github.com/smallbiznis/perq/internal/cashback/domain"
	"github.com/smallbiznis/perq/internal/clock"
	customerdomain "github.com/smallbiznis/perq/internal/customer/domain"
	"github.com/smallbiznis/perq/internal/ledger/domain"
	"github.com/smallbiznis/perq/internal/ledger/repository"
	"github.com/smallbiznis/perq/internal/metrics"
	notificationdomain "github.com/smallbiznis/perq/internal/notification/domain"
	tenantdomain "github.com/smallbiznis/perq/internal/tenant/domain"
	tierdomain "github.com/smallbiznis/perq/internal/tier/domain"
	pkgdb "github.com/smallbiznis/perq/pkg/db"
	"github.com/smallbiznis/perq/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const notifyTimeout = 15 * time.Second

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Repo            repository.Repository
	CustomerRepo    customerdomain.Repository
	CashbackSvc     cashbackdomain.Service
	TierSvc         tierdomain.Service
	TenantSvc       tenantdomain.Service
	NotificationSvc notificationdomain.Service
	Clock           clock.Clock
	Metrics         *metrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            repository.Repository
	customerRepo    customerdomain.Repository
	cashbackSvc     cashbackdomain.Service
	tierSvc         tierdomain.Service
	tenantSvc       tenantdomain.Service
	notificationSvc notificationdomain.Service
	clock           clock.Clock
	metrics         *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("ledger.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		customerRepo:    p.CustomerRepo,
		cashbackSvc:     p.CashbackSvc,
		tierSvc:         p.TierSvc,
		tenantSvc:       p.TenantSvc,
		notificationSvc: p.NotificationSvc,
		clock:           p.Clock,
		metrics:         p.Metrics,
	}
}

func (s *Service) ApplyTransaction(ctx context.Context, req domain.ApplyTransactionRequest) (domain.Transaction, error) {
	tenantID, err := parseID(req.TenantID, domain.ErrInvalidTenant)
	if err != nil {
		return domain.Transaction{}, err
	}
	cardID, err := parseID(req.CardID, domain.ErrInvalidID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !req.Type.Valid() {
		return domain.Transaction{}, domain.ErrInvalidType
	}
	if err := validateAmount(req.Type, req.AmountCents); err != nil {
		s.countError("invalid_amount")
		return domain.Transaction{}, err
	}

	var paymentLinkID *snowflake.ID
	if strings.TrimSpace(req.PaymentLinkID) != "" {
		id, err := parseID(req.PaymentLinkID, domain.ErrInvalidID)
		if err != nil {
			return domain.Transaction{}, err
		}
		paymentLinkID = &id
	}

	var (
		txn          domain.Transaction
		tierUpgraded bool
		newTier      string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.repo.FindCardByIDForUpdate(ctx, tx, tenantID, cardID)
		if err != nil {
			return err
		}
		if card == nil {
			s.countError("card_not_found")
			return domain.ErrCardNotFound
		}
		if card.Status != domain.CardStatusActive {
			s.countError("card_not_active")
			return domain.ErrCardNotActive
		}

		before := card.BalanceCents
		var (
			delta         int64
			cashbackCents int64
		)

		switch req.Type {
		case domain.TransactionTypeEarn:
			cashbackCents, newTier, tierUpgraded, err = s.applyEarn(ctx, tx, card, req)
			if err != nil {
				return err
			}
			delta = cashbackCents

		case domain.TransactionTypeRedeem:
			ok, err := s.repo.DebitBalance(ctx, tx, card.ID, req.AmountCents)
			if err != nil {
				return err
			}
			if !ok {
				s.countError("insufficient_balance")
				return domain.ErrInsufficientBalance
			}
			delta = -req.AmountCents

		case domain.TransactionTypeAdjust, domain.TransactionTypeAddFunds:
			delta = req.AmountCents
		}

		if req.Type != domain.TransactionTypeRedeem {
			ok, err := s.repo.CreditBalance(ctx, tx, card.ID, delta)
			if err != nil {
				return err
			}
			if !ok {
				s.countError("insufficient_balance")
				return domain.ErrInsufficientBalance
			}
		}

		txn = domain.Transaction{
			ID:                 s.genID.Generate(),
			TenantID:           tenantID,
			CardID:             card.ID,
			CustomerID:         card.CustomerID,
			Type:               req.Type,
			Category:           strings.TrimSpace(req.Category),
			AmountCents:        req.AmountCents,
			CashbackCents:      cashbackCents,
			BeforeBalanceCents: before,
			AfterBalanceCents:  before + delta,
			Note:               strings.TrimSpace(req.Note),
			PaymentLinkID:      paymentLinkID,
			CreatedAt:          s.clock.Now(),
		}
		if id, err := parseID(req.StoreID, domain.ErrInvalidID); err == nil {
			txn.StoreID = id
		}
		if id, err := parseID(req.ActorID, domain.ErrInvalidID); err == nil {
			txn.ActorID = id
		}

		if err := s.repo.InsertTransaction(ctx, tx, &txn); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateReference
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	if s.metrics != nil {
		s.metrics.Transactions.WithLabelValues(string(req.Type)).Inc()
	}
	s.log.Info("transaction applied",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("card_id", txn.CardID.String()),
		zap.String("type", string(txn.Type)),
		zap.Int64("amount_cents", txn.AmountCents),
		zap.Int64("cashback_cents", txn.CashbackCents),
		zap.Int64("after_balance_cents", txn.AfterBalanceCents),
	)

	// Delivery runs after commit on a detached context: a slow or failing
	// gateway must never affect the committed ledger mutation.
	go s.notifyTransaction(txn, newTier, tierUpgraded)

	return txn, nil
}

func (s *Service) applyEarn(ctx context.Context, tx *gorm.DB, card *domain.Card, req domain.ApplyTransactionRequest) (cashbackCents int64, newTier string, tierUpgraded bool, err error) {
	category := cashbackdomain.Category(strings.ToUpper(strings.TrimSpace(req.Category)))
	if !category.Valid() {
		return 0, "", false, cashbackdomain.ErrInvalidCategory
	}

	multiplier := tierdomain.DefaultMultiplierBps
	var customer *customerdomain.Customer
	if card.CustomerID != 0 {
		customer, err = s.customerRepo.FindByIDForUpdate(ctx, tx, card.TenantID, card.CustomerID)
		if err != nil {
			return 0, "", false, err
		}
	}
	if customer != nil {
		multiplier, err = s.tierSvc.MultiplierFor(ctx, tx, card.TenantID.String(), customer.Tier)
		if err != nil {
			return 0, "", false, err
		}
	}

	cashbackCents, err = s.cashbackSvc.ResolveCashback(ctx, card.TenantID.String(), category, req.AmountCents, multiplier)
	if err != nil {
		return 0, "", false, err
	}

	if customer != nil {
		if err = s.customerRepo.AddSpend(ctx, tx, customer.ID, req.AmountCents); err != nil {
			return 0, "", false, err
		}
		// Recompute against the spend value this transaction just wrote, not
		// a later re-read that could observe a concurrent EARN.
		customer.TotalSpendCents += req.AmountCents
		newTier, tierUpgraded, err = s.tierSvc.RecomputeTier(ctx, tx, customer)
		if err != nil {
			return 0, "", false, err
		}
	}
	return cashbackCents, newTier, tierUpgraded, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	tenantID, err := parseID(req.TenantID, domain.ErrInvalidTenant)
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}
	cardID, err := parseID(req.CardID, domain.ErrInvalidID)
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListTransactionsByCard(ctx, s.db, tenantID, cardID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(txn *domain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        txn.ID.String(),
			CreatedAt: txn.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	transactions := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		transactions = append(transactions, *item)
	}

	resp := domain.ListTransactionsResponse{Transactions: transactions}
	if pageInfo != nil {
		resp.NextPageToken = pageInfo.NextPageToken
		resp.HasMore = pageInfo.HasMore
	}
	return resp, nil
}

func (s *Service) notifyTransaction(txn domain.Transaction, newTier string, tierUpgraded bool) {
	if txn.CustomerID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	channel := s.preferredChannel(ctx, txn.TenantID, txn.CustomerID)
	vars := map[string]string{
		"amount":  formatCents(txn.AmountCents),
		"balance": formatCents(txn.AfterBalanceCents),
	}
	if txn.StoreID != 0 {
		vars["storeName"] = txn.StoreID.String()
	}

	var template notificationdomain.Template
	switch txn.Type {
	case domain.TransactionTypeEarn:
		template = notificationdomain.TemplateCashbackEarned
		vars["amount"] = formatCents(txn.CashbackCents)
	case domain.TransactionTypeRedeem:
		template = notificationdomain.TemplateCashbackRedeemed
	case domain.TransactionTypeAddFunds:
		template = notificationdomain.TemplateFundsAdded
	default:
		template = notificationdomain.TemplateBalanceUpdate
	}

	s.enqueue(ctx, txn.TenantID, txn.CustomerID, channel, template, vars)

	if tierUpgraded {
		s.enqueue(ctx, txn.TenantID, txn.CustomerID, channel, notificationdomain.TemplateTierUpgraded, map[string]string{
			"tier": newTier,
		})
	}
}

func (s *Service) enqueue(ctx context.Context, tenantID, customerID snowflake.ID, channel notificationdomain.Channel, template notificationdomain.Template, vars map[string]string) {
	customer, err := s.customerRepo.FindByID(ctx, s.db, tenantID, customerID)
	if err == nil && customer != nil {
		if vars == nil {
			vars = map[string]string{}
		}
		if _, ok := vars["customerName"]; !ok {
			vars["customerName"] = customer.Name
		}
	}

	_, err = s.notificationSvc.Enqueue(ctx, notificationdomain.EnqueueRequest{
		TenantID:   tenantID.String(),
		CustomerID: customerID.String(),
		Channel:    channel,
		Template:   template,
		Variables:  vars,
	})
	if err != nil {
		s.log.Warn("enqueue notification",
			zap.String("template", string(template)),
			zap.String("customer_id", customerID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) preferredChannel(ctx context.Context, tenantID, customerID snowflake.ID) notificationdomain.Channel {
	customer, err := s.customerRepo.FindByID(ctx, s.db, tenantID, customerID)
	if err != nil || customer == nil || customer.Phone == "" {
		return notificationdomain.ChannelEmail
	}
	return notificationdomain.ChannelSMS
}

func (s *Service) countError(reason string) {
	if s.metrics != nil {
		s.metrics.TransactionErrors.WithLabelValues(reason).Inc()
	}
}

func validateAmount(txType domain.TransactionType, amountCents int64) error {
	switch txType {
	case domain.TransactionTypeEarn, domain.TransactionTypeRedeem, domain.TransactionTypeAddFunds:
		if amountCents <= 0 {
			return domain.ErrInvalidAmount
		}
	case domain.TransactionTypeAdjust:
		if amountCents == 0 {
			return domain.ErrInvalidAmount
		}
	}
	return nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
