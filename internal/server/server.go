package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cashbackdomain "github.com/smallbiznis/perq/internal/cashback/domain"
	"github.com/smallbiznis/perq/internal/config"
	customerdomain "github.com/smallbiznis/perq/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/perq/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/perq/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/perq/internal/payment/domain"
	tenantdomain "github.com/smallbiznis/perq/internal/tenant/domain"
	tierdomain "github.com/smallbiznis/perq/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	tenantSvc       tenantdomain.Service
	customerSvc     customerdomain.Service
	tierSvc         tierdomain.Service
	cashbackSvc     cashbackdomain.Service
	ledgerSvc       ledgerdomain.Service
	notificationSvc notificationdomain.Service
	paymentSvc      paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	TenantSvc       tenantdomain.Service
	CustomerSvc     customerdomain.Service
	TierSvc         tierdomain.Service
	CashbackSvc     cashbackdomain.Service
	LedgerSvc       ledgerdomain.Service
	NotificationSvc notificationdomain.Service
	PaymentSvc      paymentdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		tenantSvc:       p.TenantSvc,
		customerSvc:     p.CustomerSvc,
		tierSvc:         p.TierSvc,
		cashbackSvc:     p.CashbackSvc,
		ledgerSvc:       p.LedgerSvc,
		notificationSvc: p.NotificationSvc,
		paymentSvc:      p.PaymentSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.TenantContext())

	// -------- Cards --------
	api.POST("/cards", s.CreateCard)
	api.GET("/cards/:id", s.GetCard)
	api.POST("/cards/:id/activate", s.ActivateCard)
	api.POST("/cards/:id/block", s.BlockCard)
	api.POST("/cards/:id/unblock", s.UnblockCard)
	api.GET("/cards/:id/transactions", s.ListTransactions)

	// -------- Transactions --------
	api.POST("/transactions", s.ApplyTransaction)

	// -------- Trial --------
	api.GET("/trial", s.GetTrialStatus)
	api.GET("/trial/can-activate", s.CanActivateCards)
	api.POST("/trial/reset", s.ResetTrial)

	// -------- Customers --------
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.GET("/customers/:id/tier", s.GetTierProgress)

	// -------- Rules --------
	api.GET("/tiers/rules", s.ListTierRules)
	api.PUT("/tiers/rules", s.UpsertTierRule)
	api.GET("/cashback/rules", s.ListCashbackRules)
	api.PUT("/cashback/rules", s.UpsertCashbackRule)

	// -------- Notifications --------
	api.GET("/notifications", s.ListNotifications)

	// -------- Payments --------
	api.POST("/payments/links", s.CreatePaymentLink)
	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)
}
