package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perq/internal/cashback"
	"github.com/smallbiznis/perq/internal/clock"
	"github.com/smallbiznis/perq/internal/config"
	"github.com/smallbiznis/perq/internal/customer"
	"github.com/smallbiznis/perq/internal/ledger"
	"github.com/smallbiznis/perq/internal/logger"
	"github.com/smallbiznis/perq/internal/metrics"
	"github.com/smallbiznis/perq/internal/migration"
	"github.com/smallbiznis/perq/internal/notification"
	"github.com/smallbiznis/perq/internal/payment"
	"github.com/smallbiznis/perq/internal/server"
	"github.com/smallbiznis/perq/internal/sweeper"
	"github.com/smallbiznis/perq/internal/tenant"
	"github.com/smallbiznis/perq/internal/tier"
	"github.com/smallbiznis/perq/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,

		// Functional domains
		tenant.Module,
		customer.Module,
		tier.Module,
		cashback.Module,
		notification.Module,
		ledger.Module,
		payment.Module,

		server.Module,
		sweeper.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
