package migration

import (
	"github.com/smallbiznis/perq/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if err := Run(conn); err != nil {
			return err
		}
		return EnsureDefaultTenant(conn, cfg.DefaultTenantID, cfg.TrialLimit)
	}),
)
