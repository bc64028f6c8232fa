package notification

import (
	"github.com/smallbiznis/perq/internal/config"
	"github.com/smallbiznis/perq/internal/notification/gateway"
	"github.com/smallbiznis/perq/internal/notification/repository"
	"github.com/smallbiznis/perq/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewGatewayRegistry),
	fx.Provide(service.New),
)

func NewGatewayRegistry(cfg config.Config) *gateway.Registry {
	return gateway.NewRegistry(
		gateway.NewMessaging(cfg.Messaging, "sms"),
		gateway.NewMessaging(cfg.Messaging, "whatsapp"),
		gateway.NewSMTP(cfg.Email),
	)
}
