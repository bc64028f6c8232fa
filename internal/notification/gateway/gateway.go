package gateway

import (
	"context"
	"errors"

	"github.com/smallbiznis/perq/internal/notification/domain"
)

// Message is a fully rendered notification ready for delivery.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Gateway delivers one message over a single channel.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNotConfigured = errors.New("gateway_not_configured")

// Registry routes a channel to its configured gateway.
type Registry struct {
	gateways map[domain.Channel]Gateway
}

func NewRegistry(sms, whatsapp, email Gateway) *Registry {
	return &Registry{
		gateways: map[domain.Channel]Gateway{
			domain.ChannelSMS:      sms,
			domain.ChannelWhatsApp: whatsapp,
			domain.ChannelEmail:    email,
		},
	}
}

func (r *Registry) Send(ctx context.Context, channel domain.Channel, msg Message) error {
	gw, ok := r.gateways[channel]
	if !ok || gw == nil {
		return ErrNotConfigured
	}
	return gw.Send(ctx, msg)
}
