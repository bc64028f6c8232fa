package gateway

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/smallbiznis/perq/internal/config"
)

type SMTPGateway struct {
	cfg config.EmailConfig
}

func NewSMTP(cfg config.EmailConfig) *SMTPGateway {
	return &SMTPGateway{cfg: cfg}
}

func (g *SMTPGateway) Send(ctx context.Context, msg Message) error {
	_ = ctx
	if g.cfg.SMTPHost == "" {
		return ErrNotConfigured
	}

	var auth smtp.Auth
	if g.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", g.cfg.SMTPUsername, g.cfg.SMTPPassword, g.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", g.cfg.SMTPHost, g.cfg.SMTPPort)

	mime := "MIME-version: 1.0;\nContent-Type: text/plain; charset=\"UTF-8\";\n\n"
	body := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s", msg.Recipient, msg.Subject, mime, msg.Body))

	return smtp.SendMail(addr, auth, g.cfg.SMTPFrom, []string{msg.Recipient}, body)
}
