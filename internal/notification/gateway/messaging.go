package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/smallbiznis/perq/internal/config"
)

// MessagingGateway posts rendered messages to the external SMS/WhatsApp
// gateway. Transport-level retries are handled by retryablehttp; anything that
// still fails is reported so the sweep can retry later.
type MessagingGateway struct {
	cfg     config.MessagingConfig
	channel string
	client  *retryablehttp.Client
}

func NewMessaging(cfg config.MessagingConfig, channel string) *MessagingGateway {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	return &MessagingGateway{
		cfg:     cfg,
		channel: channel,
		client:  client,
	}
}

type sendRequest struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Body    string `json:"body"`
}

func (g *MessagingGateway) Send(ctx context.Context, msg Message) error {
	if g.cfg.BaseURL == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(sendRequest{
		Channel: g.channel,
		To:      msg.Recipient,
		Body:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
