// Package sms delivers notifications through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/notifications"
)

type Config struct {
	Enabled    bool          `mapstructure:"enabled"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// WebhookSender posts {"to", "body"} as JSON to the configured gateway.
type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

var _ notifications.Sender = (*WebhookSender)(nil)

func NewWebhookSender(cfg Config) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{
		url:   strings.TrimSpace(cfg.WebhookURL),
		token: strings.TrimSpace(cfg.Token),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *WebhookSender) Send(ctx context.Context, msg notifications.Message) error {
	if s.url == "" {
		return errors.New("sms webhook url not configured")
	}
	if msg.To == "" {
		return errors.New("sms recipient is empty")
	}
	raw, err := json.Marshal(map[string]string{
		"to":   msg.To,
		"body": msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("sms webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// NoopSender accepts every message. Used when no gateway is configured.
type NoopSender struct{}

func (NoopSender) Send(context.Context, notifications.Message) error {
	return nil
}
