// Package slack provides escalation notification delivery via Slack
// incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bissquit/escalation-garden/internal/notify"
)

const defaultTimeout = 10 * time.Second

// Config holds Slack sender configuration.
type Config struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
	RateLimit  float64 // messages per second, 0 disables limiting
}

// Sender implements Slack delivery via incoming webhooks.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new Slack sender.
// Returns error if enabled but the webhook URL is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.WebhookURL == "" {
		return nil, errors.New("slack sender: webhook URL is required when enabled")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	slog.Info("slack sender configured",
		"enabled", config.Enabled,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
	}, nil
}

// Channel returns the channel identifier.
func (s *Sender) Channel() string {
	return "slack"
}

type webhookPayload struct {
	Text string `json:"text"`
}

// Send posts the message to the configured webhook.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if !s.config.Enabled {
		slog.Debug("slack sender disabled, skipping send")
		return nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload := webhookPayload{
		Text: fmt.Sprintf("*%s*\n%s", msg.Subject, msg.Body),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
