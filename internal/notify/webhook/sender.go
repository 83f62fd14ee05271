// Package webhook provides generic JSON webhook delivery. One sender
// instance serves one channel identifier, so operators can back channels
// like "sms" or "pagerduty" with their own gateway endpoints.
package webhook

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

// Config holds webhook sender configuration.
type Config struct {
	Channel   string // channel identifier this sender serves
	URL       string
	Headers   map[string]string // extra request headers, e.g. auth tokens
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
}

// Sender posts rendered messages to a configured HTTP endpoint.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new webhook sender.
func NewSender(config Config) (*Sender, error) {
	if config.Channel == "" {
		return nil, errors.New("webhook sender: channel is required")
	}
	if config.URL == "" {
		return nil, fmt.Errorf("webhook sender: URL is required for channel %q", config.Channel)
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	slog.Info("webhook sender configured",
		"channel", config.Channel,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
	}, nil
}

// Channel returns the channel identifier this sender serves.
func (s *Sender) Channel() string {
	return s.config.Channel
}

type payload struct {
	Channel string `json:"channel"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
}

// Send posts the message as JSON to the configured endpoint.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(payload{
		Channel: s.config.Channel,
		Subject: msg.Subject,
		Body:    msg.Body,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

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
