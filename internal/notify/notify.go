// Package notify provides the notification-channel boundary: message
// rendering and per-channel dispatch of escalation notifications.
package notify

import "context"

// Message is a rendered notification ready for a channel transport.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers messages over one notification channel.
type Sender interface {
	// Channel returns the channel identifier this sender serves,
	// e.g. "email" or "slack".
	Channel() string
	Send(ctx context.Context, msg Message) error
}
