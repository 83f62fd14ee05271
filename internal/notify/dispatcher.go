package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// Dispatcher routes escalation notifications to the configured channel
// senders. A failed or unknown channel yields an error to the caller;
// it never panics and never affects other channels.
type Dispatcher struct {
	senders  map[string]Sender
	renderer *Renderer
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(senders ...Sender) *Dispatcher {
	senderMap := make(map[string]Sender, len(senders))
	for _, s := range senders {
		senderMap[s.Channel()] = s
	}
	return &Dispatcher{
		senders:  senderMap,
		renderer: NewRenderer(),
	}
}

// Channels returns the channel identifiers with a configured sender.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.senders))
	for ch := range d.senders {
		out = append(out, ch)
	}
	return out
}

// Send renders and delivers an escalation notification over one channel.
func (d *Dispatcher) Send(ctx context.Context, channel string, alert domain.Alert, level int) error {
	sender, ok := d.senders[channel]
	if !ok {
		recordDispatch(channel, "unknown_channel")
		return fmt.Errorf("no sender configured for channel %q", channel)
	}

	msg := d.renderer.Render(alert, level)

	start := time.Now()
	err := sender.Send(ctx, msg)
	recordDispatchDuration(channel, time.Since(start))

	if err != nil {
		recordDispatch(channel, "failed")
		return fmt.Errorf("send via %s: %w", channel, err)
	}

	recordDispatch(channel, "success")
	slog.Debug("notification dispatched",
		"channel", channel,
		"alert_id", alert.ID,
		"level", level,
	)
	return nil
}
