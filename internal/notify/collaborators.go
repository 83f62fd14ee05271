package notify

import (
	"context"
	"fmt"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// CollaboratorChannels names the delivery channel for each collaborator
// audience. An empty name disables that audience.
type CollaboratorChannels struct {
	Managers   string
	Executives string
	Oncall     string
	Incidents  string
}

// Collaborators routes escalation side effects (manager pings, incident
// creation) through regular delivery channels.
type Collaborators struct {
	dispatcher *Dispatcher
	channels   CollaboratorChannels
}

// NewCollaborators creates collaborator routing over the dispatcher.
func NewCollaborators(dispatcher *Dispatcher, channels CollaboratorChannels) *Collaborators {
	return &Collaborators{dispatcher: dispatcher, channels: channels}
}

func (c *Collaborators) send(ctx context.Context, channel, audience string, alert domain.Alert, action domain.Action) error {
	if channel == "" {
		return nil
	}
	if err := c.dispatcher.Send(ctx, channel, alert, action.EscalationLevel); err != nil {
		return fmt.Errorf("notify %s: %w", audience, err)
	}
	return nil
}

// NotifyManagers notifies the manager audience channel.
func (c *Collaborators) NotifyManagers(ctx context.Context, alert domain.Alert, action domain.Action) error {
	return c.send(ctx, c.channels.Managers, "managers", alert, action)
}

// NotifyExecutives notifies the executive audience channel.
func (c *Collaborators) NotifyExecutives(ctx context.Context, alert domain.Alert, action domain.Action) error {
	return c.send(ctx, c.channels.Executives, "executives", alert, action)
}

// NotifyOncall pages the on-call channel.
func (c *Collaborators) NotifyOncall(ctx context.Context, alert domain.Alert, action domain.Action) error {
	return c.send(ctx, c.channels.Oncall, "on-call", alert, action)
}

// CreateIncident posts an incident creation request to the incident channel.
func (c *Collaborators) CreateIncident(ctx context.Context, alert domain.Alert, action domain.Action) error {
	return c.send(ctx, c.channels.Incidents, "incident system", alert, action)
}

// CreateMajorIncident posts a major incident request to the incident channel.
func (c *Collaborators) CreateMajorIncident(ctx context.Context, alert domain.Alert, action domain.Action) error {
	return c.send(ctx, c.channels.Incidents, "incident system", alert, action)
}
