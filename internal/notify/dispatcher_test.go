package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/escalation-garden/internal/domain"
)

type mockSender struct {
	channel string
	sent    []Message
	err     error
}

func (m *mockSender) Channel() string { return m.channel }

func (m *mockSender) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func testAlert() domain.Alert {
	return domain.Alert{
		ID:          "alert-1",
		Severity:    domain.SeverityCritical,
		Status:      "open",
		ServiceType: "database",
		Component:   "primary",
		CreatedAt:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_Send(t *testing.T) {
	slack := &mockSender{channel: "slack"}
	email := &mockSender{channel: "email"}
	dispatcher := NewDispatcher(slack, email)

	err := dispatcher.Send(context.Background(), "slack", testAlert(), 2)
	require.NoError(t, err)

	require.Len(t, slack.sent, 1)
	assert.Empty(t, email.sent)
	assert.Contains(t, slack.sent[0].Subject, "[CRITICAL]")
	assert.Contains(t, slack.sent[0].Subject, "level 2")
}

func TestDispatcher_Send_UnknownChannel(t *testing.T) {
	dispatcher := NewDispatcher(&mockSender{channel: "slack"})

	err := dispatcher.Send(context.Background(), "pager", testAlert(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pager")
}

func TestDispatcher_Send_SenderFailure(t *testing.T) {
	broken := &mockSender{channel: "slack", err: errors.New("rate limited")}
	dispatcher := NewDispatcher(broken)

	err := dispatcher.Send(context.Background(), "slack", testAlert(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDispatcher_Channels(t *testing.T) {
	dispatcher := NewDispatcher(&mockSender{channel: "slack"}, &mockSender{channel: "email"})
	assert.ElementsMatch(t, []string{"slack", "email"}, dispatcher.Channels())
}

func TestRenderer_Render(t *testing.T) {
	msg := NewRenderer().Render(testAlert(), 3)

	assert.Equal(t, "[CRITICAL] Alert alert-1 escalated to level 3", msg.Subject)
	assert.Contains(t, msg.Body, "Severity: Critical")
	assert.Contains(t, msg.Body, "Status: Open")
	assert.Contains(t, msg.Body, "Service: database")
	assert.Contains(t, msg.Body, "Component: primary")
	assert.Contains(t, msg.Body, "2026-03-02 12:00:00 UTC")
}

func TestRenderer_Render_OmitsEmptyFields(t *testing.T) {
	alert := testAlert()
	alert.ServiceType = ""
	alert.Component = ""

	msg := NewRenderer().Render(alert, 1)
	assert.NotContains(t, msg.Body, "Service:")
	assert.NotContains(t, msg.Body, "Component:")
}

func TestCollaborators_RouteThroughChannels(t *testing.T) {
	oncall := &mockSender{channel: "pager"}
	incidents := &mockSender{channel: "incident-hook"}
	dispatcher := NewDispatcher(oncall, incidents)

	collab := NewCollaborators(dispatcher, CollaboratorChannels{
		Oncall:    "pager",
		Incidents: "incident-hook",
	})

	action := domain.Action{EscalationLevel: 2}
	ctx := context.Background()

	require.NoError(t, collab.NotifyOncall(ctx, testAlert(), action))
	assert.Len(t, oncall.sent, 1)

	require.NoError(t, collab.CreateIncident(ctx, testAlert(), action))
	require.NoError(t, collab.CreateMajorIncident(ctx, testAlert(), action))
	assert.Len(t, incidents.sent, 2)

	// Unconfigured audiences are silent no-ops
	require.NoError(t, collab.NotifyManagers(ctx, testAlert(), action))
	require.NoError(t, collab.NotifyExecutives(ctx, testAlert(), action))
}

func TestCollaborators_PropagateDispatchErrors(t *testing.T) {
	dispatcher := NewDispatcher() // no senders at all
	collab := NewCollaborators(dispatcher, CollaboratorChannels{Managers: "slack"})

	err := collab.NotifyManagers(context.Background(), testAlert(), domain.Action{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "managers")
}
