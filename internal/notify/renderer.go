package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// Renderer builds human-readable notification messages from alerts.
type Renderer struct {
	title cases.Caser
}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{title: cases.Title(language.English)}
}

// Render builds the message for an escalation notification at the given
// level.
func (r *Renderer) Render(alert domain.Alert, level int) Message {
	subject := fmt.Sprintf("[%s] Alert %s escalated to level %d",
		strings.ToUpper(string(alert.Severity)), alert.ID, level)

	var b strings.Builder
	fmt.Fprintf(&b, "Alert %s has been escalated to level %d.\n\n", alert.ID, level)
	fmt.Fprintf(&b, "Severity: %s\n", r.title.String(string(alert.Severity)))
	fmt.Fprintf(&b, "Status: %s\n", r.title.String(alert.Status))
	if alert.ServiceType != "" {
		fmt.Fprintf(&b, "Service: %s\n", alert.ServiceType)
	}
	if alert.Component != "" {
		fmt.Fprintf(&b, "Component: %s\n", alert.Component)
	}
	fmt.Fprintf(&b, "Raised at: %s\n", alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	return Message{Subject: subject, Body: b.String()}
}
