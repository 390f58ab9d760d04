package telegraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parlane/switchyard/internal/events"
	"github.com/parlane/switchyard/internal/models"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// kindSeverity returns the display severity for an event kind.
func kindSeverity(kind string) string {
	switch kind {
	case events.KindAgentRegistered, events.KindAgentReactivated, events.KindMessageDelivered:
		return "success"
	case events.KindAgentDeactivated:
		return "warning"
	default:
		return "info"
	}
}

// kindTitle builds a human headline for an event kind.
func kindTitle(rec models.EventRecord) string {
	switch rec.Kind {
	case events.KindAgentRegistered:
		return fmt.Sprintf("Agent %s registered", rec.Agent)
	case events.KindAgentUpdated:
		return fmt.Sprintf("Agent %s updated endpoint", rec.Agent)
	case events.KindAgentDeactivated:
		return fmt.Sprintf("Agent %s deactivated", rec.Agent)
	case events.KindAgentReactivated:
		return fmt.Sprintf("Agent %s reactivated", rec.Agent)
	case events.KindReputationChanged:
		return fmt.Sprintf("Reputation changed for %s", rec.Agent)
	case events.KindMessageSent:
		return fmt.Sprintf("Message sent by %s", rec.Agent)
	case events.KindMessageDelivered:
		return fmt.Sprintf("Message delivered to %s", rec.Agent)
	case events.KindRateLimitUpdated:
		return "Message delay updated"
	case events.KindDecisionRecorded:
		return fmt.Sprintf("Decision recorded by %s", rec.Agent)
	default:
		return rec.Kind
	}
}

// FormatEvent converts a stored event record into a displayable event.
func FormatEvent(rec models.EventRecord) (FormattedEvent, error) {
	detail, err := events.DetailMap(rec)
	if err != nil {
		return FormattedEvent{}, err
	}

	severity := kindSeverity(rec.Kind)

	fields := []Field{
		{Name: "Kind", Value: rec.Kind, Short: true},
	}
	if rec.Agent != "" {
		fields = append(fields, Field{Name: "Agent", Value: rec.Agent, Short: true})
	}
	if rec.MessageID != "" {
		fields = append(fields, Field{Name: "Message", Value: shortID(rec.MessageID), Short: true})
	}
	for _, key := range sortedKeys(detail) {
		fields = append(fields, Field{
			Name:  key,
			Value: fmt.Sprintf("%v", detail[key]),
			Short: true,
		})
	}

	var bodyParts []string
	for _, key := range sortedKeys(detail) {
		bodyParts = append(bodyParts, fmt.Sprintf("%s: %v", key, detail[key]))
	}

	return FormattedEvent{
		Title:    kindTitle(rec),
		Body:     strings.Join(bodyParts, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}, nil
}

// shortID abbreviates a 64-char message ID for display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

// sortedKeys returns map keys in a stable order for deterministic output.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
