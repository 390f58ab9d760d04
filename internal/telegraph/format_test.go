package telegraph

import (
	"strings"
	"testing"

	"github.com/parlane/switchyard/internal/events"
	"github.com/parlane/switchyard/internal/models"
)

func TestSeverityColor(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{"success", ColorSuccess},
		{"info", ColorInfo},
		{"warning", ColorWarning},
		{"error", ColorError},
		{"unknown", ColorInfo},
	}
	for _, tt := range tests {
		if got := severityColor(tt.severity); got != tt.want {
			t.Errorf("severityColor(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestFormatEvent_Registered(t *testing.T) {
	rec := models.EventRecord{
		Kind:   events.KindAgentRegistered,
		Agent:  "agent-a",
		Detail: `{"name":"A","endpoint":"http://a"}`,
	}
	formatted, err := FormatEvent(rec)
	if err != nil {
		t.Fatalf("FormatEvent: %v", err)
	}
	if formatted.Title != "Agent agent-a registered" {
		t.Errorf("title = %q", formatted.Title)
	}
	if formatted.Severity != "success" || formatted.Color != ColorSuccess {
		t.Errorf("severity = %q color = %q", formatted.Severity, formatted.Color)
	}
	if !strings.Contains(formatted.Body, "endpoint: http://a") {
		t.Errorf("body = %q", formatted.Body)
	}
}

func TestFormatEvent_MessageIDAbbreviated(t *testing.T) {
	id := strings.Repeat("ab", 32)
	rec := models.EventRecord{
		Kind:      events.KindMessageSent,
		Agent:     "agent-a",
		MessageID: id,
	}
	formatted, err := FormatEvent(rec)
	if err != nil {
		t.Fatalf("FormatEvent: %v", err)
	}
	var found bool
	for _, f := range formatted.Fields {
		if f.Name == "Message" {
			found = true
			if f.Value != id[:12] {
				t.Errorf("message field = %q, want %q", f.Value, id[:12])
			}
		}
	}
	if !found {
		t.Error("no Message field")
	}
}

func TestFormatEvent_UnknownKindFallsBack(t *testing.T) {
	rec := models.EventRecord{Kind: "custom.kind", Agent: "agent-a"}
	formatted, err := FormatEvent(rec)
	if err != nil {
		t.Fatalf("FormatEvent: %v", err)
	}
	if formatted.Title != "custom.kind" {
		t.Errorf("title = %q", formatted.Title)
	}
	if formatted.Severity != "info" {
		t.Errorf("severity = %q", formatted.Severity)
	}
}

func TestFormatEvent_Deactivated(t *testing.T) {
	rec := models.EventRecord{Kind: events.KindAgentDeactivated, Agent: "agent-a"}
	formatted, err := FormatEvent(rec)
	if err != nil {
		t.Fatalf("FormatEvent: %v", err)
	}
	if formatted.Severity != "warning" || formatted.Color != ColorWarning {
		t.Errorf("severity = %q color = %q", formatted.Severity, formatted.Color)
	}
}
