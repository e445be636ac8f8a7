package amqp

import (
	"testing"
	"time"
)

func TestNewAnalysisRunMessage(t *testing.T) {
	msg := NewAnalysisRunMessage("expense_created")

	if msg.Reason != "expense_created" {
		t.Errorf("Reason = %q, want expense_created", msg.Reason)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestAnalysisRunMessageJSON(t *testing.T) {
	msg := &AnalysisRunMessage{
		Reason:    "expense_deleted",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	b, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := AnalysisRunMessageFromJSON(b)
	if err != nil {
		t.Fatalf("AnalysisRunMessageFromJSON() error = %v", err)
	}
	if parsed.Reason != msg.Reason {
		t.Errorf("Reason = %q, want %q", parsed.Reason, msg.Reason)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestAnalysisRunMessageInvalidJSON(t *testing.T) {
	if _, err := AnalysisRunMessageFromJSON([]byte(`{"reason": 42`)); err == nil {
		t.Error("AnalysisRunMessageFromJSON() should fail on malformed JSON")
	}
}
