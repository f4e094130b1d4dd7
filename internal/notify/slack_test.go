package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetd/internal/domain"
)

func testAlert() *domain.Alert {
	return &domain.Alert{
		ID:           "alert-1",
		ResourceType: domain.ResourceBaremetal,
		ResourceID:   "bm-1",
		AlertType:    domain.AlertServerDown,
		Severity:     domain.SeverityCritical,
		Message:      "Baremetal server bm-01 is not responding",
		CreatedAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestSlackChannel_Send(t *testing.T) {
	var got slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewSlackChannel(server.URL)
	if err := ch.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(got.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(got.Attachments))
	}
	a := got.Attachments[0]
	if a.Color != "#danger" {
		t.Errorf("color = %q, want #danger", a.Color)
	}
	if a.Title != "Fleet Alert: server_down" {
		t.Errorf("title = %q", a.Title)
	}
	if len(a.Fields) != 4 {
		t.Fatalf("fields = %d, want 4", len(a.Fields))
	}
	if a.Fields[1].Value != "CRITICAL" {
		t.Errorf("severity field = %q, want CRITICAL", a.Fields[1].Value)
	}
}

func TestSlackChannel_SendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer server.Close()

	ch := NewSlackChannel(server.URL)
	err := ch.Send(context.Background(), testAlert())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Send() error = %v, want StatusError", err)
	}
	if statusErr.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", statusErr.Code)
	}
	if statusErr.Error() != "HTTP 404: no_service" {
		t.Errorf("error = %q", statusErr.Error())
	}
}

func TestSeverityColor(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{domain.SeverityLow, "#good"},
		{domain.SeverityMedium, "#warning"},
		{domain.SeverityHigh, "#danger"},
		{domain.SeverityCritical, "#danger"},
		{"bogus", "#good"},
	}
	for _, tt := range tests {
		if got := severityColor(tt.severity); got != tt.want {
			t.Errorf("severityColor(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}
