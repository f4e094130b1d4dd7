package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetd/internal/domain"
)

func TestJiraChannel_Send(t *testing.T) {
	var got jiraIssue
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, token, ok := r.BasicAuth()
		if !ok || user != "svc-fleetd" || token != "secret" {
			t.Errorf("basic auth = %q/%q ok=%v", user, token, ok)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	ch := NewJiraChannel(server.URL, "svc-fleetd", "secret", "OPS")
	if err := ch.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.Fields.Project.Key != "OPS" {
		t.Errorf("project = %q, want OPS", got.Fields.Project.Key)
	}
	if got.Fields.Summary != "Fleet Alert: server_down" {
		t.Errorf("summary = %q", got.Fields.Summary)
	}
	if got.Fields.IssueType.Name != "Bug" {
		t.Errorf("issue type = %q", got.Fields.IssueType.Name)
	}
	if got.Fields.Priority.Name != "High" {
		t.Errorf("priority = %q, want High", got.Fields.Priority.Name)
	}
}

func TestJiraChannel_SendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "field 'project' is required", http.StatusBadRequest)
	}))
	defer server.Close()

	ch := NewJiraChannel(server.URL, "svc-fleetd", "secret", "")
	err := ch.Send(context.Background(), testAlert())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Send() error = %v, want StatusError", err)
	}
	if statusErr.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", statusErr.Code)
	}
}

func TestJiraChannel_DefaultProject(t *testing.T) {
	ch := NewJiraChannel("https://jira.invalid/", "u", "t", "")
	if ch.project != "DC" {
		t.Errorf("project = %q, want DC", ch.project)
	}
	if ch.baseURL != "https://jira.invalid" {
		t.Errorf("baseURL = %q, trailing slash not trimmed", ch.baseURL)
	}
}

func TestJiraPriority(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{domain.SeverityLow, "Medium"},
		{domain.SeverityMedium, "Medium"},
		{domain.SeverityHigh, "High"},
		{domain.SeverityCritical, "High"},
	}
	for _, tt := range tests {
		if got := jiraPriority(tt.severity); got != tt.want {
			t.Errorf("jiraPriority(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}
