package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fleetd/internal/config"
	"fleetd/internal/domain"
)

const (
	jiraTimeout      = 30 * time.Second
	jiraIssuePath    = "/rest/api/2/issue"
	jiraDefaultKey   = "DC"
	jiraIssueType    = "Bug"
	jiraPriorityHigh = "High"
	jiraPriorityMed  = "Medium"
)

// Compile-time check that JiraChannel satisfies Channel.
var _ Channel = (*JiraChannel)(nil)

// JiraChannel opens a JIRA issue per alert via the REST v2 API.
type JiraChannel struct {
	baseURL  string
	username string
	apiToken string
	project  string
	client   *http.Client
}

// NewJiraChannel creates a JIRA channel. An empty project falls back
// to the default project key.
func NewJiraChannel(baseURL, username, apiToken, project string) *JiraChannel {
	if project == "" {
		project = jiraDefaultKey
	}
	return &JiraChannel{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		apiToken: apiToken,
		project:  project,
		client:   &http.Client{Timeout: jiraTimeout},
	}
}

// RegisterJira registers the JIRA channel factory. The channel is
// enabled when URL, username, and API token are all configured.
func RegisterJira() {
	Register(domain.ChannelJira, func(cfg config.Channels) (Channel, bool) {
		if cfg.JiraURL == "" || cfg.JiraUsername == "" || cfg.JiraAPIToken == "" {
			return nil, false
		}
		return NewJiraChannel(cfg.JiraURL, cfg.JiraUsername, cfg.JiraAPIToken, cfg.JiraProject), true
	})
}

// Name returns the channel identifier recorded on notification rows.
func (c *JiraChannel) Name() string {
	return domain.ChannelJira
}

type jiraIssue struct {
	Fields jiraFields `json:"fields"`
}

type jiraFields struct {
	Project     jiraName `json:"project"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	IssueType   jiraName `json:"issuetype"`
	Priority    jiraName `json:"priority"`
}

type jiraName struct {
	Key  string `json:"key,omitempty"`
	Name string `json:"name,omitempty"`
}

func jiraPriority(severity string) string {
	if domain.SeverityAtLeast(severity, domain.SeverityHigh) {
		return jiraPriorityHigh
	}
	return jiraPriorityMed
}

// Send creates a JIRA issue describing the alert.
func (c *JiraChannel) Send(ctx context.Context, a *domain.Alert) error {
	description := fmt.Sprintf(
		"*Alert Details:*\n- Message: %s\n- Resource Type: %s\n- Resource ID: %s\n- Severity: %s\n- Timestamp: %s",
		a.Message, a.ResourceType, a.ResourceID, strings.ToUpper(a.Severity), a.CreatedAt.Format(time.RFC3339),
	)
	issue := jiraIssue{
		Fields: jiraFields{
			Project:     jiraName{Key: c.project},
			Summary:     fmt.Sprintf("Fleet Alert: %s", a.AlertType),
			Description: description,
			IssueType:   jiraName{Name: jiraIssueType},
			Priority:    jiraName{Name: jiraPriority(a.Severity)},
		},
	}

	data, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("jira: failed to encode issue: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+jiraIssuePath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("jira: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("jira: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}
