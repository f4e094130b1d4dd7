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

const slackTimeout = 10 * time.Second

// Compile-time check that SlackChannel satisfies Channel.
var _ Channel = (*SlackChannel)(nil)

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

// NewSlackChannel creates a Slack channel for the given webhook URL.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: slackTimeout},
	}
}

// RegisterSlack registers the Slack channel factory. The channel is
// enabled when a webhook URL is configured.
func RegisterSlack() {
	Register(domain.ChannelSlack, func(cfg config.Channels) (Channel, bool) {
		if cfg.SlackWebhookURL == "" {
			return nil, false
		}
		return NewSlackChannel(cfg.SlackWebhookURL), true
	})
}

// Name returns the channel identifier recorded on notification rows.
func (c *SlackChannel) Name() string {
	return domain.ChannelSlack
}

// slackAttachment is the legacy attachment shape Slack webhooks accept.
type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackMessage struct {
	Attachments []slackAttachment `json:"attachments"`
}

// severityColor maps alert severity to Slack attachment colors.
func severityColor(severity string) string {
	switch severity {
	case domain.SeverityHigh, domain.SeverityCritical:
		return "#danger"
	case domain.SeverityMedium:
		return "#warning"
	default:
		return "#good"
	}
}

// Send posts the alert as a Slack attachment.
func (c *SlackChannel) Send(ctx context.Context, a *domain.Alert) error {
	msg := slackMessage{
		Attachments: []slackAttachment{{
			Color: severityColor(a.Severity),
			Title: fmt.Sprintf("Fleet Alert: %s", a.AlertType),
			Text:  a.Message,
			Fields: []slackField{
				{Title: "Resource Type", Value: a.ResourceType, Short: true},
				{Title: "Severity", Value: strings.ToUpper(a.Severity), Short: true},
				{Title: "Resource ID", Value: a.ResourceID, Short: true},
				{Title: "Timestamp", Value: a.CreatedAt.Format(time.RFC3339), Short: true},
			},
		}},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("slack: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}
