package domain

import "time"

// Alert resource types.
const (
	ResourceBaremetal = "baremetal"
	ResourceVM        = "vm"
)

// Well-known alert type codes. The field is free-form; these are the
// codes the engine itself raises.
const (
	AlertServerDown         = "server_down"
	AlertVMDown             = "vm_down"
	AlertVMProvisionFailed  = "vm_provision_failed"
	AlertStorageTierFull    = "storage_tier_full"
	AlertPoolOversubscribed = "pool_oversubscribed"
)

// Severity levels, ordered by urgency.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// severityRank orders severities for comparison; unknown severities rank
// below low.
var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// SeverityAtLeast reports whether severity s is at least as urgent as
// min.
func SeverityAtLeast(s, min string) bool {
	return severityRank[s] >= severityRank[min]
}

// ValidSeverity reports whether s is a recognized severity level.
func ValidSeverity(s string) bool {
	_, ok := severityRank[s]
	return ok
}

// Alert is a durable record of a health or provisioning failure.
// Created by the health monitor or a failed provisioning step; resolved
// only by explicit acknowledgement or a superseding recovery.
type Alert struct {
	ID           string            `json:"id"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	AlertType    string            `json:"alert_type"`
	Severity     string            `json:"severity"`
	Message      string            `json:"message"`
	Labels       map[string]string `json:"labels,omitempty"`
	Resolved     bool              `json:"resolved"`
	CreatedAt    time.Time         `json:"created_at"`
	ResolvedAt   time.Time         `json:"resolved_at,omitempty"`
}

// Notification channels.
const (
	ChannelSlack = "slack"
	ChannelJira  = "jira"
	ChannelEmail = "email"
)

// Notification delivery statuses.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification records a single delivery attempt of one alert to one
// channel. A failed notification is terminal; re-dispatching the alert
// creates a fresh record, preserving the full audit trail.
type Notification struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	Channel   string    `json:"channel"`
	Status    string    `json:"status"`
	SentAt    time.Time `json:"sent_at,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
