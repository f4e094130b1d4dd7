package config

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySpec describes a single configuration key exposed through the CLI.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "http-addr").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set applies a value for this key to the given Config (in memory only;
	// the caller is responsible for calling Save).
	Set func(cfg *Config, value string) error
}

// Keys is the authoritative list of configuration keys editable from the
// CLI. To add a new option: add a field to Config and append a KeySpec
// here. Secrets (API tokens) live in the keychain, not here.
var Keys = []KeySpec{
	{
		Name:        "http-addr",
		Description: "Listen address for the API server",
		Get:         func(cfg *Config) string { return cfg.HTTPAddr },
		Set:         func(cfg *Config, v string) error { cfg.HTTPAddr = v; return nil },
	},
	{
		Name:        "backend",
		Description: "Provisioning backend used for VM instances",
		Get:         func(cfg *Config) string { return cfg.Backend },
		Set:         func(cfg *Config, v string) error { cfg.Backend = v; return nil },
	},
	{
		Name:        "database-path",
		Description: "SQLite database location (empty for the default)",
		Get:         func(cfg *Config) string { return cfg.DatabasePath },
		Set:         func(cfg *Config, v string) error { cfg.DatabasePath = v; return nil },
	},
	{
		Name:        "storage-root",
		Description: "Directory volumes are provisioned under",
		Get:         func(cfg *Config) string { return cfg.StorageRoot },
		Set:         func(cfg *Config, v string) error { cfg.StorageRoot = v; return nil },
	},
	{
		Name:        "log-level",
		Description: "Log verbosity (debug, info, warn, error)",
		Get:         func(cfg *Config) string { return cfg.LogLevel },
		Set:         func(cfg *Config, v string) error { cfg.LogLevel = v; return nil },
	},
	{
		Name:        "probe-port",
		Description: "Management port probed for reachability",
		Get:         func(cfg *Config) string { return strconv.Itoa(cfg.Health.ProbePort) },
		Set: func(cfg *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("config: probe-port must be a port number, got %q", v)
			}
			cfg.Health.ProbePort = n
			return nil
		},
	},
	{
		Name:        "failure-threshold",
		Description: "Consecutive probe failures before a resource is marked failed",
		Get:         func(cfg *Config) string { return strconv.Itoa(cfg.Health.FailureThreshold) },
		Set: func(cfg *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("config: failure-threshold must be a positive integer, got %q", v)
			}
			cfg.Health.FailureThreshold = n
			return nil
		},
	},
	{
		Name:        "slack-webhook-url",
		Description: "Slack incoming webhook for alert notifications",
		Get:         func(cfg *Config) string { return cfg.Channels.SlackWebhookURL },
		Set:         func(cfg *Config, v string) error { cfg.Channels.SlackWebhookURL = v; return nil },
	},
	{
		Name:        "jira-url",
		Description: "JIRA base URL for alert tickets",
		Get:         func(cfg *Config) string { return cfg.Channels.JiraURL },
		Set:         func(cfg *Config, v string) error { cfg.Channels.JiraURL = v; return nil },
	},
	{
		Name:        "jira-username",
		Description: "JIRA account used to open tickets",
		Get:         func(cfg *Config) string { return cfg.Channels.JiraUsername },
		Set:         func(cfg *Config, v string) error { cfg.Channels.JiraUsername = v; return nil },
	},
	{
		Name:        "jira-project",
		Description: "JIRA project key tickets are filed under",
		Get:         func(cfg *Config) string { return cfg.Channels.JiraProject },
		Set:         func(cfg *Config, v string) error { cfg.Channels.JiraProject = v; return nil },
	},
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
