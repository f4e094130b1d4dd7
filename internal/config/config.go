// Package config handles persistent configuration for fleetd.
//
// Configuration is stored as JSON at ~/.config/fleetd/config.json (or the
// platform-equivalent path returned by os.UserConfigDir). Individual
// values can be overridden through FLEETD_* environment variables, which
// is how the daemon is usually configured in production.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	appDir   = "fleetd"
	fileName = "config.json"
)

// pathOverride, when non-empty, replaces the default config file path.
// Intended for testing. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the config file path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override, reverting to the default. Intended for testing.
func ResetPath() { pathOverride = "" }

// Health controls probe cadence and the failure threshold.
type Health struct {
	// BaremetalInterval is the sweep cadence for baremetal probes.
	BaremetalInterval Duration `json:"baremetal_interval,omitempty"`
	// VMInterval is the sweep cadence for VM probes.
	VMInterval Duration `json:"vm_interval,omitempty"`
	// ProbeTimeout bounds a single TCP reachability check.
	ProbeTimeout Duration `json:"probe_timeout,omitempty"`
	// SweepTimeout bounds a whole fleet sweep.
	SweepTimeout Duration `json:"sweep_timeout,omitempty"`
	// FailureThreshold is the number of consecutive probe failures
	// before a resource transitions to failed.
	FailureThreshold int `json:"failure_threshold,omitempty"`
	// ProbePort is the management port probed for reachability.
	ProbePort int `json:"probe_port,omitempty"`
}

// Channels holds notification channel configuration. A channel with an
// empty endpoint or missing credentials is simply skipped by the
// dispatcher.
type Channels struct {
	SlackWebhookURL string `json:"slack_webhook_url,omitempty"`

	JiraURL      string `json:"jira_url,omitempty"`
	JiraUsername string `json:"jira_username,omitempty"`
	JiraAPIToken string `json:"jira_api_token,omitempty"`
	JiraProject  string `json:"jira_project,omitempty"`

	SMTPAddr  string   `json:"smtp_addr,omitempty"`
	EmailFrom string   `json:"email_from,omitempty"`
	EmailTo   []string `json:"email_to,omitempty"`
}

// Config holds daemon settings that persist across invocations.
type Config struct {
	// HTTPAddr is the listen address for the API server.
	HTTPAddr string `json:"http_addr,omitempty"`

	// Backend selects the provisioning backend ("hetzner" by default).
	Backend string `json:"backend,omitempty"`

	// DatabasePath overrides the default SQLite database location.
	DatabasePath string `json:"database_path,omitempty"`

	Health   Health   `json:"health,omitempty"`
	Channels Channels `json:"channels,omitempty"`

	// StorageRoot is the directory volumes are provisioned under.
	StorageRoot string `json:"storage_root,omitempty"`

	// StorageTiers maps tier name to its capacity limit in GB. When
	// empty, DefaultStorageTiers applies.
	StorageTiers map[string]int `json:"storage_tiers,omitempty"`

	LogLevel string `json:"log_level,omitempty"`
}

// DefaultStorageTiers is the capacity budget per storage tier, in GB.
var DefaultStorageTiers = map[string]int{
	"vm_storage":    1000,
	"orchestration": 500,
	"monitoring":    200,
	"backups":       80,
	"logs":          20,
}

// Defaults fills zero-valued fields with production defaults.
func (c *Config) Defaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.Backend == "" {
		c.Backend = "hetzner"
	}
	if c.Health.BaremetalInterval == 0 {
		c.Health.BaremetalInterval = Duration(60 * time.Second)
	}
	if c.Health.VMInterval == 0 {
		c.Health.VMInterval = Duration(120 * time.Second)
	}
	if c.Health.ProbeTimeout == 0 {
		c.Health.ProbeTimeout = Duration(5 * time.Second)
	}
	if c.Health.SweepTimeout == 0 {
		c.Health.SweepTimeout = Duration(45 * time.Second)
	}
	if c.Health.FailureThreshold == 0 {
		c.Health.FailureThreshold = 1
	}
	if c.Health.ProbePort == 0 {
		c.Health.ProbePort = 22
	}
	if c.StorageRoot == "" {
		c.StorageRoot = "/shared-storage"
	}
	if len(c.StorageTiers) == 0 {
		c.StorageTiers = DefaultStorageTiers
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Path returns the absolute path to the config file.
// If SetPath has been called, that value is returned instead.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads the config file from disk, applies environment overrides
// and defaults, and returns the result. A missing file is not an error.
func Load() (*Config, error) {
	return loadFrom("")
}

func loadFrom(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.Defaults()
	return &cfg, nil
}

// applyEnv overrides file-sourced values with FLEETD_* environment
// variables where set. Credentials in particular are usually supplied
// this way rather than written to disk.
func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.HTTPAddr, "FLEETD_HTTP_ADDR")
	setString(&c.Backend, "FLEETD_BACKEND")
	setString(&c.DatabasePath, "FLEETD_DATABASE_PATH")
	setString(&c.StorageRoot, "FLEETD_STORAGE_ROOT")
	setString(&c.LogLevel, "FLEETD_LOG_LEVEL")

	setString(&c.Channels.SlackWebhookURL, "FLEETD_SLACK_WEBHOOK_URL")
	setString(&c.Channels.JiraURL, "FLEETD_JIRA_URL")
	setString(&c.Channels.JiraUsername, "FLEETD_JIRA_USERNAME")
	setString(&c.Channels.JiraAPIToken, "FLEETD_JIRA_API_TOKEN")
	setString(&c.Channels.JiraProject, "FLEETD_JIRA_PROJECT")
	setString(&c.Channels.SMTPAddr, "FLEETD_SMTP_ADDR")

	if v := os.Getenv("FLEETD_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Health.FailureThreshold = n
		}
	}
	if v := os.Getenv("FLEETD_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Health.ProbeTimeout = Duration(d)
		}
	}
}

// Save writes the config to disk, creating the parent directory if needed.
func (c *Config) Save() error {
	return c.saveTo("")
}

func (c *Config) saveTo(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}

// LoadFrom reads the config from the given path. Intended for testing.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path)
}

// SaveTo writes the config to the given path. Intended for testing.
func (c *Config) SaveTo(path string) error {
	return c.saveTo(path)
}
