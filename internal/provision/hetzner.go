package provision

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"fleetd/internal/auth"
	"fleetd/internal/domain"
	"fleetd/internal/retry"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

const requestTimeout = 30 * time.Second

// Compile-time check that HetznerBackend satisfies Backend.
var _ Backend = (*HetznerBackend)(nil)

// HetznerBackend provisions VM instances on Hetzner Cloud.
type HetznerBackend struct {
	client *hcloud.Client
}

// NewHetznerBackend creates a HetznerBackend with the given hcloud
// client options. Default options (application name) are applied
// first; callers can override them.
func NewHetznerBackend(opts ...hcloud.ClientOption) *HetznerBackend {
	defaults := []hcloud.ClientOption{
		hcloud.WithApplication("fleetd", "0.1.0"),
	}
	allOpts := append(defaults, opts...)
	return &HetznerBackend{
		client: hcloud.NewClient(allOpts...),
	}
}

// RegisterHetzner registers the Hetzner backend factory with the
// global registry.
func RegisterHetzner() {
	Register("hetzner", func(store auth.Store) (Backend, error) {
		token, err := store.GetToken("hetzner")
		if err != nil {
			return nil, fmt.Errorf("hetzner auth: %w", err)
		}
		return NewHetznerBackend(hcloud.WithToken(token)), nil
	})
}

// Name returns the backend identifier.
func (h *HetznerBackend) Name() string {
	return "hetzner"
}

// CreateInstance creates a server sized for the spec and waits for an
// address. The server type is resolved from the spec's CPU and memory
// by picking the smallest type that covers both.
func (h *HetznerBackend) CreateInstance(ctx context.Context, spec InstanceSpec) (string, string, error) {
	serverType, err := h.pickServerType(ctx, spec.CPUCores, spec.MemoryMB)
	if err != nil {
		return "", "", err
	}

	startAfterCreate := true
	createOpts := hcloud.ServerCreateOpts{
		Name:             spec.Hostname,
		ServerType:       serverType,
		Image:            &hcloud.Image{Name: spec.ImageID},
		UserData:         spec.UserData,
		StartAfterCreate: &startAfterCreate,
	}

	var result hcloud.ServerCreateResult
	err = retry.Do(ctx, retry.DefaultConfig(), isHetznerRetryable, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		var apiErr error
		result, _, apiErr = h.client.Server.Create(reqCtx, createOpts)
		return apiErr
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create server: %w", err)
	}

	externalID := strconv.FormatInt(result.Server.ID, 10)
	var ipAddress string
	if !result.Server.PublicNet.IPv4.IsUnspecified() {
		ipAddress = result.Server.PublicNet.IPv4.IP.String()
	}
	return externalID, ipAddress, nil
}

// DeleteInstance removes a server by its numeric Hetzner ID. A server
// that is already gone counts as deleted.
func (h *HetznerBackend) DeleteInstance(ctx context.Context, externalID string) error {
	numericID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid server ID %q: %w", externalID, err)
	}

	err = retry.Do(ctx, retry.DefaultConfig(), isHetznerRetryable, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		_, _, apiErr := h.client.Server.DeleteWithResult(reqCtx, &hcloud.Server{ID: numericID})
		return apiErr
	})
	if err != nil {
		if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return nil
}

// Resize changes the server's type to the smallest one covering the
// new spec. The disk is not grown so the change stays reversible.
func (h *HetznerBackend) Resize(ctx context.Context, externalID string, spec InstanceSpec) error {
	numericID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid server ID %q: %w", externalID, err)
	}

	serverType, err := h.pickServerType(ctx, spec.CPUCores, spec.MemoryMB)
	if err != nil {
		return err
	}

	err = retry.Do(ctx, retry.DefaultConfig(), isHetznerRetryable, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		_, _, apiErr := h.client.Server.ChangeType(reqCtx, &hcloud.Server{ID: numericID}, hcloud.ServerChangeTypeOpts{
			ServerType:  serverType,
			UpgradeDisk: false,
		})
		return apiErr
	})
	if err != nil {
		if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			return fmt.Errorf("failed to resize server: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("failed to resize server: %w", err)
	}
	return nil
}

// pickServerType returns the smallest server type with at least the
// requested cores and memory. Ties and ordering follow cores, then
// memory, then name, so the choice is deterministic.
func (h *HetznerBackend) pickServerType(ctx context.Context, cpuCores, memoryMB int) (*hcloud.ServerType, error) {
	var serverTypes []*hcloud.ServerType
	err := retry.Do(ctx, retry.DefaultConfig(), isHetznerRetryable, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		var apiErr error
		serverTypes, apiErr = h.client.ServerType.All(reqCtx)
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list server types: %w", err)
	}

	memoryGB := float32(memoryMB) / 1024
	candidates := serverTypes[:0]
	for _, st := range serverTypes {
		if st.Cores >= cpuCores && st.Memory >= memoryGB {
			candidates = append(candidates, st)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no server type covers %d cores / %d MB", cpuCores, memoryMB)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Cores != candidates[j].Cores {
			return candidates[i].Cores < candidates[j].Cores
		}
		if candidates[i].Memory != candidates[j].Memory {
			return candidates[i].Memory < candidates[j].Memory
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0], nil
}

// isHetznerRetryable treats rate limits and transient API conditions
// as retryable; auth and validation failures fail fast.
func isHetznerRetryable(err error) bool {
	if hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded) {
		return true
	}
	if hcloud.IsError(err, hcloud.ErrorCodeConflict) {
		return true
	}
	return retry.IsRetryable(err)
}
