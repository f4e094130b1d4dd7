package provision

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fleetd/internal/domain"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// MetricsPoint is one sample of a time series.
type MetricsPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// InstanceMetrics holds real usage series for one instance. Usage is
// always sourced from the backend, never synthesized.
type InstanceMetrics struct {
	CPUPercent []MetricsPoint `json:"cpu_percent"`
}

// MetricsProvider supplies real usage metrics for provisioned
// instances. Backends that cannot report usage simply do not
// implement it.
type MetricsProvider interface {
	InstanceMetrics(ctx context.Context, externalID string, start, end time.Time) (*InstanceMetrics, error)
}

// Compile-time check that HetznerBackend satisfies MetricsProvider.
var _ MetricsProvider = (*HetznerBackend)(nil)

// InstanceMetrics fetches CPU usage for a server over the given time
// range. The step is calculated to produce approximately 60 data
// points.
func (h *HetznerBackend) InstanceMetrics(ctx context.Context, externalID string, start, end time.Time) (*InstanceMetrics, error) {
	numericID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid server ID %q: %w", externalID, err)
	}

	step := int(end.Sub(start).Seconds() / 60)
	if step < 1 {
		step = 1
	}

	opts := hcloud.ServerGetMetricsOpts{
		Types: []hcloud.ServerMetricType{hcloud.ServerMetricCPU},
		Start: start,
		End:   end,
		Step:  step,
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	hzMetrics, _, err := h.client.Server.GetMetrics(reqCtx, &hcloud.Server{ID: numericID}, opts)
	if err != nil {
		if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			return nil, fmt.Errorf("failed to get server metrics: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get server metrics: %w", err)
	}

	return toInstanceMetrics(hzMetrics), nil
}

// toInstanceMetrics converts hcloud series to the backend-neutral
// shape. Values that cannot be parsed as float64 are skipped.
func toInstanceMetrics(hz *hcloud.ServerMetrics) *InstanceMetrics {
	out := &InstanceMetrics{}
	if hz == nil {
		return out
	}

	for _, v := range hz.TimeSeries["cpu"] {
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			continue
		}
		out.CPUPercent = append(out.CPUPercent, MetricsPoint{
			Timestamp: time.Unix(int64(v.Timestamp), 0).UTC(),
			Value:     f,
		})
	}
	return out
}
