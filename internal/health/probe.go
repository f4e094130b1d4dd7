package health

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Prober performs a single reachability check against a target address.
// A false result means unhealthy; probes never return errors because
// every failure mode (timeout, refusal, DNS failure) counts the same.
type Prober interface {
	Probe(ctx context.Context, address string) bool
}

// TCPProber checks liveness with a TCP connect to a management port.
type TCPProber struct {
	// Port is the management port to dial, typically 22.
	Port int
	// Timeout bounds a single connection attempt.
	Timeout time.Duration
}

func (p *TCPProber) Probe(ctx context.Context, address string) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(p.Port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
