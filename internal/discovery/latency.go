package discovery

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

var errNoReply = errors.New("no echo reply")

// LatencyMeter measures round-trip time to a host that is already known
// to be reachable.
type LatencyMeter interface {
	Measure(ctx context.Context, ip string) (time.Duration, error)
}

// ICMPMeter pings targets using ICMP via pro-bing.
type ICMPMeter struct {
	timeout time.Duration
	count   int
}

// NewICMPMeter creates an ICMP meter with the given timeout and echo count.
func NewICMPMeter(timeout time.Duration, count int) *ICMPMeter {
	return &ICMPMeter{timeout: timeout, count: count}
}

// Measure returns the average RTT of the echo replies from ip.
func (m *ICMPMeter) Measure(ctx context.Context, ip string) (time.Duration, error) {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return 0, fmt.Errorf("create pinger: %w", err)
	}
	pinger.Count = m.count
	pinger.Timeout = m.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			return 0, fmt.Errorf("ping %s: %w", ip, runErr)
		}
		stats := pinger.Statistics()
		if stats.PacketsRecv == 0 {
			return 0, errNoReply
		}
		return stats.AvgRtt, nil
	case <-ctx.Done():
		pinger.Stop()
		return 0, ctx.Err()
	}
}
