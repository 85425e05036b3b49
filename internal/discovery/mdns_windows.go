//go:build windows

package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MDNSBrowser resolves nothing on Windows, where multicast DNS is not
// reliably available to unprivileged processes.
type MDNSBrowser struct{}

// NewMDNSBrowser returns a browser that finds no names.
func NewMDNSBrowser(_ time.Duration, _ *zap.Logger) *MDNSBrowser {
	return &MDNSBrowser{}
}

// Hostnames always returns an empty map.
func (b *MDNSBrowser) Hostnames(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
