//go:build !windows

package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// mdnsServices are the service types browsed for host names.
var mdnsServices = []string{
	"_http._tcp",
	"_ssh._tcp",
	"_smb._tcp",
	"_ipp._tcp",
	"_printer._tcp",
	"_airplay._tcp",
	"_googlecast._tcp",
	"_hap._tcp",
	"_workstation._tcp",
}

// MDNSBrowser resolves LAN host names from mDNS/Bonjour announcements.
type MDNSBrowser struct {
	timeout time.Duration
	logger  *zap.Logger
	query   func(*mdns.QueryParam) error
}

// NewMDNSBrowser creates a browser that waits timeout per service type.
func NewMDNSBrowser(timeout time.Duration, logger *zap.Logger) *MDNSBrowser {
	return &MDNSBrowser{timeout: timeout, logger: logger, query: mdns.Query}
}

// Hostnames browses every known service type and returns IPv4 address to
// host name. A failed query for one service type is skipped.
func (b *MDNSBrowser) Hostnames(ctx context.Context) (map[string]string, error) {
	names := make(map[string]string)
	for _, svc := range mdnsServices {
		if err := ctx.Err(); err != nil {
			return names, err
		}
		b.browse(svc, names)
	}
	b.logger.Debug("mdns browse complete", zap.Int("hosts", len(names)))
	return names, nil
}

func (b *MDNSBrowser) browse(service string, names map[string]string) {
	entries := make(chan *mdns.ServiceEntry, 16)

	var wg sync.WaitGroup
	wg.Go(func() {
		for e := range entries {
			if ip, name := entryIP(e), entryHostname(e); ip != "" && name != "" {
				if _, ok := names[ip]; !ok {
					names[ip] = name
				}
			}
		}
	})

	params := mdns.DefaultParams(service)
	params.Timeout = b.timeout
	params.Entries = entries
	params.DisableIPv6 = true

	if err := b.query(params); err != nil {
		b.logger.Debug("mdns query failed", zap.String("service", service), zap.Error(err))
	}
	close(entries)
	wg.Wait()
}

func entryIP(e *mdns.ServiceEntry) string {
	if e == nil {
		return ""
	}
	if e.AddrV4 != nil && !e.AddrV4.IsUnspecified() {
		return e.AddrV4.String()
	}
	if e.Addr != nil && !e.Addr.IsUnspecified() && e.Addr.To4() != nil {
		return e.Addr.String()
	}
	return ""
}

// entryHostname returns the short host name of e, without ".local.".
func entryHostname(e *mdns.ServiceEntry) string {
	if e == nil {
		return ""
	}
	host := strings.TrimSuffix(e.Host, ".")
	host = strings.TrimSuffix(host, ".local")
	if host == "" {
		host, _, _ = strings.Cut(e.Name, ".")
	}
	return host
}
