//go:build !windows

package discovery

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMDNSBrowser_Hostnames(t *testing.T) {
	b := NewMDNSBrowser(0, zap.NewNop())
	b.query = func(p *mdns.QueryParam) error {
		switch p.Service {
		case "_http._tcp":
			p.Entries <- &mdns.ServiceEntry{Host: "nas.local.", AddrV4: net.ParseIP("192.168.1.20")}
			p.Entries <- &mdns.ServiceEntry{Host: "", Name: "printer._http._tcp.local.", Addr: net.ParseIP("192.168.1.30")}
			p.Entries <- &mdns.ServiceEntry{Host: "ghost.local.", AddrV4: net.IPv4zero}
		case "_ssh._tcp":
			p.Entries <- &mdns.ServiceEntry{Host: "other-name.local.", AddrV4: net.ParseIP("192.168.1.20")}
		case "_smb._tcp":
			return errors.New("socket closed")
		}
		return nil
	}

	names, err := b.Hostnames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"192.168.1.20": "nas",
		"192.168.1.30": "printer",
	}, names)
}

func TestMDNSBrowser_Cancelled(t *testing.T) {
	b := NewMDNSBrowser(0, zap.NewNop())
	b.query = func(*mdns.QueryParam) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Hostnames(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
