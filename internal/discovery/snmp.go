package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// oidIPNetToMediaPhysAddress is the ARP table column of IP-MIB
// (ipNetToMediaPhysAddress), indexed by ifIndex and IPv4 address.
const oidIPNetToMediaPhysAddress = ".1.3.6.1.2.1.4.22.1.2"

// ARPEntry is one row of a router's ARP table.
type ARPEntry struct {
	IfIndex int
	IP      string
	MAC     string
}

// ARPTableSource reads a router's ARP table.
type ARPTableSource interface {
	ARPTable(ctx context.Context, host, community string) ([]ARPEntry, error)
}

// SNMPWalker reads the ARP table over SNMP v2c.
type SNMPWalker struct {
	cfg RouterConfig
}

// NewSNMPWalker creates an SNMPWalker using the SNMP settings in cfg.
func NewSNMPWalker(cfg RouterConfig) *SNMPWalker {
	return &SNMPWalker{cfg: cfg}
}

// ARPTable walks ipNetToMediaPhysAddress on host.
func (w *SNMPWalker) ARPTable(ctx context.Context, host, community string) ([]ARPEntry, error) {
	g := &gosnmp.GoSNMP{
		Target:    host,
		Port:      w.cfg.SNMPPort,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   w.cfg.SNMPTimeout,
		Retries:   w.cfg.SNMPRetries,
		Context:   ctx,
		MaxOids:   gosnmp.MaxOids,
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", host, err)
	}
	defer g.Conn.Close()

	var entries []ARPEntry
	err := g.BulkWalk(oidIPNetToMediaPhysAddress, func(pdu gosnmp.SnmpPDU) error {
		if e, ok := parseARPEntry(pdu.Name, pdu.Value); ok {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return entries, fmt.Errorf("snmp walk %s: %w", host, err)
	}
	return entries, nil
}

// parseARPEntry decodes one ipNetToMediaPhysAddress varbind. The OID suffix
// is <ifIndex>.<a>.<b>.<c>.<d>; the value is the 6-byte MAC.
func parseARPEntry(name string, value any) (ARPEntry, bool) {
	suffix, ok := strings.CutPrefix(name, oidIPNetToMediaPhysAddress+".")
	if !ok {
		suffix, ok = strings.CutPrefix(name, strings.TrimPrefix(oidIPNetToMediaPhysAddress, ".")+".")
		if !ok {
			return ARPEntry{}, false
		}
	}
	parts := strings.Split(suffix, ".")
	if len(parts) != 5 {
		return ARPEntry{}, false
	}
	ifIndex, err := strconv.Atoi(parts[0])
	if err != nil {
		return ARPEntry{}, false
	}
	ip := net.ParseIP(strings.Join(parts[1:], ".")).To4()
	if ip == nil {
		return ARPEntry{}, false
	}

	raw, ok := value.([]byte)
	if !ok || len(raw) != 6 {
		return ARPEntry{}, false
	}
	hw := net.HardwareAddr(raw)
	if isZeroOrBroadcast(hw) {
		return ARPEntry{}, false
	}
	return ARPEntry{IfIndex: ifIndex, IP: ip.String(), MAC: strings.ToUpper(hw.String())}, true
}
