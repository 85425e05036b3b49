package discovery

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/networknest/networknest/pkg/models"
)

// ID prefixes, one per discovery source.
const (
	prefixRangeScan  = "device"
	prefixSNMP       = "snmp"
	prefixARP        = "arp"
	prefixRouter     = "router"
	prefixController = "unifi"
	prefixClient     = "client"
)

var idReplacer = strings.NewReplacer(".", "_", ":", "_", "-", "_")

// DeviceID builds a deterministic id from a source prefix and an IP or MAC.
func DeviceID(prefix, key string) string {
	return prefix + "_" + idReplacer.Replace(strings.ToLower(key))
}

// PseudoMAC derives a stable placeholder MAC from an IPv4 address: with h
// the sum of the octets, byte i is (h+i) mod 256. It is not a real
// layer-2 address.
func PseudoMAC(ip string) string {
	h := 0
	for _, part := range strings.Split(ip, ".") {
		n, _ := strconv.Atoi(part)
		h += n
	}
	b := make([]string, 6)
	for i := range b {
		b[i] = fmt.Sprintf("%02x", (h+i)%256)
	}
	return strings.Join(b, ":")
}

// deviceBuilder turns probe results into DiscoveredDevice records,
// filling missing telemetry with marked guesses when enabled.
type deviceBuilder struct {
	now        func() time.Time
	synthesize bool
	rand       *rand.Rand
}

func newDeviceBuilder(now func() time.Time, synthesize bool, seed uint64) *deviceBuilder {
	if now == nil {
		now = time.Now
	}
	return &deviceBuilder{
		now:        now,
		synthesize: synthesize,
		rand:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// observation is what a discovery stage knows about one host.
type observation struct {
	id           string
	ip           string
	mac          string // empty when no layer-2 address was seen
	name         string
	class        Classification
	openPorts    []int
	latency      time.Duration // zero when not measured
	uptimeHours  int           // zero when unknown, unless uptimeKnown
	uptimeKnown  bool          // uptimeHours and lastDowntime come from the source
	lastDowntime *time.Time
	method       models.DiscoveryMethod
	extra        map[string]any
	latencyRange [2]int // synthesized response time bounds in ms
}

func (b *deviceBuilder) build(o observation) models.DiscoveredDevice {
	d := models.DiscoveredDevice{
		ID:           o.id,
		Name:         o.name,
		Type:         o.class.Type,
		IP:           o.ip,
		MAC:          o.mac,
		Manufacturer: o.class.Manufacturer,
		Status:       models.DeviceStatusOnline,
		OpenPorts:    o.openPorts,
		Services:     o.class.Services,
		FirstSeen:    b.now().UTC(),
		UptimeHours:  o.uptimeHours,
		LastDowntime: o.lastDowntime,
		AdditionalInfo: map[string]any{
			"discovery_method": string(o.method),
		},
	}
	for k, v := range o.extra {
		d.AdditionalInfo[k] = v
	}
	if d.Name == "" {
		d.Name = "Device " + o.ip
	}
	if d.OpenPorts == nil {
		d.OpenPorts = []int{}
	}
	if d.Services == nil {
		d.Services = []string{}
	}
	if d.Manufacturer == "" {
		d.Manufacturer = manufacturerUnknown
	}

	if d.MAC == "" {
		d.MAC = PseudoMAC(o.ip)
		d.MarkSynthesized(models.FieldMAC)
		d.AdditionalInfo["mac_synthesized"] = true
	}

	if o.latency > 0 {
		d.ResponseTime = max(1, int(o.latency/time.Millisecond))
	} else if b.synthesize {
		lo, hi := o.latencyRange[0], o.latencyRange[1]
		if hi <= lo {
			lo, hi = 1, 50
		}
		d.ResponseTime = lo + b.rand.IntN(hi-lo+1)
		d.MarkSynthesized(models.FieldResponseTime)
	}

	if d.UptimeHours == 0 && !o.uptimeKnown && b.synthesize {
		d.UptimeHours = 1 + b.rand.IntN(168)
		d.MarkSynthesized(models.FieldUptime)
		down := d.FirstSeen.Add(-time.Duration(b.rand.Int64N(int64(7 * 24 * time.Hour))))
		d.LastDowntime = &down
		d.MarkSynthesized(models.FieldLastDowntime)
	}
	return d
}
