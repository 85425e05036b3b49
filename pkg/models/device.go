package models

import "time"

// DeviceType is the display classification of a discovered device.
type DeviceType string

const (
	DeviceTypeRouter        DeviceType = "Router"
	DeviceTypeSwitch        DeviceType = "Switch"
	DeviceTypeAccessPoint   DeviceType = "Access Point"
	DeviceTypeGateway       DeviceType = "Gateway"
	DeviceTypePhone         DeviceType = "Phone"
	DeviceTypeCloudKey      DeviceType = "Cloud Key"
	DeviceTypeUniFi         DeviceType = "UniFi Device"
	DeviceTypeComputer      DeviceType = "Computer"
	DeviceTypeMobile        DeviceType = "Mobile"
	DeviceTypeTablet        DeviceType = "Tablet"
	DeviceTypeSmartTV       DeviceType = "Smart TV"
	DeviceTypeIoT           DeviceType = "IoT Device"
	DeviceTypeCamera        DeviceType = "IP Camera"
	DeviceTypePrinter       DeviceType = "Printer"
	DeviceTypeWebServer     DeviceType = "Web Server"
	DeviceTypeWebInterface  DeviceType = "Web Interface"
	DeviceTypeLinux         DeviceType = "Linux Device"
	DeviceTypeServer        DeviceType = "Server"
	DeviceTypeNetworkDevice DeviceType = "Network Device"
	DeviceTypeUPnP          DeviceType = "UPnP Device"
	DeviceTypeUnknown       DeviceType = "Unknown"
)

// DeviceStatus represents the reachability of a device at discovery time.
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// DiscoveryMethod tags which strategy produced a device record.
type DiscoveryMethod string

const (
	DiscoveryRangeScan  DiscoveryMethod = "Range Scan"
	DiscoverySNMP       DiscoveryMethod = "SNMP"
	DiscoveryRouterWeb  DiscoveryMethod = "Router Interface"
	DiscoveryARP        DiscoveryMethod = "ARP/Ping"
	DiscoveryController DiscoveryMethod = "UniFi Controller"
)

// Names of fields that may be synthesized rather than observed.
const (
	FieldMAC          = "mac"
	FieldResponseTime = "response_time"
	FieldUptime       = "uptime"
	FieldLastDowntime = "last_downtime"
)

// DiscoveredDevice is the normalized record produced by every discovery
// strategy. Records are created fresh on each run and never mutated after
// they leave the discoverer.
type DiscoveredDevice struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           DeviceType     `json:"type"`
	IP             string         `json:"ip"`
	MAC            string         `json:"mac"`
	Manufacturer   string         `json:"manufacturer"`
	Status         DeviceStatus   `json:"status"`
	ResponseTime   int            `json:"response_time"`
	OpenPorts      []int          `json:"open_ports"`
	Services       []string       `json:"services"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastDowntime   *time.Time     `json:"last_downtime"`
	UptimeHours    int            `json:"uptime"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`

	// Synthesized lists the fields above that hold heuristic fill-ins
	// (pseudo-MAC, guessed uptime) instead of observed telemetry.
	Synthesized []string `json:"synthesized,omitempty"`
}

// IsSynthesized reports whether the named field was filled in heuristically.
func (d *DiscoveredDevice) IsSynthesized(field string) bool {
	for _, f := range d.Synthesized {
		if f == field {
			return true
		}
	}
	return false
}

// MarkSynthesized records field as a heuristic fill-in. Duplicate marks are ignored.
func (d *DiscoveredDevice) MarkSynthesized(field string) {
	if d.IsSynthesized(field) {
		return
	}
	d.Synthesized = append(d.Synthesized, field)
}
