package testutil

import (
	"strings"
	"time"

	"github.com/networknest/networknest/pkg/models"
)

// NewDevice returns a DiscoveredDevice with sensible defaults, suitable for
// test fixtures. Override individual fields with options as needed.
func NewDevice(opts ...func(*models.DiscoveredDevice)) models.DiscoveredDevice {
	d := models.DiscoveredDevice{
		ID:           "device_192_168_1_100",
		Name:         "Device (192.168.1.100)",
		Type:         models.DeviceTypeComputer,
		IP:           "192.168.1.100",
		MAC:          "00:11:22:33:44:55",
		Manufacturer: "Unknown",
		Status:       models.DeviceStatusOnline,
		ResponseTime: 12,
		OpenPorts:    []int{},
		Services:     []string{},
		FirstSeen:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		AdditionalInfo: map[string]any{
			"discovery_method": string(models.DiscoveryRangeScan),
		},
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithID sets the device id.
func WithID(id string) func(*models.DiscoveredDevice) {
	return func(d *models.DiscoveredDevice) { d.ID = id }
}

// WithName sets the device display name.
func WithName(name string) func(*models.DiscoveredDevice) {
	return func(d *models.DiscoveredDevice) { d.Name = name }
}

// WithIP sets the device IP and derives the range-scan style id from it.
func WithIP(ip string) func(*models.DiscoveredDevice) {
	return func(d *models.DiscoveredDevice) {
		d.IP = ip
		d.ID = "device_" + strings.ReplaceAll(ip, ".", "_")
	}
}

// WithMAC sets the device's MAC address.
func WithMAC(mac string) func(*models.DiscoveredDevice) {
	return func(d *models.DiscoveredDevice) { d.MAC = mac }
}

// WithStatus sets the device status.
func WithStatus(s models.DeviceStatus) func(*models.DiscoveredDevice) {
	return func(d *models.DiscoveredDevice) { d.Status = s }
}

// WithDeviceType sets the device type.
func WithDeviceType(dt models.DeviceType) func(*models.DiscoveredDevice) {
	return func(d *models.DiscoveredDevice) { d.Type = dt }
}

// WithResponseTime sets the response time in milliseconds.
func WithResponseTime(ms int) func(*models.DiscoveredDevice) {
	return func(d *models.DiscoveredDevice) { d.ResponseTime = ms }
}
