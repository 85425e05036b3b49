package monitoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/networknest/networknest/pkg/models"
)

// demoDevice is one entry of the placeholder set shown before any discovery.
type demoDevice struct {
	name         string
	deviceType   models.DeviceType
	status       models.DeviceStatus
	responseTime int
	uptimeHours  int
}

var demoDevices = []demoDevice{
	{"Living Room TV", models.DeviceTypeSmartTV, models.DeviceStatusOnline, 18, 96},
	{"John's iPhone", models.DeviceTypeMobile, models.DeviceStatusOnline, 34, 12},
	{"Sarah's Laptop", models.DeviceTypeComputer, models.DeviceStatusOnline, 9, 40},
	{"Gaming Console", models.DeviceTypeComputer, models.DeviceStatusOffline, 0, 0},
	{"Smart Thermostat", models.DeviceTypeIoT, models.DeviceStatusOnline, 41, 168},
	{"Kitchen Tablet", models.DeviceTypeTablet, models.DeviceStatusOnline, 27, 72},
	{"Security Camera", models.DeviceTypeCamera, models.DeviceStatusOnline, 15, 168},
	{"Home Router", models.DeviceTypeRouter, models.DeviceStatusOnline, 2, 168},
}

// DeviceBandwidth derives a stable per-device throughput figure in MB/s
// from its response time. The result lies in [10, 60).
func DeviceBandwidth(responseTime int) float64 {
	if responseTime < 0 {
		responseTime = -responseTime
	}
	return 10 + float64((responseTime*37)%5000)/100
}

// BuildSnapshot assembles the network snapshot from the latest history row
// of each device. With no rows it returns the demo snapshot.
func BuildSnapshot(entries []models.MonitoringEntry, now time.Time) models.NetworkSnapshot {
	if len(entries) == 0 {
		return DemoSnapshot(now)
	}

	snap := models.NetworkSnapshot{Devices: make([]models.SnapshotDevice, 0, len(entries))}
	var total, uptime float64
	var last time.Time
	for _, e := range entries {
		deviceType := models.DeviceType(stringMetric(e.AdditionalMetrics, "device_type"))
		if deviceType == "" {
			deviceType = models.DeviceTypeUnknown
		}
		bw := DeviceBandwidth(e.ResponseTime)
		snap.Devices = append(snap.Devices, models.SnapshotDevice{
			ID:        e.ItemID,
			Name:      e.ItemName,
			Type:      deviceType,
			IP:        stringMetric(e.AdditionalMetrics, "ip_address"),
			Status:    e.Status,
			Bandwidth: formatBandwidth(bw),
			Icon:      deviceType.Icon(),
		})
		if e.Status == models.DeviceStatusOnline {
			snap.ConnectedDevices++
			total += bw
			uptime = math.Max(uptime, numberMetric(e.AdditionalMetrics, "uptime_hours"))
		}
		if e.CreatedAt.After(last) {
			last = e.CreatedAt
		}
	}
	if last.IsZero() {
		last = now
	}
	fillTotals(&snap, total, uptime, last)
	return snap
}

// DemoSnapshot returns the fixed placeholder snapshot.
func DemoSnapshot(now time.Time) models.NetworkSnapshot {
	snap := models.NetworkSnapshot{Devices: make([]models.SnapshotDevice, 0, len(demoDevices))}
	var total, uptime float64
	for i, d := range demoDevices {
		bw := DeviceBandwidth(d.responseTime)
		snap.Devices = append(snap.Devices, models.SnapshotDevice{
			ID:        PlaceholderIDs[i],
			Name:      d.name,
			Type:      d.deviceType,
			IP:        fmt.Sprintf("192.168.1.%d", 100+i),
			Status:    d.status,
			Bandwidth: formatBandwidth(bw),
			Icon:      d.deviceType.Icon(),
		})
		if d.status == models.DeviceStatusOnline {
			snap.ConnectedDevices++
			total += bw
			uptime = math.Max(uptime, float64(d.uptimeHours))
		}
	}
	fillTotals(&snap, total, uptime, now)
	return snap
}

func fillTotals(snap *models.NetworkSnapshot, total, uptime float64, updated time.Time) {
	snap.Bandwidth = round2(total)
	snap.BandwidthDown = round2(total * 0.8)
	snap.BandwidthUp = round2(total * 0.2)
	snap.Uptime = round2(uptime)
	snap.LastUpdated = updated.UTC()
	snap.NetworkStatus = models.DeviceStatusOffline
	if snap.ConnectedDevices > 0 {
		snap.NetworkStatus = models.DeviceStatusOnline
	}
}

func formatBandwidth(mbps float64) string {
	return fmt.Sprintf("%.2f MB/s", mbps)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stringMetric(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// numberMetric reads a numeric metric decoded from JSON.
func numberMetric(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Snapshot loads the user's latest devices and assembles their snapshot.
func (r *HistoryRepository) Snapshot(ctx context.Context, userID string, now time.Time) (models.NetworkSnapshot, error) {
	entries, err := r.LatestDevices(ctx, userID)
	if err != nil {
		return models.NetworkSnapshot{}, err
	}
	return BuildSnapshot(entries, now), nil
}
