package models

import "time"

// MonitoringEntry is one persisted monitoring-history row. Discovery writes
// one entry per discovered device; entries are never updated in place.
type MonitoringEntry struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	ItemType          string         `json:"item_type"`
	ItemID            string         `json:"item_id"`
	ItemName          string         `json:"item_name"`
	Status            DeviceStatus   `json:"status"`
	ResponseTime      int            `json:"response_time"`
	AdditionalMetrics map[string]any `json:"additional_metrics"`
	CreatedAt         time.Time      `json:"created_at"`
}

// DiscoveryRun records the outcome of a single discovery invocation.
type DiscoveryRun struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Method    string `json:"method"`
	Target    string `json:"target"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Status    string `json:"status"`
	Devices   int    `json:"devices"`
	ErrorMsg  string `json:"error,omitempty"`
}

// SnapshotDevice is the per-device shape consumed by the home-automation poller.
type SnapshotDevice struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Type      DeviceType   `json:"type"`
	IP        string       `json:"ip"`
	Status    DeviceStatus `json:"status"`
	Bandwidth string       `json:"bandwidth"`
	Icon      string       `json:"icon"`
}

// NetworkSnapshot is the normalized network state served to API-key clients.
type NetworkSnapshot struct {
	Bandwidth        float64          `json:"bandwidth"`
	BandwidthDown    float64          `json:"bandwidth_down"`
	BandwidthUp      float64          `json:"bandwidth_up"`
	ConnectedDevices int              `json:"connected_devices"`
	Devices          []SnapshotDevice `json:"devices"`
	NetworkStatus    DeviceStatus     `json:"network_status"`
	Uptime           float64          `json:"uptime"`
	LastUpdated      time.Time        `json:"last_updated"`
}
