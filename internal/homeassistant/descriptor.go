package homeassistant

import "github.com/networknest/networknest/internal/version"

// Descriptor tells a home-automation hub which devices and sensors the
// integration provides for one user.
type Descriptor struct {
	Manufacturer     string             `json:"manufacturer"`
	Model            string             `json:"model"`
	Name             string             `json:"name"`
	SWVersion        string             `json:"sw_version"`
	Identifiers      []string           `json:"identifiers"`
	ConfigurationURL string             `json:"configuration_url,omitempty"`
	Devices          []DescriptorDevice `json:"devices"`
	Entities         []DescriptorEntity `json:"entities"`
}

// DescriptorDevice is a logical device grouping sensors on the hub.
type DescriptorDevice struct {
	Identifiers   []string `json:"identifiers"`
	Name          string   `json:"name"`
	Model         string   `json:"model"`
	Manufacturer  string   `json:"manufacturer"`
	SuggestedArea string   `json:"suggested_area"`
}

// DescriptorEntity is one sensor backed by a field of the network snapshot.
type DescriptorEntity struct {
	UniqueID    string `json:"unique_id"`
	Name        string `json:"name"`
	DeviceClass string `json:"device_class,omitempty"`
	Unit        string `json:"unit_of_measurement,omitempty"`
	Icon        string `json:"icon"`
	StateKey    string `json:"state_key"`
	Device      string `json:"device"`
}

const manufacturer = "NetworkNest"

// BuildDescriptor returns the device and sensor layout for userID.
func BuildDescriptor(userID, configurationURL string) Descriptor {
	router := "networknest_router_" + userID
	id := func(s string) string { return "networknest_" + s + "_" + userID }

	return Descriptor{
		Manufacturer:     manufacturer,
		Model:            "Network Dashboard",
		Name:             "NetworkNest Hub",
		SWVersion:        version.Short(),
		Identifiers:      []string{"networknest_" + userID},
		ConfigurationURL: configurationURL,
		Devices: []DescriptorDevice{
			{Identifiers: []string{router}, Name: "Network Router", Model: "Router Monitor", Manufacturer: manufacturer, SuggestedArea: "Network Room"},
			{Identifiers: []string{id("switch")}, Name: "Network Switch", Model: "Switch Monitor", Manufacturer: manufacturer, SuggestedArea: "Network Room"},
		},
		Entities: []DescriptorEntity{
			{UniqueID: id("bandwidth"), Name: "Network Bandwidth", DeviceClass: "data_rate", Unit: "MB/s", Icon: "mdi:speedometer", StateKey: "bandwidth", Device: router},
			{UniqueID: id("bandwidth_down"), Name: "Download Bandwidth", DeviceClass: "data_rate", Unit: "MB/s", Icon: "mdi:download", StateKey: "bandwidth_down", Device: router},
			{UniqueID: id("bandwidth_up"), Name: "Upload Bandwidth", DeviceClass: "data_rate", Unit: "MB/s", Icon: "mdi:upload", StateKey: "bandwidth_up", Device: router},
			{UniqueID: id("connected_devices"), Name: "Connected Devices", Icon: "mdi:devices", StateKey: "connected_devices", Device: router},
			{UniqueID: id("network_status"), Name: "Network Status", DeviceClass: "connectivity", Icon: "mdi:network", StateKey: "network_status", Device: router},
			{UniqueID: id("uptime"), Name: "Network Uptime", DeviceClass: "duration", Unit: "h", Icon: "mdi:clock-outline", StateKey: "uptime", Device: router},
		},
	}
}
