package models

import "testing"

func TestDeviceIconCoverage(t *testing.T) {
	knownTypes := []DeviceType{
		DeviceTypeRouter, DeviceTypeSwitch, DeviceTypeAccessPoint,
		DeviceTypeGateway, DeviceTypePhone, DeviceTypeCloudKey,
		DeviceTypeUniFi, DeviceTypeComputer, DeviceTypeMobile,
		DeviceTypeTablet, DeviceTypeSmartTV, DeviceTypeIoT,
		DeviceTypeCamera, DeviceTypePrinter, DeviceTypeWebServer,
		DeviceTypeWebInterface, DeviceTypeLinux, DeviceTypeServer,
		DeviceTypeNetworkDevice, DeviceTypeUPnP, DeviceTypeUnknown,
	}
	for _, dt := range knownTypes {
		icon := dt.Icon()
		if icon == "" {
			t.Errorf("DeviceType %q has empty icon", dt)
		}
	}
}

func TestDeviceIconUnknownFallback(t *testing.T) {
	got := DeviceType("nonexistent").Icon()
	want := "help-circle"
	if got != want {
		t.Errorf("unknown device type icon = %q, want %q", got, want)
	}
}

func TestMarkSynthesized(t *testing.T) {
	var d DiscoveredDevice
	d.MarkSynthesized(FieldMAC)
	d.MarkSynthesized(FieldMAC)
	d.MarkSynthesized(FieldUptime)

	if len(d.Synthesized) != 2 {
		t.Fatalf("Synthesized = %v, want 2 entries", d.Synthesized)
	}
	if !d.IsSynthesized(FieldMAC) {
		t.Error("IsSynthesized(mac) = false, want true")
	}
	if d.IsSynthesized(FieldResponseTime) {
		t.Error("IsSynthesized(response_time) = true, want false")
	}
}
