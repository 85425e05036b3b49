package models

// DeviceIcon maps a DeviceType to its icon identifier.
// Identifiers use Lucide icon names (https://lucide.dev) for
// compatibility with the React dashboard and the home-automation cards.
var DeviceIcon = map[DeviceType]string{
	DeviceTypeRouter:        "router",
	DeviceTypeSwitch:        "network",
	DeviceTypeAccessPoint:   "wifi",
	DeviceTypeGateway:       "shield",
	DeviceTypePhone:         "phone",
	DeviceTypeCloudKey:      "key-round",
	DeviceTypeUniFi:         "box",
	DeviceTypeComputer:      "monitor",
	DeviceTypeMobile:        "smartphone",
	DeviceTypeTablet:        "tablet",
	DeviceTypeSmartTV:       "tv",
	DeviceTypeIoT:           "cpu",
	DeviceTypeCamera:        "camera",
	DeviceTypePrinter:       "printer",
	DeviceTypeWebServer:     "server",
	DeviceTypeWebInterface:  "globe",
	DeviceTypeLinux:         "terminal",
	DeviceTypeServer:        "server",
	DeviceTypeNetworkDevice: "network",
	DeviceTypeUPnP:          "cast",
	DeviceTypeUnknown:       "help-circle",
}

// Icon returns the icon identifier for a DeviceType.
// Returns "help-circle" for unrecognised types.
func (dt DeviceType) Icon() string {
	if icon, ok := DeviceIcon[dt]; ok {
		return icon
	}
	return DeviceIcon[DeviceTypeUnknown]
}
