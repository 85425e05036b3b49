package discovery

import (
	"net/http"
	"slices"
	"strings"

	"github.com/networknest/networknest/pkg/models"
)

// Signals are the observations a classification is derived from.
type Signals struct {
	Headers   http.Header
	OpenPorts []int
	Hostname  string
	Vendor    string
}

// Classification is the classifier's guess for a device.
type Classification struct {
	Type         models.DeviceType
	Manufacturer string
	Name         string
	Services     []string
}

const (
	manufacturerUnknown = "Unknown"
	manufacturerVarious = "Various"
)

// portRule classifies a device by the presence of a single port.
type portRule struct {
	ports        []int
	deviceType   models.DeviceType
	name         string
	manufacturer string
}

// Evaluated in order; the first rule with a matching port wins.
var portRules = []portRule{
	{[]int{554}, models.DeviceTypeCamera, "Security Camera", manufacturerVarious},
	{[]int{22}, models.DeviceTypeLinux, "SSH Server", manufacturerVarious},
	{[]int{23}, models.DeviceTypeNetworkDevice, "Telnet Device", manufacturerVarious},
	{[]int{80, 443}, models.DeviceTypeWebServer, "HTTP Server", manufacturerVarious},
	{[]int{5000}, models.DeviceTypeUPnP, "Media Server", manufacturerVarious},
}

var portServices = map[int]string{
	22:   "SSH",
	23:   "Telnet",
	80:   "HTTP",
	161:  "SNMP",
	443:  "HTTPS",
	554:  "RTSP",
	5000: "UPnP",
	8080: "HTTP-Alt",
	8443: "HTTPS-Alt",
	9000: "HTTP-Mgmt",
}

// Classify maps observed signals to a device type, manufacturer, display
// name and service list. It is pure: equal signals give equal results.
func Classify(s Signals) Classification {
	c := Classification{
		Type:         models.DeviceTypeUnknown,
		Manufacturer: manufacturerUnknown,
		Services:     ServicesForPorts(s.OpenPorts),
	}

	matched := false
	for _, rule := range portRules {
		if !hasAnyPort(s.OpenPorts, rule.ports) {
			continue
		}
		c.Type, c.Name, c.Manufacturer = rule.deviceType, rule.name, rule.manufacturer
		if rule.deviceType == models.DeviceTypeWebServer {
			refineWeb(&c, s.Headers)
		}
		matched = true
		break
	}

	if !matched {
		switch {
		case s.Hostname != "" || s.Vendor != "":
			c.Type = ClassifyClient(s.Hostname, "", s.Vendor)
		case len(s.OpenPorts) > 0:
			c.Type, c.Name = models.DeviceTypeNetworkDevice, "Unknown Device"
		}
	}

	if s.Vendor != "" {
		c.Manufacturer = s.Vendor
	}
	return c
}

// refineWeb narrows a web-port match using HTTP response headers.
func refineWeb(c *Classification, h http.Header) {
	if h == nil {
		return
	}
	server := strings.ToLower(h.Get("Server"))
	switch {
	case strings.Contains(server, "lighttpd"):
		c.Type, c.Name, c.Manufacturer = models.DeviceTypeRouter, "Router", manufacturerVarious
	case strings.Contains(server, "nginx"), strings.Contains(server, "apache"):
		c.Type, c.Name = models.DeviceTypeWebServer, "Web Server"
	case strings.Contains(h.Get("Content-Type"), "text/html"):
		c.Type, c.Name = models.DeviceTypeWebInterface, "Web Interface"
	}
}

// clientRule matches host tokens against the hostname and display name, and
// vendor tokens against the OUI vendor string only.
type clientRule struct {
	hostTokens   []string
	vendorTokens []string
	deviceType   models.DeviceType
}

var clientRules = []clientRule{
	{[]string{"ipad"}, nil, models.DeviceTypeTablet},
	{[]string{"iphone"}, []string{"apple"}, models.DeviceTypeMobile},
	{[]string{"android"}, []string{"samsung", "lg"}, models.DeviceTypeMobile},
	{[]string{"tv", "roku", "chromecast"}, nil, models.DeviceTypeSmartTV},
	{[]string{"printer", "canon", "hp"}, nil, models.DeviceTypePrinter},
	{[]string{"camera", "cam"}, []string{"axis"}, models.DeviceTypeCamera},
	{[]string{"esp", "arduino", "iot"}, nil, models.DeviceTypeIoT},
}

// ClassifyClient guesses the type of a client device from its hostname,
// display name and vendor string. Unmatched clients are Computers.
func ClassifyClient(hostname, name, vendor string) models.DeviceType {
	h := strings.ToLower(hostname + " " + name)
	v := strings.ToLower(vendor)
	for _, rule := range clientRules {
		if containsAny(h, rule.hostTokens) || containsAny(v, rule.vendorTokens) {
			return rule.deviceType
		}
	}
	return models.DeviceTypeComputer
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// ServicesForPorts names the well-known service on each port, in port order.
// Unknown ports are skipped.
func ServicesForPorts(ports []int) []string {
	sorted := slices.Clone(ports)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	services := make([]string, 0, len(sorted))
	for _, p := range sorted {
		if name, ok := portServices[p]; ok {
			services = append(services, name)
		}
	}
	return services
}

func hasAnyPort(open, want []int) bool {
	for _, p := range want {
		if slices.Contains(open, p) {
			return true
		}
	}
	return false
}
