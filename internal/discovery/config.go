package discovery

import (
	"errors"
	"time"

	"github.com/networknest/networknest/internal/version"
)

// Config holds discovery settings, decoded from the "plugins.discovery"
// config subtree on top of DefaultConfig.
type Config struct {
	// DefaultRanges are scanned when a request omits ipRanges.
	DefaultRanges []string `mapstructure:"default_ranges"`

	// MaxConcurrency bounds in-flight host probes per run.
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// ProbesPerSecond paces probe starts. Zero disables pacing.
	ProbesPerSecond float64 `mapstructure:"probes_per_second"`

	// RunTimeout caps a whole discovery run.
	RunTimeout time.Duration `mapstructure:"run_timeout"`

	// RunsPerMinute limits discovery requests per user. Zero disables the limit.
	RunsPerMinute int `mapstructure:"runs_per_minute"`

	// SynthesizeTelemetry fills uptime, downtime and latency with marked
	// guesses when no real measurement is available.
	SynthesizeTelemetry bool `mapstructure:"synthesize_telemetry"`

	// ICMPLatency measures response time with an ICMP echo when set.
	ICMPLatency bool `mapstructure:"icmp_latency"`

	// MDNS browses multicast DNS announcements to name found hosts.
	MDNS        bool          `mapstructure:"mdns"`
	MDNSTimeout time.Duration `mapstructure:"mdns_timeout"`

	Probe      ProbeConfig      `mapstructure:"probe"`
	Router     RouterConfig     `mapstructure:"router"`
	Controller ControllerConfig `mapstructure:"controller"`
}

// ProbeConfig controls the per-host prober.
type ProbeConfig struct {
	PrimaryTimeout time.Duration `mapstructure:"primary_timeout"`
	PortTimeout    time.Duration `mapstructure:"port_timeout"`
	Ports          []int         `mapstructure:"ports"`
	WebPort        int           `mapstructure:"web_port"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// RouterConfig controls the router/SNMP discoverer stages.
type RouterConfig struct {
	// WebURLTemplates are tried in order; "{host}" is replaced by the router host.
	WebURLTemplates []string      `mapstructure:"web_urls"`
	WebTimeout      time.Duration `mapstructure:"web_timeout"`
	ARPHostSuffixes []int         `mapstructure:"arp_host_suffixes"`
	ARPTimeout      time.Duration `mapstructure:"arp_timeout"`
	SNMPPort        uint16        `mapstructure:"snmp_port"`
	SNMPTimeout     time.Duration `mapstructure:"snmp_timeout"`
	SNMPRetries     int           `mapstructure:"snmp_retries"`
}

// ControllerConfig controls the network-controller client.
type ControllerConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	DefaultPort        string        `mapstructure:"default_port"`
	DefaultSite        string        `mapstructure:"default_site"`
	HTTPFallbackPort   string        `mapstructure:"http_fallback_port"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DefaultRanges:       []string{"192.168.1.0/24"},
		MaxConcurrency:      64,
		RunTimeout:          2 * time.Minute,
		RunsPerMinute:       6,
		SynthesizeTelemetry: true,
		MDNSTimeout:         3 * time.Second,
		Probe: ProbeConfig{
			PrimaryTimeout: 2 * time.Second,
			PortTimeout:    1 * time.Second,
			Ports:          []int{22, 23, 80, 443, 554, 5000, 8080, 9000},
			WebPort:        80,
			UserAgent:      version.UserAgent(),
		},
		Router: RouterConfig{
			WebURLTemplates: []string{
				"http://{host}/",
				"https://{host}/",
				"http://{host}:8080/",
				"https://{host}:8443/",
			},
			WebTimeout:      5 * time.Second,
			ARPHostSuffixes: []int{1, 2, 10, 100, 150, 200},
			ARPTimeout:      2 * time.Second,
			SNMPPort:        161,
			SNMPTimeout:     2 * time.Second,
			SNMPRetries:     1,
		},
		Controller: ControllerConfig{
			Timeout:            10 * time.Second,
			DefaultPort:        "8443",
			DefaultSite:        "default",
			HTTPFallbackPort:   "8080",
			InsecureSkipVerify: true,
		},
	}
}

// Validate reports settings that would make discovery misbehave.
func (c Config) Validate() error {
	var errs []error
	if c.MaxConcurrency < 1 {
		errs = append(errs, errors.New("max_concurrency must be at least 1"))
	}
	if c.Probe.PrimaryTimeout <= 0 || c.Probe.PortTimeout <= 0 {
		errs = append(errs, errors.New("probe timeouts must be positive"))
	}
	if c.Probe.WebPort < 1 || c.Probe.WebPort > 65535 {
		errs = append(errs, errors.New("probe.web_port out of range"))
	}
	for _, p := range c.Probe.Ports {
		if p < 1 || p > 65535 {
			errs = append(errs, errors.New("probe.ports contains an out-of-range port"))
			break
		}
	}
	for _, r := range c.DefaultRanges {
		if err := ValidateCIDR(r); err != nil {
			errs = append(errs, err)
		}
	}
	if c.MDNS && c.MDNSTimeout <= 0 {
		errs = append(errs, errors.New("mdns_timeout must be positive when mdns is enabled"))
	}
	if c.Controller.Timeout <= 0 {
		errs = append(errs, errors.New("controller.timeout must be positive"))
	}
	return errors.Join(errs...)
}
