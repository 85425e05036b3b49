package discovery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/networknest/networknest/pkg/models"
)

// ControllerSettings identify the network controller and its login.
type ControllerSettings struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Port     string `json:"port,omitempty"`
	Site     string `json:"site,omitempty"`
}

// controllerDevice is an infrastructure entry of /stat/device.
type controllerDevice struct {
	MAC         string `json:"mac"`
	IP          string `json:"ip"`
	Name        string `json:"name"`
	Model       string `json:"model"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	State       int    `json:"state"`
	Uptime      int64  `json:"uptime"`
	LastSeen    int64  `json:"last_seen"`
	LEDOverride string `json:"led_override"`
}

// controllerClient is a connected station of /stat/sta.
type controllerClient struct {
	MAC       string `json:"mac"`
	IP        string `json:"ip"`
	Hostname  string `json:"hostname"`
	Name      string `json:"name"`
	OUI       string `json:"oui"`
	FirstSeen int64  `json:"first_seen"`
	LastSeen  int64  `json:"last_seen"`
	Uptime    int64  `json:"uptime"`
	Signal    int    `json:"signal"`
	TxBytes   int64  `json:"tx_bytes"`
	RxBytes   int64  `json:"rx_bytes"`
	Network   string `json:"network"`
	APMAC     string `json:"ap_mac"`
}

// controllerList is the envelope every controller stat endpoint uses.
type controllerList[T any] struct {
	Data []T `json:"data"`
}

var controllerDeviceTypes = map[string]models.DeviceType{
	"uap": models.DeviceTypeAccessPoint,
	"usw": models.DeviceTypeSwitch,
	"ugw": models.DeviceTypeGateway,
	"uph": models.DeviceTypePhone,
	"uck": models.DeviceTypeCloudKey,
}

const (
	controllerManufacturer = "Ubiquiti"
	controllerService      = "UniFi Management"
)

// ControllerDiscoverer lists the infrastructure devices and connected
// clients known to a UniFi network controller.
type ControllerDiscoverer struct {
	cfg    Config
	oui    *OUITable
	logger *zap.Logger
	now    func() time.Time
}

// NewControllerDiscoverer creates a ControllerDiscoverer.
func NewControllerDiscoverer(cfg Config, oui *OUITable, logger *zap.Logger) *ControllerDiscoverer {
	return &ControllerDiscoverer{cfg: cfg, oui: oui, logger: logger, now: time.Now}
}

// Discover logs in to the controller, then fetches and normalizes its
// device and client lists. Login failure is fatal; a failed list fetch
// only empties that list.
func (c *ControllerDiscoverer) Discover(ctx context.Context, s ControllerSettings) ([]models.DiscoveredDevice, error) {
	if err := c.normalize(&s); err != nil {
		return nil, err
	}

	client, err := c.newClient()
	if err != nil {
		return nil, err
	}
	base, err := c.login(ctx, client, s)
	if err != nil {
		return nil, err
	}

	var infra controllerList[controllerDevice]
	c.fetch(ctx, client, base+"/api/s/"+url.PathEscape(s.Site)+"/stat/device", &infra)
	var stations controllerList[controllerClient]
	c.fetch(ctx, client, base+"/api/s/"+url.PathEscape(s.Site)+"/stat/sta", &stations)

	b := newDeviceBuilder(c.now, c.cfg.SynthesizeTelemetry, uint64(c.now().UnixNano()))
	devices := make([]models.DiscoveredDevice, 0, len(infra.Data)+len(stations.Data))
	for _, d := range infra.Data {
		devices = append(devices, c.infraDevice(b, d))
	}
	for _, st := range stations.Data {
		devices = append(devices, c.clientDevice(b, st))
	}
	c.logger.Info("controller discovery finished",
		zap.String("host", s.Host),
		zap.Int("infrastructure", len(infra.Data)),
		zap.Int("clients", len(stations.Data)),
	)
	return devices, nil
}

func (c *ControllerDiscoverer) normalize(s *ControllerSettings) error {
	s.Host = strings.TrimSpace(s.Host)
	switch {
	case s.Host == "":
		return &ValidationError{Field: "host", Reason: "controller host is required"}
	case s.Username == "":
		return &ValidationError{Field: "username", Reason: "controller username is required"}
	case s.Password == "":
		return &ValidationError{Field: "password", Reason: "controller password is required"}
	}
	if s.Port == "" {
		s.Port = c.cfg.Controller.DefaultPort
	}
	if s.Site == "" {
		s.Site = c.cfg.Controller.DefaultSite
	}
	return nil
}

// newClient returns a client with a fresh cookie jar so sessions never
// leak between runs.
func (c *ControllerDiscoverer) newClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &http.Client{
		Jar: jar,
		Transport: &http.Transport{
			DisableKeepAlives: true,
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: c.cfg.Controller.InsecureSkipVerify}, //nolint:gosec // controllers ship self-signed certs
		},
	}, nil
}

// login tries HTTPS on the configured port, then plain HTTP on the
// fallback port when the first attempt could not connect. It returns the
// base URL of the attempt that succeeded.
func (c *ControllerDiscoverer) login(ctx context.Context, client *http.Client, s ControllerSettings) (string, error) {
	body, err := json.Marshal(map[string]string{"username": s.Username, "password": s.Password})
	if err != nil {
		return "", fmt.Errorf("encode login: %w", err)
	}

	bases := []string{
		"https://" + net.JoinHostPort(s.Host, s.Port),
		"http://" + net.JoinHostPort(s.Host, c.cfg.Controller.HTTPFallbackPort),
	}
	var lastErr error
	for _, base := range bases {
		status, err := c.postLogin(ctx, client, base+"/api/login", body)
		if err != nil {
			c.logger.Debug("controller login attempt failed", zap.String("base", base), zap.Error(err))
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if status < 200 || status > 299 {
			return "", &AuthenticationError{Reason: AuthRejected, Status: status}
		}
		return base, nil
	}
	return "", &AuthenticationError{Reason: AuthUnreachable, Err: lastErr}
}

func (c *ControllerDiscoverer) postLogin(ctx context.Context, client *http.Client, u string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Controller.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// fetch decodes a stat endpoint into out. Failures leave out empty.
func (c *ControllerDiscoverer) fetch(ctx context.Context, client *http.Client, u string, out any) {
	if err := c.getJSON(ctx, client, u, out); err != nil {
		c.logger.Warn("controller list unavailable", zap.String("url", u), zap.Error(err))
	}
}

var errUnexpectedStatus = errors.New("unexpected status")

func (c *ControllerDiscoverer) getJSON(ctx context.Context, client *http.Client, u string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Controller.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *ControllerDiscoverer) infraDevice(b *deviceBuilder, d controllerDevice) models.DiscoveredDevice {
	deviceType, ok := controllerDeviceTypes[d.Type]
	if !ok {
		deviceType = models.DeviceTypeUniFi
	}
	name := d.Name
	if name == "" {
		name = d.Model
	}
	if name == "" {
		name = string(models.DeviceTypeUniFi)
	}

	dev := b.build(observation{
		id:   DeviceID(prefixController, d.MAC),
		ip:   d.IP,
		mac:  d.MAC,
		name: name,
		class: Classification{
			Type:         deviceType,
			Manufacturer: controllerManufacturer,
			Services:     []string{controllerService},
		},
		uptimeHours:  int(d.Uptime / 3600),
		uptimeKnown:  true,
		lastDowntime: epochTime(d.LastSeen),
		method:       models.DiscoveryController,
		latencyRange: [2]int{1, 10},
		extra: map[string]any{
			"model":          d.Model,
			"version":        d.Version,
			"adoption_state": d.State,
			"led_override":   d.LEDOverride,
		},
	})
	if d.State != 1 {
		dev.Status = models.DeviceStatusOffline
	}
	return dev
}

func (c *ControllerDiscoverer) clientDevice(b *deviceBuilder, st controllerClient) models.DiscoveredDevice {
	vendor := st.OUI
	if vendor == "" && c.oui != nil && st.MAC != "" {
		vendor = c.oui.Lookup(st.MAC)
	}
	name := st.Hostname
	if name == "" {
		name = st.Name
	}

	dev := b.build(observation{
		id:   DeviceID(prefixClient, st.MAC),
		ip:   st.IP,
		mac:  st.MAC,
		name: name,
		class: Classification{
			Type:         ClassifyClient(st.Hostname, st.Name, vendor),
			Manufacturer: vendor,
		},
		uptimeHours:  int(st.Uptime / 3600),
		uptimeKnown:  true,
		lastDowntime: epochTime(st.LastSeen),
		method:       models.DiscoveryController,
		latencyRange: [2]int{5, 54},
		extra: map[string]any{
			"signal":   st.Signal,
			"tx_bytes": st.TxBytes,
			"rx_bytes": st.RxBytes,
			"network":  st.Network,
			"ap_mac":   st.APMAC,
		},
	})
	if st.FirstSeen > 0 {
		dev.FirstSeen = time.Unix(st.FirstSeen, 0).UTC()
	}
	return dev
}

// epochTime converts a controller timestamp; zero means not reported.
func epochTime(epoch int64) *time.Time {
	if epoch <= 0 {
		return nil
	}
	t := time.Unix(epoch, 0).UTC()
	return &t
}
