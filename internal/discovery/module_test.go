package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/networknest/networknest/internal/auth"
	"github.com/networknest/networknest/internal/monitoring"
	"github.com/networknest/networknest/internal/plugin"
	"github.com/networknest/networknest/internal/testutil"
	"github.com/networknest/networknest/pkg/models"
)

func newTestPlugin(t *testing.T, p Prober) *Plugin {
	t.Helper()
	pl := New()
	require.NoError(t, pl.Init(plugin.Dependencies{Logger: zap.NewNop(), Store: testutil.NewStore(t)}))
	pl.scanner = newTestScanner(p)
	pl.controller = NewControllerDiscoverer(testControllerConfig(), NewOUITable(), zap.NewNop())
	return pl
}

func postJSON(t *testing.T, h http.HandlerFunc, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r = r.WithContext(auth.WithUser(r.Context(), userID))
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func TestPlugin_InitRequiresStore(t *testing.T) {
	err := New().Init(plugin.Dependencies{Logger: zap.NewNop()})
	assert.Error(t, err)
}

func TestPlugin_Routes(t *testing.T) {
	routes := New().Routes()
	got := make([]string, 0, len(routes))
	for _, r := range routes {
		got = append(got, r.Method+" "+r.Path)
		assert.False(t, r.Public, "%s %s must require a bearer token", r.Method, r.Path)
	}
	assert.ElementsMatch(t, []string{"POST /scan", "POST /discover", "GET /devices", "GET /runs"}, got)
}

func TestHandleScan_DefaultRangeAndPersistence(t *testing.T) {
	fp := &fakeProber{answers: map[string]*ProbeResult{
		"192.168.1.1":  {OpenPorts: []int{80}, StatusCode: 200},
		"192.168.1.50": {OpenPorts: []int{554}},
	}}
	p := newTestPlugin(t, fp)
	ctx := context.Background()

	w := postJSON(t, p.handleScan, "/scan", "alice", `{}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"192.168.1.0/24"}, resp.ScannedRanges)
	assert.Len(t, resp.Devices, 2)
	assert.Equal(t, "Network scan completed. Found 2 devices on ranges: 192.168.1.0/24", resp.Message)

	stored, err := p.history.LatestDevices(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	runs, err := p.runs.List(ctx, "alice", monitoring.ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs.Items, 1)
	assert.Equal(t, MethodScan, runs.Items[0].Method)
	assert.Equal(t, monitoring.RunCompleted, runs.Items[0].Status)
	assert.Equal(t, 2, runs.Items[0].Devices)
}

func TestHandleScan_ZeroDevicesIsSuccess(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})

	w := postJSON(t, p.handleScan, "/scan", "alice", `{"ipRanges":["10.0.0.0/24","10.0.1.0/24"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Devices)
	assert.Empty(t, resp.Devices)
	assert.Equal(t, "Network scan completed. Found 0 devices on ranges: 10.0.0.0/24, 10.0.1.0/24", resp.Message)
}

func TestHandleScan_MalformedRange(t *testing.T) {
	fp := &fakeProber{}
	p := newTestPlugin(t, fp)

	w := postJSON(t, p.handleScan, "/scan", "alice", `{"ipRanges":["192.168.1.0/24","bogus"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	assert.Zero(t, fp.calls.Load(), "no probe is sent when any range is invalid")

	runs, err := p.runs.List(context.Background(), "alice", monitoring.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, runs.Items, "rejected requests are not recorded as runs")

	p.limiters = newUserLimiters(1)
	w = postJSON(t, p.handleScan, "/scan", "alice", `{"ipRanges":["10.0.0.0/33"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = postJSON(t, p.handleScan, "/scan", "alice", `{"ipRanges":["10.0.0.0/24"]}`)
	assert.Equal(t, http.StatusOK, w.Code, "a rejected request does not spend the rate limit")
}

func TestHandleScan_InvalidBody(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})
	w := postJSON(t, p.handleScan, "/scan", "alice", `{"ipRanges":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleScan_RateLimited(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})
	p.limiters = newUserLimiters(1)

	w := postJSON(t, p.handleScan, "/scan", "alice", `{"ipRanges":["10.0.0.0/30"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, p.handleScan, "/scan", "alice", `{"ipRanges":["10.0.0.0/30"]}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = postJSON(t, p.handleScan, "/scan", "bob", `{"ipRanges":["10.0.0.0/30"]}`)
	assert.Equal(t, http.StatusOK, w.Code, "limits are per user")
}

func TestHandleDiscover_UnknownType(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})
	w := postJSON(t, p.handleDiscover, "/discover", "alice", `{"type":"mesh"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDiscover_RouterMissingHost(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})
	w := postJSON(t, p.handleDiscover, "/discover", "alice", `{"type":"router","settings":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "host")
}

func TestHandleDiscover_Router(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{answers: map[string]*ProbeResult{
		"192.168.1.1": {OpenPorts: []int{80}},
	}})
	arp := &fakeARPTable{entries: []ARPEntry{{IfIndex: 1, IP: "192.168.1.1", MAC: "00:11:22:33:44:55"}}}
	p.router = newTestRouter(testRouterConfig(), arp, p.scanner.prober)

	w := postJSON(t, p.handleDiscover, "/discover", "alice",
		`{"type":"router","settings":{"host":"192.168.1.1","snmpCommunity":"private"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp DiscoverResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ROUTER discovery completed. Found 1 devices.", resp.Message)
	require.Len(t, resp.Devices, 1)
	assert.Equal(t, models.DeviceTypeRouter, resp.Devices[0].Type)
	assert.Equal(t, "private", arp.community)
}

func TestHandleDiscover_ControllerRejected(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})
	fc := &fakeController{loginStatus: http.StatusForbidden}
	srv := httptest.NewTLSServer(fc.handler())
	defer srv.Close()

	body := `{"type":"unifi","settings":{"host":"127.0.0.1","username":"admin","password":"x","port":"` +
		strconv.Itoa(listenerPort(t, srv)) + `"}}`
	w := postJSON(t, p.handleDiscover, "/discover", "alice", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	stored, err := p.history.LatestDevices(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, stored, "a failed login stores nothing")
}

func TestHandleDiscover_ControllerUnreachable(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})
	cfg := testControllerConfig()
	cfg.Controller.HTTPFallbackPort = strconv.Itoa(closedPort(t))
	p.controller = NewControllerDiscoverer(cfg, NewOUITable(), zap.NewNop())

	body := `{"type":"unifi","settings":{"host":"127.0.0.1","username":"admin","password":"x","port":"` +
		strconv.Itoa(closedPort(t)) + `"}}`
	w := postJSON(t, p.handleDiscover, "/discover", "alice", body)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "controller unreachable")
}

func TestHandleDiscover_Controller(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})
	fc := &fakeController{}
	srv := httptest.NewTLSServer(fc.handler())
	defer srv.Close()

	body := `{"type":"unifi","settings":{"host":"127.0.0.1","username":"admin","password":"x","port":"` +
		strconv.Itoa(listenerPort(t, srv)) + `"}}`
	w := postJSON(t, p.handleDiscover, "/discover", "alice", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp DiscoverResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UNIFI discovery completed. Found 5 devices.", resp.Message)
}

func TestHandleDevices_JSONAndCSV(t *testing.T) {
	p := newTestPlugin(t, &fakeProber{})
	_, err := p.history.ReplaceDevices(context.Background(), "alice", []models.DiscoveredDevice{
		testutil.NewDevice(testutil.WithIP("192.168.1.20"), testutil.WithName("NAS")),
	})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/devices", nil)
	r = r.WithContext(auth.WithUser(r.Context(), "alice"))
	w := httptest.NewRecorder()
	p.handleDevices(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []models.MonitoringEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "NAS", entries[0].ItemName)

	r = httptest.NewRequest(http.MethodGet, "/devices?format=csv", nil)
	r = r.WithContext(auth.WithUser(r.Context(), "alice"))
	w = httptest.NewRecorder()
	p.handleDevices(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "item_id,"))
	assert.Contains(t, lines[1], "NAS")
}

func TestUserLimiters_Disabled(t *testing.T) {
	u := newUserLimiters(0)
	for range 100 {
		assert.True(t, u.allow("alice"))
	}
}

func TestWriteDiscoveryError_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	w := httptest.NewRecorder()
	writeDiscoveryError(w, httptest.NewRequest(http.MethodPost, "/scan", nil),
		&scanErr{ctx.Err()})
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

type scanErr struct{ err error }

func (e *scanErr) Error() string { return "scan interrupted: " + e.err.Error() }
func (e *scanErr) Unwrap() error { return e.err }
