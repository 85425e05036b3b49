package homeassistant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/networknest/networknest/internal/auth"
	"github.com/networknest/networknest/internal/plugin"
	"github.com/networknest/networknest/internal/server"
	"github.com/networknest/networknest/internal/testutil"
	"github.com/networknest/networknest/pkg/models"
)

var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestPlugin(t *testing.T) *Plugin {
	t.Helper()
	p := New()
	require.NoError(t, p.Init(plugin.Dependencies{Logger: zap.NewNop(), Store: testutil.NewStore(t)}))
	require.NoError(t, p.ValidateConfig())
	p.settings.BcryptCost = bcrypt.MinCost
	p.now = func() time.Time { return testNow }
	return p
}

func userRequest(method, path, userID, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	return r.WithContext(auth.WithUser(r.Context(), userID))
}

func createConfig(t *testing.T, p *Plugin, userID string) CreateConfigResponse {
	t.Helper()
	w := httptest.NewRecorder()
	p.handleCreateConfig(w, userRequest(http.MethodPost, "/config", userID,
		`{"ha_instance_name":"Home","ha_instance_url":"http://ha.local:8123"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CreateConfigResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func getStates(p *Plugin, key string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/states", nil)
	if key != "" {
		r.Header.Set(APIKeyHeader, key)
	}
	w := httptest.NewRecorder()
	p.withAPIKey(p.handleStates)(w, r)
	return w
}

func problemDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var pr server.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pr))
	return pr.Detail
}

func TestRoutes_PublicOnlyForAPIKeyEndpoints(t *testing.T) {
	public := map[string]bool{}
	for _, r := range New().Routes() {
		public[r.Method+" "+r.Path] = r.Public
	}
	assert.Equal(t, map[string]bool{
		"POST /config":   false,
		"PUT /config":    false,
		"GET /config":    false,
		"GET /states":    true,
		"GET /discovery": true,
	}, public)
}

func TestInit_RequiresStore(t *testing.T) {
	assert.Error(t, New().Init(plugin.Dependencies{Logger: zap.NewNop()}))
}

func TestValidateConfig_RejectsBadCost(t *testing.T) {
	p := New()
	p.settings.BcryptCost = 1
	assert.Error(t, p.ValidateConfig())
}

func TestCreateConfig_ReturnsKeyOnce(t *testing.T) {
	p := newTestPlugin(t)
	created := createConfig(t, p, "alice")

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Home", created.InstanceName)
	assert.Equal(t, "http://ha.local:8123", created.InstanceURL)
	assert.True(t, created.Enabled)
	assert.True(t, strings.HasPrefix(created.APIKey, "nn_"+created.KeyPrefix+"_"))

	w := httptest.NewRecorder()
	p.handleGetConfig(w, userRequest(http.MethodGet, "/config", "alice", ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "api_key")
	assert.NotContains(t, w.Body.String(), created.APIKey)
}

func TestCreateConfig_Validation(t *testing.T) {
	p := newTestPlugin(t)
	for _, body := range []string{
		`{"ha_instance_name":"   "}`,
		`{"ha_instance_name":"Home","ha_instance_url":"ftp://ha.local"}`,
		`{"ha_instance_name":`,
	} {
		w := httptest.NewRecorder()
		p.handleCreateConfig(w, userRequest(http.MethodPost, "/config", "alice", body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestCreateConfig_RotatesKey(t *testing.T) {
	p := newTestPlugin(t)
	first := createConfig(t, p, "alice")
	second := createConfig(t, p, "alice")

	assert.Equal(t, first.ID, second.ID, "one config per user")
	assert.NotEqual(t, first.APIKey, second.APIKey)
	assert.Equal(t, http.StatusUnauthorized, getStates(p, first.APIKey).Code)
	assert.Equal(t, http.StatusOK, getStates(p, second.APIKey).Code)
}

func TestGetConfig_NotFound(t *testing.T) {
	p := newTestPlugin(t)
	w := httptest.NewRecorder()
	p.handleGetConfig(w, userRequest(http.MethodGet, "/config", "nobody", ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateConfig(t *testing.T) {
	p := newTestPlugin(t)

	w := httptest.NewRecorder()
	p.handleUpdateConfig(w, userRequest(http.MethodPut, "/config", "alice", `{"ha_instance_name":"Cabin"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	created := createConfig(t, p, "alice")
	w = httptest.NewRecorder()
	p.handleUpdateConfig(w, userRequest(http.MethodPut, "/config", "alice",
		`{"ha_instance_name":"Cabin","enabled":false}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cfg Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "Cabin", cfg.InstanceName)
	assert.Empty(t, cfg.InstanceURL)
	assert.False(t, cfg.Enabled)

	resp := getStates(p, created.APIKey)
	assert.Equal(t, http.StatusUnauthorized, resp.Code, "disabled integrations reject their key")
}

func TestStates_APIKeyErrors(t *testing.T) {
	p := newTestPlugin(t)
	created := createConfig(t, p, "alice")

	w := getStates(p, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "API key required", problemDetail(t, w))

	for _, key := range []string{"garbage", "nn_" + created.KeyPrefix + "_wrong", "nn_00000000_secret"} {
		w = getStates(p, key)
		assert.Equal(t, http.StatusUnauthorized, w.Code, key)
		assert.Equal(t, "Invalid API key. Please check your API key and try again.", problemDetail(t, w))
	}
}

func TestStates_DemoThenDiscovered(t *testing.T) {
	p := newTestPlugin(t)
	created := createConfig(t, p, "alice")

	w := getStates(p, created.APIKey)
	require.Equal(t, http.StatusOK, w.Code)
	var demo models.NetworkSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &demo))
	assert.Len(t, demo.Devices, 8)
	assert.Equal(t, 7, demo.ConnectedDevices)
	assert.True(t, demo.LastUpdated.Equal(testNow))

	_, err := p.history.ReplaceDevices(t.Context(), "alice", []models.DiscoveredDevice{
		testutil.NewDevice(testutil.WithIP("192.168.1.1"), testutil.WithName("Home Router"),
			testutil.WithDeviceType(models.DeviceTypeRouter)),
	})
	require.NoError(t, err)

	w = getStates(p, created.APIKey)
	require.Equal(t, http.StatusOK, w.Code)
	var snap models.NetworkSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, "Home Router", snap.Devices[0].Name)
	assert.Equal(t, models.DeviceTypeRouter, snap.Devices[0].Type)
	assert.Equal(t, "192.168.1.1", snap.Devices[0].IP)
}

func TestStates_OtherUsersDataIsIsolated(t *testing.T) {
	p := newTestPlugin(t)
	alice := createConfig(t, p, "alice")

	_, err := p.history.ReplaceDevices(t.Context(), "bob", []models.DiscoveredDevice{
		testutil.NewDevice(testutil.WithIP("10.0.0.5")),
	})
	require.NoError(t, err)

	w := getStates(p, alice.APIKey)
	require.Equal(t, http.StatusOK, w.Code)
	var snap models.NetworkSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Len(t, snap.Devices, 8, "alice still sees the demo set")
}

func TestDescriptor(t *testing.T) {
	p := newTestPlugin(t)
	created := createConfig(t, p, "alice")

	r := httptest.NewRequest(http.MethodGet, "http://nest.local:8080/discovery", nil)
	r.Header.Set(APIKeyHeader, created.APIKey)
	w := httptest.NewRecorder()
	p.withAPIKey(p.handleDescriptor)(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var d Descriptor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, []string{"networknest_alice"}, d.Identifiers)
	assert.Equal(t, "http://nest.local:8080", d.ConfigurationURL)
	assert.Len(t, d.Devices, 2)
	for _, e := range d.Entities {
		assert.True(t, strings.HasSuffix(e.UniqueID, "_alice"), e.UniqueID)
		assert.Equal(t, "networknest_router_alice", e.Device)
	}
}
