package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wandbridge/internal/bridge"
	"wandbridge/internal/config"
	"wandbridge/internal/events"
	"wandbridge/internal/history"
	"wandbridge/internal/logging"
	"wandbridge/internal/wand"
)

const testConfig = `
server:
  no_auth: true
  jwt_secret: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
`

type testServer struct {
	srv    *httptest.Server
	bridge *bridge.Bridge
	hist   *history.Store
	events *events.Store
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeFile(cfgPath, testConfig))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	log := logging.NewLogrus("error", io.Discard).Get("test")
	br := bridge.New(cfg, bridge.Deps{}, log)

	hist, err := history.NewStore(filepath.Join(dir, "casts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	eventStore := events.NewStore(100)

	s := NewServer(cfg, br, hist, eventStore, "test")
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, bridge: br, hist: hist, events: eventStore, cfg: cfg}
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (ts *testServer) post(t *testing.T, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

func TestWandStatusDisconnected(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/api/wand/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["connected"])
	assert.Equal(t, "Wand", body["mode"])
	assert.NotContains(t, body, "info")
}

func TestWandOpsWithoutWand(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/wand/calibrate",
		"/api/wand/buzz",
		"/api/wand/lights/clear",
		"/api/wand/reset",
	} {
		resp, body := ts.post(t, path, "{}")
		assert.Equal(t, http.StatusConflict, resp.StatusCode, path)
		assert.Equal(t, "No wand connected", body["error"], path)
	}
}

func TestWandSpellsList(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/wand/spells")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Spells []SpellEntry `json:"spells"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Spells, len(wand.Spells))
	assert.Equal(t, wand.Spells[0].Name, body.Spells[0].Name)
	assert.NotEmpty(t, body.Spells[0].DisplayName)
}

func TestWandLEDValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.post(t, "/api/wand/led", `{"group":9,"r":255}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "LED group")
}

func TestWandMacroValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.post(t, "/api/wand/macro", `{"steps":"not-hex"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.post(t, "/api/wand/macro", `{"steps":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Valid hex but no wand connected.
	resp, _ = ts.post(t, "/api/wand/macro", `{"steps":"500a00"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWandPayoffUnknownSpell(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.post(t, "/api/wand/payoff", `{"spell":"abracadabra"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "Unknown spell")
}

func TestSettingsRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/api/settings")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "White", body["castingColor"])
	assert.Equal(t, true, body["payoffEnabled"])

	resp, body = ts.post(t, "/api/settings",
		`{"castingColor":"Blue","payoffEnabled":false,"spellTimeout":"30s"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Blue", body["castingColor"])
	assert.Equal(t, false, body["payoffEnabled"])
	assert.Equal(t, "30s", body["spellTimeout"])

	// Settings persisted on the config.
	assert.Equal(t, "Blue", ts.cfg.CastingColor())
	assert.Equal(t, 30*time.Second, ts.cfg.SpellTimeout())

	// Audited.
	var found bool
	for _, e := range ts.events.GetAll() {
		if e.Type == events.EventSettingsChange {
			found = true
			assert.Contains(t, e.Details, "castingColor=Blue")
		}
	}
	assert.True(t, found, "settings change should be audited")
}

func TestSettingsValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.post(t, "/api/settings", `{"castingColor":"Chartreuse"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.post(t, "/api/settings", `{"detectionThreshold":1.5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.post(t, "/api/settings", `{"spellTimeout":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Values unchanged after rejected updates.
	assert.Equal(t, "White", ts.cfg.CastingColor())
	assert.EqualValues(t, float32(0.99), ts.cfg.DetectionThreshold())
	assert.Zero(t, ts.cfg.SpellTimeout())
}

func TestHistoryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	ctx := context.Background()
	require.NoError(t, ts.hist.Record(ctx, &history.Cast{
		WandID: "3012abcd", Spell: "Lumos", Source: history.SourceServer, Confidence: 0.997,
	}))
	require.NoError(t, ts.hist.Record(ctx, &history.Cast{
		WandID: "3012abcd", Spell: "Nox", Source: history.SourceWand,
	}))

	resp, err := http.Get(ts.srv.URL + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Casts []history.Cast `json:"casts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Casts, 2)
	assert.Equal(t, "Nox", body.Casts[0].Spell) // newest first

	_, stats := ts.get(t, "/api/history/stats")
	counts := stats["counts"].(map[string]interface{})
	assert.Equal(t, float64(1), counts["Lumos"])
	assert.Equal(t, float64(1), counts["Nox"])
}

func TestEventsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.events.Add(events.EventWandConnect, "", "", true, "MCW-C2BA")

	resp, body := ts.get(t, "/api/events")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	eventList := body["events"].([]interface{})
	require.NotEmpty(t, eventList)
	first := eventList[0].(map[string]interface{})
	assert.Equal(t, string(events.EventWandConnect), first["type"])
}

func TestAuthMeNoAuthMode(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/api/auth/me")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "dev", user["username"])
}

func TestLoginValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.post(t, "/api/auth/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestUnknownPathsReturn404(t *testing.T) {
	ts := newTestServer(t)

	// The daemon is API-only; there is no web UI to fall back to.
	for _, path := range []string{"/", "/index.html", "/static/app.js"} {
		resp, err := http.Get(ts.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestVersionEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/api/system/version")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test", body["version"])
}

func TestTraceWebSocketHandshake(t *testing.T) {
	ts := newTestServer(t)

	// A one-time token is required for the upgrade.
	_, body := ts.get(t, "/api/auth/ws-token")
	token, ok := body["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/wand/trace?ws_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// Without a token the upgrade is rejected.
	noToken := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/wand/trace"
	_, resp2, err := websocket.DefaultDialer.Dial(noToken, nil)
	require.Error(t, err)
	if resp2 != nil {
		assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
		resp2.Body.Close()
	}
}
