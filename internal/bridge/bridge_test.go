package bridge

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wandbridge/internal/config"
	"wandbridge/internal/detector"
	"wandbridge/internal/events"
	"wandbridge/internal/history"
	"wandbridge/internal/logging"
	"wandbridge/internal/mqtt"
	"wandbridge/internal/tracker"
	"wandbridge/internal/wand"
)

// fakeTransport records proxy requests and answers identity queries the
// way a wand would, by feeding responses back through HandleNotify.
type fakeTransport struct {
	mu         sync.Mutex
	bridge     *Bridge
	scans      int
	stops      int
	connects   []string
	subscribed []string
	writes     [][]byte
}

func (f *fakeTransport) StartScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	return nil
}

func (f *fakeTransport) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeTransport) Connect(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, address)
	return nil
}

func (f *fakeTransport) Disconnect(string) error { return nil }

func (f *fakeTransport) Subscribe(characteristic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, characteristic)
	return nil
}

func (f *fakeTransport) WriteCommand(_ context.Context, payload []byte) error {
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), payload...))
	f.mu.Unlock()

	if reply := replyFor(payload); reply != nil {
		f.bridge.HandleNotify(wand.NotifyCharUUID, reply)
	}
	return nil
}

func (f *fakeTransport) commandWrites() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

func replyFor(packet []byte) []byte {
	switch packet[0] {
	case wand.CmdFirmwareVersion:
		return []byte{wand.MsgFirmwareVersion, 0, 3}
	case wand.CmdBoxAddress:
		return []byte{wand.MsgBoxAddress, 0xCD, 0xAB, 0x12, 0x30, 0x4E, 0xC0}
	case wand.CmdWandInfo:
		switch packet[1] {
		case wand.InfoSerialNumber:
			return []byte{wand.MsgWandInfo, wand.InfoSerialNumber, 0x39, 0x30, 0, 0}
		case wand.InfoSKU:
			return append([]byte{wand.MsgWandInfo, wand.InfoSKU}, []byte("SKU1")...)
		case wand.InfoDeviceID:
			return append([]byte{wand.MsgWandInfo, wand.InfoDeviceID}, []byte("WBMC22G1SHNW")...)
		}
	case wand.CmdCalibrate:
		return []byte{wand.MsgCalibrateAck}
	}
	return nil
}

type publishedState struct {
	spells       []string
	modes        []string
	batteries    []int
	buttons      []wand.ButtonState
	availability []bool
}

type fakePublisher struct {
	mu    sync.Mutex
	state publishedState
}

func (f *fakePublisher) PublishSpell(_, spell string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.spells = append(f.state.spells, spell)
	return nil
}

func (f *fakePublisher) PublishSpellMode(_, mode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.modes = append(f.state.modes, mode)
	return nil
}

func (f *fakePublisher) PublishBattery(_ string, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.batteries = append(f.state.batteries, level)
	return nil
}

func (f *fakePublisher) PublishButtons(_ string, state wand.ButtonState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.buttons = append(f.state.buttons, state)
	return nil
}

func (f *fakePublisher) PublishAvailability(_ string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.availability = append(f.state.availability, online)
	return nil
}

func (f *fakePublisher) snapshot() publishedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.spells = append([]string(nil), f.state.spells...)
	s.modes = append([]string(nil), f.state.modes...)
	s.availability = append([]bool(nil), f.state.availability...)
	s.buttons = append([]wand.ButtonState(nil), f.state.buttons...)
	s.batteries = append([]int(nil), f.state.batteries...)
	return s
}

type fakeDiscovery struct {
	mu        sync.Mutex
	published int
}

func (f *fakeDiscovery) ShouldRepublishDiscovery(int) bool { return true }

func (f *fakeDiscovery) PublishMultipleDiscoveryConfigs(configs []*mqtt.EntityConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = len(configs)
	return nil
}

type fakeDetector struct {
	mu     sync.Mutex
	result *detector.Result
	called bool
}

func (f *fakeDetector) Detect(context.Context, []tracker.Point, float32) (*detector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	return f.result, nil
}

func (f *fakeDetector) wasCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

type memWandStore struct {
	mu    sync.Mutex
	saved []wand.Info
}

func (m *memWandStore) SaveWand(info wand.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, info)
	return nil
}

type recordedCasts struct {
	mu    sync.Mutex
	casts []history.Cast
}

func (r *recordedCasts) Record(_ context.Context, c *history.Cast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casts = append(r.casts, *c)
	return nil
}

type testHarness struct {
	bridge    *Bridge
	transport *fakeTransport
	publisher *fakePublisher
	discovery *fakeDiscovery
	detector  *fakeDetector
	store     *memWandStore
	casts     *recordedCasts
	events    *events.Store
}

func newHarness(t *testing.T, extraConfig string) *testHarness {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wandbridge.yaml")
	if extraConfig != "" {
		require.NoError(t, writeFile(path, extraConfig))
	}
	cfg, err := config.Load(path)
	require.NoError(t, err)

	h := &testHarness{
		transport: &fakeTransport{},
		publisher: &fakePublisher{},
		discovery: &fakeDiscovery{},
		detector:  &fakeDetector{},
		store:     &memWandStore{},
		casts:     &recordedCasts{},
		events:    events.NewStore(100),
	}

	log := logging.NewLogrus("error", io.Discard).Get("bridge-test")
	h.bridge = New(cfg, Deps{
		Transport: h.transport,
		Publisher: h.publisher,
		Discovery: h.discovery,
		Detector:  h.detector,
		History:   h.casts,
		Events:    h.events,
		Store:     h.store,
	}, log)
	h.transport.bridge = h.bridge

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, h.bridge.Start(ctx))
	return h
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

// connect drives the harness through discovery and session setup.
func (h *testHarness) connect(t *testing.T) {
	t.Helper()
	h.bridge.HandleAdvertisement("C0:4E:30:12:AB:CD", "MCW-ABCD", -42)
	h.bridge.HandleConnected("C0:4E:30:12:AB:CD")

	require.Eventually(t, func() bool {
		s := h.publisher.snapshot()
		return len(s.availability) > 0 && s.availability[0]
	}, 2*time.Second, 10*time.Millisecond, "session setup did not finish")
}

func TestConnectFlow(t *testing.T) {
	h := newHarness(t, "")
	h.connect(t)

	h.transport.mu.Lock()
	assert.Equal(t, 1, h.transport.stops)
	assert.Equal(t, []string{"C0:4E:30:12:AB:CD"}, h.transport.connects)
	assert.ElementsMatch(t,
		[]string{wand.NotifyCharUUID, wand.BatteryCharUUID},
		h.transport.subscribed)
	h.transport.mu.Unlock()

	assert.True(t, h.bridge.Connected())

	info, err := h.bridge.WandInfo()
	require.NoError(t, err)
	assert.Equal(t, "WBMC22G1SHNW", info.DeviceID)
	assert.Equal(t, wand.TypeHonourable, info.Type)
	assert.Equal(t, "0.3", info.FirmwareVersion)
	assert.Equal(t, "12345", info.SerialNumber)

	s := h.publisher.snapshot()
	assert.Equal(t, []string{mqtt.SpellStateAwaiting}, s.spells)
	assert.Equal(t, []string{mqtt.ModeWand}, s.modes)

	h.discovery.mu.Lock()
	assert.Equal(t, 10, h.discovery.published)
	h.discovery.mu.Unlock()

	h.store.mu.Lock()
	require.Len(t, h.store.saved, 1)
	assert.Equal(t, "3012abcd", h.store.saved[0].Identifier())
	h.store.mu.Unlock()
}

func TestIgnoresAdvertisementsWhilePinned(t *testing.T) {
	h := newHarness(t, "proxy:\n  wand_address: \"AA:BB:CC:DD:EE:FF\"\n")

	h.bridge.HandleAdvertisement("C0:4E:30:12:AB:CD", "MCW-ABCD", -42)

	h.transport.mu.Lock()
	assert.Empty(t, h.transport.connects)
	h.transport.mu.Unlock()
}

func TestFullTouchStartsTracking(t *testing.T) {
	h := newHarness(t, "")
	h.connect(t)
	before := len(h.transport.commandWrites())

	h.bridge.HandleNotify(wand.NotifyCharUUID, []byte{wand.MsgButtonState, 0x0F})

	assert.True(t, h.bridge.tracker.Active())
	assert.Equal(t, mqtt.ModeServer, h.bridge.Mode())

	s := h.publisher.snapshot()
	require.NotEmpty(t, s.buttons)
	assert.True(t, s.buttons[len(s.buttons)-1].FullTouch())
	assert.Contains(t, s.modes, mqtt.ModeServer)

	// Casting LED macro goes out: 0x68 0x22 <tip> <white rgb>.
	writes := h.transport.commandWrites()
	require.Greater(t, len(writes), before)
	led := writes[len(writes)-1]
	assert.Equal(t, []byte{wand.CmdMacro, 0x22, 0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x00}, led)
}

func TestReleaseStopsTrackingAndDiscardsShortGesture(t *testing.T) {
	h := newHarness(t, "")
	h.connect(t)

	h.bridge.HandleNotify(wand.NotifyCharUUID, []byte{wand.MsgButtonState, 0x0F})
	h.bridge.HandleNotify(wand.NotifyCharUUID, []byte{wand.MsgButtonState, 0x00})

	require.Eventually(t, func() bool {
		return h.bridge.Mode() == mqtt.ModeWand
	}, 2*time.Second, 10*time.Millisecond)

	// An empty trace never reaches the classifier.
	assert.False(t, h.detector.wasCalled())
	assert.Contains(t, h.publisher.snapshot().modes, mqtt.ModeWand)
}

func TestWandNativeSpellCast(t *testing.T) {
	h := newHarness(t, "")
	h.connect(t)

	h.bridge.HandleNotify(wand.NotifyCharUUID,
		[]byte{wand.MsgSpellCast, 0, 0, 5, 'l', 'u', 'm', 'o', 's'})

	s := h.publisher.snapshot()
	assert.Contains(t, s.spells, "lumos")

	h.casts.mu.Lock()
	require.Len(t, h.casts.casts, 1)
	assert.Equal(t, "lumos", h.casts.casts[0].Spell)
	assert.Equal(t, history.SourceWand, h.casts.casts[0].Source)
	h.casts.mu.Unlock()

	last := h.events.GetLast(1)
	require.Len(t, last, 1)
	assert.Equal(t, events.EventSpellCast, last[0].Type)
}

func TestSpellResetTimeout(t *testing.T) {
	h := newHarness(t, "bridge:\n  spell_timeout: \"20ms\"\n")
	h.connect(t)

	h.bridge.HandleNotify(wand.NotifyCharUUID,
		[]byte{wand.MsgSpellCast, 0, 0, 3, 'n', 'o', 'x'})

	require.Eventually(t, func() bool {
		s := h.publisher.snapshot().spells
		return len(s) > 0 && s[len(s)-1] == mqtt.SpellStateAwaiting
	}, 2*time.Second, 5*time.Millisecond, "spell did not reset to awaiting")
}

func TestBatteryNotification(t *testing.T) {
	h := newHarness(t, "")
	h.connect(t)

	h.bridge.HandleNotify(wand.BatteryCharUUID, []byte{85})

	assert.Equal(t, []int{85}, h.publisher.snapshot().batteries)

	level, err := h.bridge.Battery()
	require.NoError(t, err)
	assert.Equal(t, 85, level)
}

func TestDisconnectTearsDownSession(t *testing.T) {
	h := newHarness(t, "")
	h.connect(t)

	h.transport.mu.Lock()
	scansBefore := h.transport.scans
	h.transport.mu.Unlock()

	h.bridge.HandleDisconnected("C0:4E:30:12:AB:CD")

	assert.False(t, h.bridge.Connected())

	s := h.publisher.snapshot()
	assert.False(t, s.availability[len(s.availability)-1])
	assert.False(t, s.buttons[len(s.buttons)-1].FullTouch())

	// Scanning resumes for the next wand.
	h.transport.mu.Lock()
	assert.Greater(t, h.transport.scans, scansBefore)
	h.transport.mu.Unlock()

	_, err := h.bridge.WandInfo()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestWandOpsRequireConnection(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	assert.ErrorIs(t, h.bridge.Calibrate(ctx), ErrNotConnected)
	assert.ErrorIs(t, h.bridge.Buzz(ctx, 100), ErrNotConnected)
	assert.ErrorIs(t, h.bridge.Reset(ctx), ErrNotConnected)
	assert.ErrorIs(t, h.bridge.PlaySpellPayoff(ctx, "lumos"), ErrNotConnected)
}

func TestPlaySpellPayoffUnknownSpell(t *testing.T) {
	h := newHarness(t, "")
	h.connect(t)

	err := h.bridge.PlaySpellPayoff(context.Background(), "abracadabra")
	assert.Error(t, err)
}

func TestCalibrate(t *testing.T) {
	h := newHarness(t, "")
	h.connect(t)

	require.NoError(t, h.bridge.Calibrate(context.Background()))

	var sawUnlock, sawCalibrate bool
	for _, w := range h.transport.commandWrites() {
		if len(w) == 3 && w[0] == 0xFE && w[1] == 0x55 && w[2] == 0xAA {
			sawUnlock = true
		}
		if len(w) == 1 && w[0] == wand.CmdCalibrate {
			sawCalibrate = true
		}
	}
	assert.True(t, sawUnlock, "factory unlock not sent")
	assert.True(t, sawCalibrate, "calibrate command not sent")
}
