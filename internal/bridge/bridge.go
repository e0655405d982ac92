// Package bridge ties the pieces together: it pairs with a wand through
// the Bluetooth proxy, feeds IMU data into the gesture tracker, asks the
// classifier what was drawn and publishes everything to Home Assistant.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wandbridge/internal/ble"
	"wandbridge/internal/config"
	"wandbridge/internal/detector"
	"wandbridge/internal/events"
	"wandbridge/internal/history"
	"wandbridge/internal/mqtt"
	"wandbridge/internal/tracker"
	"wandbridge/internal/wand"
)

// ErrNotConnected is returned for wand operations without a connection.
var ErrNotConnected = errors.New("no wand connected")

const detectTimeout = 10 * time.Second

// Transport is the subset of the proxy the bridge drives.
type Transport interface {
	StartScan() error
	StopScan() error
	Connect(address string) error
	Disconnect(address string) error
	Subscribe(characteristic string) error
	WriteCommand(ctx context.Context, payload []byte) error
}

// StatePublisher pushes wand state onto the MQTT topic tree.
type StatePublisher interface {
	PublishSpell(wandID, spell string) error
	PublishSpellMode(wandID, mode string) error
	PublishBattery(wandID string, level int) error
	PublishButtons(wandID string, state wand.ButtonState) error
	PublishAvailability(wandID string, online bool) error
}

// Discovery announces Home Assistant entities.
type Discovery interface {
	ShouldRepublishDiscovery(entityCount int) bool
	PublishMultipleDiscoveryConfigs(configs []*mqtt.EntityConfig) error
}

// SpellDetector classifies a preprocessed gesture trace.
type SpellDetector interface {
	Detect(ctx context.Context, points []tracker.Point, threshold float32) (*detector.Result, error)
}

// CastRecorder persists detected casts.
type CastRecorder interface {
	Record(ctx context.Context, c *history.Cast) error
}

// WandStore remembers wand identities across restarts.
type WandStore interface {
	SaveWand(info wand.Info) error
}

// Deps are the collaborators the bridge drives. Detector, History,
// Events and Store may be nil; the bridge degrades to wand-native
// detection without persistence.
type Deps struct {
	Transport Transport
	Publisher StatePublisher
	Discovery Discovery
	Detector  SpellDetector
	History   CastRecorder
	Events    *events.Store
	Store     WandStore
}

// Bridge owns the wand session state machine.
type Bridge struct {
	cfg     *config.Config
	log     *logrus.Entry
	deps    Deps
	tracker *tracker.Tracker

	ctx context.Context // set in Start, parent of all session work

	mu         sync.Mutex
	client     *wand.Client
	wandID     string
	names      map[string]string // advertised name by address
	fullTouch  bool
	connCancel context.CancelFunc
	resetTimer *time.Timer
	traceFn    func(points []tracker.Point)
}

// New creates a bridge. Call Bind and Start before use.
func New(cfg *config.Config, deps Deps, log *logrus.Entry) *Bridge {
	return &Bridge{
		cfg:     cfg,
		log:     log,
		deps:    deps,
		tracker: tracker.New(),
		names:   make(map[string]string),
	}
}

// Bind hooks the bridge into the proxy's event callbacks.
func (b *Bridge) Bind(p *ble.Proxy) {
	p.OnAdvertisement = b.HandleAdvertisement
	p.OnConnected = b.HandleConnected
	p.OnDisconnected = b.HandleDisconnected
	p.OnNotify = b.HandleNotify
	p.OnIMU = b.HandleIMU
}

// Start begins scanning for wands. The context bounds all session work
// the bridge spawns.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx
	if err := b.deps.Transport.StartScan(); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	b.log.Info("scanning for wands")
	return nil
}

// HandleAdvertisement reacts to a wand advertisement: the first matching
// wand (or the pinned address, when configured) gets connected.
func (b *Bridge) HandleAdvertisement(address, name string, rssi int) {
	if pin := b.cfg.WandAddress(); pin != "" && pin != address {
		return
	}

	b.mu.Lock()
	if b.client != nil {
		b.mu.Unlock()
		return
	}
	b.names[address] = name
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{
		"address": address,
		"name":    name,
		"rssi":    rssi,
	}).Info("wand discovered")

	if err := b.deps.Transport.StopScan(); err != nil {
		b.log.WithError(err).Warn("failed to stop scan")
	}
	if err := b.deps.Transport.Connect(address); err != nil {
		b.log.WithError(err).Warn("failed to request connection")
	}
}

// HandleConnected sets up the wand session once the proxy reports the
// GATT connection.
func (b *Bridge) HandleConnected(address string) {
	b.mu.Lock()
	name := b.names[address]
	client := wand.NewClient(b.deps.Transport, address, name, b.log)
	b.client = client
	b.wandID = client.Info().Identifier()
	b.fullTouch = false
	connCtx, cancel := context.WithCancel(b.ctx)
	b.connCancel = cancel
	b.mu.Unlock()

	client.OnButtons = b.handleButtons
	client.OnSpell = b.handleWandSpell
	client.OnBattery = b.handleBattery

	for _, char := range []string{wand.NotifyCharUUID, wand.BatteryCharUUID} {
		if err := b.deps.Transport.Subscribe(char); err != nil {
			b.log.WithError(err).WithField("characteristic", char).
				Warn("failed to subscribe")
		}
	}

	go b.initialise(connCtx, client)
}

// initialise reads the wand identity, announces entities and starts the
// keep-alive loop.
func (b *Bridge) initialise(ctx context.Context, client *wand.Client) {
	if err := client.Init(ctx); err != nil {
		b.log.WithError(err).Warn("wand initialisation failed")
	}

	info := client.Info()
	id := info.Identifier()
	b.mu.Lock()
	b.wandID = id
	b.mu.Unlock()

	if b.deps.Store != nil {
		if err := b.deps.Store.SaveWand(info); err != nil {
			b.log.WithError(err).Warn("failed to persist wand identity")
		}
	}

	if b.deps.Discovery != nil {
		entities := mqtt.EntitiesForWand(info)
		if b.deps.Discovery.ShouldRepublishDiscovery(len(entities)) {
			if err := b.deps.Discovery.PublishMultipleDiscoveryConfigs(entities); err != nil {
				b.log.WithError(err).Warn("failed to publish discovery configs")
			}
		}
	}

	b.publish(func() error { return b.deps.Publisher.PublishAvailability(id, true) })
	b.publish(func() error { return b.deps.Publisher.PublishSpell(id, mqtt.SpellStateAwaiting) })
	b.publish(func() error { return b.deps.Publisher.PublishSpellMode(id, mqtt.ModeWand) })

	b.audit(events.EventWandConnect, true, info.Name)

	go b.keepAliveLoop(ctx, client)
}

func (b *Bridge) keepAliveLoop(ctx context.Context, client *wand.Client) {
	interval := b.cfg.KeepAlive()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := client.KeepAlive(ctx); err != nil {
				b.log.WithError(err).Debug("keep-alive failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// HandleDisconnected tears the session down and resumes scanning.
func (b *Bridge) HandleDisconnected(address string) {
	b.mu.Lock()
	if b.client == nil {
		b.mu.Unlock()
		return
	}
	id := b.wandID
	cancel := b.connCancel
	b.client = nil
	b.wandID = ""
	b.connCancel = nil
	b.fullTouch = false
	if b.resetTimer != nil {
		b.resetTimer.Stop()
		b.resetTimer = nil
	}
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if b.tracker.Active() {
		b.tracker.Stop()
	}

	b.log.WithField("address", address).Info("wand disconnected")

	if id != "" {
		// Buttons cannot be pressed on a wand that is gone.
		b.publish(func() error { return b.deps.Publisher.PublishButtons(id, wand.ButtonState{}) })
		b.publish(func() error { return b.deps.Publisher.PublishAvailability(id, false) })
	}
	b.audit(events.EventWandDisconnect, true, address)

	if b.ctx != nil && b.ctx.Err() == nil {
		if err := b.deps.Transport.StartScan(); err != nil {
			b.log.WithError(err).Warn("failed to resume scanning")
		}
	}
}

// HandleNotify routes characteristic notifications to the wand client.
func (b *Bridge) HandleNotify(characteristic string, data []byte) {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return
	}

	switch characteristic {
	case wand.NotifyCharUUID:
		client.HandleNotification(data)
	case wand.BatteryCharUUID:
		if len(data) > 0 {
			client.HandleBattery(int(data[0]))
		}
	}
}

// HandleIMU feeds inertial samples into the tracker. The wand reports
// axes in its own frame; tracking wants the casting frame, so x/y swap
// and x negates.
func (b *Bridge) HandleIMU(samples []ble.IMUSample) {
	if !b.tracker.Active() {
		return
	}
	for _, s := range samples {
		b.tracker.Update(tracker.Sample{
			AX: s.AY, AY: -s.AX, AZ: s.AZ,
			GX: s.GY, GY: -s.GX, GZ: s.GZ,
		})
	}

	b.mu.Lock()
	traceFn := b.traceFn
	b.mu.Unlock()
	if traceFn != nil {
		traceFn(b.tracker.Path())
	}
}

// handleButtons publishes pad state and drives gesture tracking on
// full-touch transitions.
func (b *Bridge) handleButtons(state wand.ButtonState) {
	b.mu.Lock()
	client := b.client
	id := b.wandID
	was := b.fullTouch
	now := state.FullTouch()
	b.fullTouch = now
	b.mu.Unlock()
	if client == nil {
		return
	}

	b.publish(func() error { return b.deps.Publisher.PublishButtons(id, state) })

	switch {
	case now && !was:
		b.tracker.Start()
		b.publish(func() error { return b.deps.Publisher.PublishSpellMode(id, mqtt.ModeServer) })
		if err := client.SetTipLight(b.ctx, b.castingColor(), 0); err != nil {
			b.log.WithError(err).Warn("failed to light casting LED")
		}
	case !now && was:
		if err := client.ClearLights(b.ctx); err != nil {
			b.log.WithError(err).Warn("failed to clear casting LED")
		}
		go b.stopAndDetect(client, id)
	}
}

// stopAndDetect finishes the trace and asks the classifier for a spell.
func (b *Bridge) stopAndDetect(client *wand.Client, id string) {
	points, err := b.tracker.Stop()
	b.publish(func() error { return b.deps.Publisher.PublishSpellMode(id, mqtt.ModeWand) })

	if err != nil {
		b.log.WithError(err).Debug("gesture discarded")
		return
	}
	if b.deps.Detector == nil {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, detectTimeout)
	defer cancel()

	result, err := b.deps.Detector.Detect(ctx, points, b.cfg.DetectionThreshold())
	if err != nil {
		b.log.WithError(err).Warn("spell detection failed")
		b.audit(events.EventDetectionError, false, err.Error())
		return
	}
	if result == nil {
		b.log.Debug("gesture not recognised")
		return
	}

	name := result.Spell.DisplayName()
	b.log.WithFields(logrus.Fields{
		"spell":      name,
		"confidence": result.Confidence,
	}).Info("spell detected")

	b.announceSpell(id, name, history.SourceServer, float64(result.Confidence))

	if err := client.PlayMacro(ctx, wand.BuzzMacro(100)); err != nil {
		b.log.WithError(err).Debug("failed to buzz")
	}
	if b.cfg.PayoffEnabled() {
		if err := client.PlayMacro(ctx, result.Spell.Payoff()); err != nil {
			b.log.WithError(err).Debug("failed to play payoff macro")
		}
	}
}

// handleWandSpell publishes a spell the wand's own firmware recognised.
func (b *Bridge) handleWandSpell(name string) {
	b.mu.Lock()
	id := b.wandID
	b.mu.Unlock()
	if id == "" {
		return
	}

	b.log.WithField("spell", name).Info("wand-native spell cast")
	b.announceSpell(id, name, history.SourceWand, 0)
}

// announceSpell publishes the spell, records it and arms the reset
// timer.
func (b *Bridge) announceSpell(id, name, source string, confidence float64) {
	b.publish(func() error { return b.deps.Publisher.PublishSpell(id, name) })

	if b.deps.History != nil {
		cast := &history.Cast{WandID: id, Spell: name, Source: source, Confidence: confidence}
		if err := b.deps.History.Record(context.Background(), cast); err != nil {
			b.log.WithError(err).Warn("failed to record cast")
		}
	}
	b.audit(events.EventSpellCast, true, name)

	timeout := b.cfg.SpellTimeout()
	if timeout <= 0 {
		return
	}
	b.mu.Lock()
	if b.resetTimer != nil {
		b.resetTimer.Stop()
	}
	b.resetTimer = time.AfterFunc(timeout, func() {
		b.publish(func() error { return b.deps.Publisher.PublishSpell(id, mqtt.SpellStateAwaiting) })
	})
	b.mu.Unlock()
}

func (b *Bridge) handleBattery(level int) {
	b.mu.Lock()
	id := b.wandID
	b.mu.Unlock()
	if id == "" {
		return
	}
	b.publish(func() error { return b.deps.Publisher.PublishBattery(id, level) })
}

func (b *Bridge) castingColor() wand.Color {
	if c, ok := wand.CastingColors[b.cfg.CastingColor()]; ok {
		return c
	}
	return wand.CastingColors[wand.DefaultCastingColor]
}

// publish runs an MQTT publish and logs failures; state publishing is
// best effort while the broker is away.
func (b *Bridge) publish(fn func() error) {
	if b.deps.Publisher == nil {
		return
	}
	if err := fn(); err != nil {
		b.log.WithError(err).Debug("publish failed")
	}
}

func (b *Bridge) audit(t events.EventType, success bool, details string) {
	if b.deps.Events != nil {
		b.deps.Events.Add(t, "", "", success, details)
	}
}

// Wand operations exposed to the HTTP API.

func (b *Bridge) current() (*wand.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil, ErrNotConnected
	}
	return b.client, nil
}

// Connected reports whether a wand session is up.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil
}

// WandInfo returns the connected wand's identity.
func (b *Bridge) WandInfo() (wand.Info, error) {
	client, err := b.current()
	if err != nil {
		return wand.Info{}, err
	}
	return client.Info(), nil
}

// Battery returns the last reported battery percentage.
func (b *Bridge) Battery() (int, error) {
	client, err := b.current()
	if err != nil {
		return 0, err
	}
	return client.Battery(), nil
}

// Mode returns the active detection mode.
func (b *Bridge) Mode() string {
	if b.tracker.Active() {
		return mqtt.ModeServer
	}
	return mqtt.ModeWand
}

// Calibrate recalibrates the wand's touch baseline.
func (b *Bridge) Calibrate(ctx context.Context) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	if err := client.CalibrateButtons(ctx); err != nil {
		b.audit(events.EventCalibration, false, err.Error())
		return err
	}
	b.audit(events.EventCalibration, true, "")
	return nil
}

// Buzz fires the haptic motor.
func (b *Bridge) Buzz(ctx context.Context, ms uint16) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	return client.PlayMacro(ctx, wand.BuzzMacro(ms))
}

// SetLED fades an LED group to a color.
func (b *Bridge) SetLED(ctx context.Context, group wand.LEDGroup, color wand.Color, ms uint16) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	return client.PlayMacro(ctx, wand.LightMacro(group, color, ms))
}

// ClearLights turns every LED group off.
func (b *Bridge) ClearLights(ctx context.Context) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	return client.ClearLights(ctx)
}

// PlayMacro runs raw macro steps on the wand.
func (b *Bridge) PlayMacro(ctx context.Context, steps []byte) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	if err := client.PlayMacro(ctx, append([]byte{wand.CmdMacro}, steps...)); err != nil {
		b.audit(events.EventMacroSent, false, err.Error())
		return err
	}
	b.audit(events.EventMacroSent, true, "")
	return nil
}

// PlaySpellPayoff runs a named spell's payoff effect.
func (b *Bridge) PlaySpellPayoff(ctx context.Context, name string) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	spell, ok := wand.SpellByName(name)
	if !ok {
		return fmt.Errorf("unknown spell %q", name)
	}
	return client.PlayMacro(ctx, spell.Payoff())
}

// Reset restores the wand's factory defaults.
func (b *Bridge) Reset(ctx context.Context) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	b.audit(events.EventWandReset, true, "")
	return client.Reset(ctx)
}

// SetTraceFunc registers a live trace consumer; nil unregisters. The
// function is called from the IMU path with a copy of the current
// gesture trace.
func (b *Bridge) SetTraceFunc(fn func(points []tracker.Point)) {
	b.mu.Lock()
	b.traceFn = fn
	b.mu.Unlock()
}
