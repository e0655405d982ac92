package wand

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

const (
	responseTimeout = 5 * time.Second
	writeRetries    = 3
	retryInterval   = 500 * time.Millisecond
)

// CommandWriter delivers a command payload to the wand's command
// characteristic. Implementations are expected to be safe for concurrent
// use.
type CommandWriter interface {
	WriteCommand(ctx context.Context, payload []byte) error
}

// Client drives a single connected wand: it issues commands, matches
// request/response pairs on the notify characteristic and fans incoming
// events out to the registered callbacks.
type Client struct {
	log    *logrus.Entry
	writer CommandWriter

	mu      sync.Mutex
	info    Info
	battery int

	waitMu   sync.Mutex
	waiting  bool
	waitFor  byte
	waitDone chan struct{}

	OnSpell   func(name string)
	OnButtons func(state ButtonState)
	OnBattery func(level int)
}

// NewClient creates a client for one wand connection.
func NewClient(writer CommandWriter, address, name string, log *logrus.Entry) *Client {
	return &Client{
		log:    log,
		writer: writer,
		info:   Info{Address: address, Name: name, Type: TypeUnknown},
	}
}

// Info returns a snapshot of the wand identity gathered so far.
func (c *Client) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Battery returns the last reported battery percentage.
func (c *Client) Battery() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.battery
}

// HandleBattery processes a battery characteristic notification.
func (c *Client) HandleBattery(level int) {
	c.mu.Lock()
	c.battery = level
	c.mu.Unlock()
	if c.OnBattery != nil {
		c.OnBattery(level)
	}
}

// HandleNotification processes a raw payload from the notify
// characteristic.
func (c *Client) HandleNotification(data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		c.log.WithError(err).Debug("dropping undecodable notification")
		return
	}

	switch msg.Opcode {
	case MsgFirmwareVersion:
		c.mu.Lock()
		c.info.FirmwareVersion = msg.Firmware
		c.mu.Unlock()
	case MsgBoxAddress:
		c.mu.Lock()
		c.info.BoxAddress = msg.BoxAddress
		c.mu.Unlock()
	case MsgWandInfo:
		c.mu.Lock()
		switch msg.InfoType {
		case InfoSerialNumber:
			c.info.SerialNumber = msg.InfoValue
		case InfoSKU:
			c.info.SKU = msg.InfoValue
		case InfoDeviceID:
			c.info.DeviceID = msg.InfoValue
			c.info.Type = TypeFromDeviceID(msg.InfoValue)
		}
		c.mu.Unlock()
	case MsgButtonState:
		if c.OnButtons != nil {
			c.OnButtons(msg.Buttons)
		}
	case MsgSpellCast:
		if msg.Spell != "" && c.OnSpell != nil {
			c.OnSpell(msg.Spell)
		}
	}

	c.completeWait(msg.Opcode)
}

func (c *Client) armWait(opcode byte) chan struct{} {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	c.waiting = true
	c.waitFor = opcode
	c.waitDone = make(chan struct{})
	return c.waitDone
}

func (c *Client) disarmWait() {
	c.waitMu.Lock()
	c.waiting = false
	c.waitMu.Unlock()
}

func (c *Client) completeWait(opcode byte) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	if c.waiting && c.waitFor == opcode {
		c.waiting = false
		close(c.waitDone)
	}
}

// WriteCommand sends a command packet. Commands with a known response
// opcode block until the wand acknowledges or the timeout elapses; the
// rest are fire-and-forget. Failed writes are retried.
func (c *Client) WriteCommand(ctx context.Context, packet []byte) error {
	if len(packet) == 0 {
		return fmt.Errorf("empty command packet")
	}
	cmd := packet[0]
	respOp, expectsResponse := ResponseOpcode(cmd)

	attempt := func() error {
		var done chan struct{}
		if expectsResponse {
			done = c.armWait(respOp)
			defer c.disarmWait()
		}

		if err := c.writer.WriteCommand(ctx, packet); err != nil {
			return fmt.Errorf("write command 0x%02X: %w", cmd, err)
		}
		if !expectsResponse {
			return nil
		}

		select {
		case <-done:
			return nil
		case <-time.After(responseTimeout):
			return fmt.Errorf("command 0x%02X: no response within %s", cmd, responseTimeout)
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), writeRetries-1)
	return backoff.Retry(attempt, backoff.WithContext(policy, ctx))
}

// Init applies the default touch thresholds and reads back the wand's
// identity. It is called once per connection before events are consumed.
func (c *Client) Init(ctx context.Context) error {
	for i, threshold := range DefaultButtonThresholds() {
		if err := c.WriteCommand(ctx, []byte{CmdButtonThreshold, byte(i), threshold}); err != nil {
			return fmt.Errorf("set button threshold %d: %w", i, err)
		}
	}

	queries := [][]byte{
		{CmdFirmwareVersion},
		{CmdBoxAddress},
		{CmdWandInfo, InfoSerialNumber},
		{CmdWandInfo, InfoSKU},
		{CmdWandInfo, InfoDeviceID},
	}
	for _, q := range queries {
		if err := c.WriteCommand(ctx, q); err != nil {
			return fmt.Errorf("query wand info: %w", err)
		}
	}

	info := c.Info()
	c.log.WithFields(logrus.Fields{
		"device_id": info.DeviceID,
		"type":      info.Type,
		"firmware":  info.FirmwareVersion,
	}).Info("wand initialised")
	return nil
}

// KeepAlive pings the wand so it does not drop the connection.
func (c *Client) KeepAlive(ctx context.Context) error {
	return c.WriteCommand(ctx, []byte{CmdKeepAlive})
}

// CalibrateButtons recalibrates the capacitive touch baseline. The wand
// requires factory mode and a settling pause around the calibration.
func (c *Client) CalibrateButtons(ctx context.Context) error {
	if err := sleepCtx(ctx, time.Second); err != nil {
		return err
	}
	if err := c.WriteCommand(ctx, FactoryUnlock); err != nil {
		return fmt.Errorf("factory unlock: %w", err)
	}
	if err := c.WriteCommand(ctx, []byte{CmdCalibrate}); err != nil {
		return fmt.Errorf("calibrate baseline: %w", err)
	}
	return sleepCtx(ctx, time.Second)
}

// Reset restores the wand's default configuration. The wand usually
// disconnects afterwards.
func (c *Client) Reset(ctx context.Context) error {
	c.log.Warn("resetting wand to defaults")
	return c.WriteCommand(ctx, []byte{CmdReset})
}

// PlayMacro runs an encoded light/haptics macro on the wand.
func (c *Client) PlayMacro(ctx context.Context, macro []byte) error {
	return c.WriteCommand(ctx, macro)
}

// SetTipLight fades the tip LED to a color.
func (c *Client) SetTipLight(ctx context.Context, color Color, ms uint16) error {
	return c.PlayMacro(ctx, LightMacro(LEDTip, color, ms))
}

// ClearLights turns off all LED groups.
func (c *Client) ClearLights(ctx context.Context) error {
	return c.PlayMacro(ctx, NewMacro().ClearAll().Bytes())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
