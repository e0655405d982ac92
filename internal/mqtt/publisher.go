package mqtt

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"wandbridge/internal/wand"
)

// SpellStateAwaiting is the idle state of the spell sensor between casts.
const SpellStateAwaiting = "awaiting"

// Detection modes reported by the spell mode sensor.
const (
	ModeWand   = "Wand"
	ModeServer = "Server"
)

// Publisher pushes wand state onto the per-wand topic subtree.
type Publisher struct {
	client *Client
	log    *logrus.Entry
	now    func() time.Time
}

// NewPublisher creates a new Publisher instance
func NewPublisher(client *Client, log *logrus.Entry) *Publisher {
	return &Publisher{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// PublishSpell publishes the spell sensor state plus its attributes; the
// last_updated attribute changes on every cast so automations can react
// to repeated identical spells.
func (p *Publisher) PublishSpell(wandID, spell string) error {
	if err := p.client.Publish(spellTopic(wandID), spell); err != nil {
		return err
	}

	attrs, err := json.Marshal(map[string]interface{}{
		"last_updated": p.now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return p.client.Publish(spellAttrsTopic(wandID), attrs)
}

// PublishSpellMode publishes the detection mode sensor state.
func (p *Publisher) PublishSpellMode(wandID, mode string) error {
	return p.client.Publish(modeTopic(wandID), mode)
}

// PublishBattery publishes the battery level and its derived state.
func (p *Publisher) PublishBattery(wandID string, level int) error {
	if err := p.client.Publish(batteryTopic(wandID), strconv.Itoa(level)); err != nil {
		return err
	}
	state := wand.BatteryStateFromLevel(level)
	return p.client.Publish(batteryStateTopic(wandID), string(state))
}

// PublishButtons publishes the four pad binary sensors and the combined
// full-touch sensor.
func (p *Publisher) PublishButtons(wandID string, state wand.ButtonState) error {
	pads := []bool{state.Pad1, state.Pad2, state.Pad3, state.Pad4}
	for i, pressed := range pads {
		if err := p.client.Publish(buttonTopic(wandID, i+1), onOff(pressed)); err != nil {
			return err
		}
	}
	return p.client.Publish(fullTouchTopic(wandID), onOff(state.FullTouch()))
}

// PublishAvailability publishes online/offline, retained so Home
// Assistant sees the last state after its own restart.
func (p *Publisher) PublishAvailability(wandID string, online bool) error {
	payload := PayloadOffline
	if online {
		payload = PayloadOnline
	}
	return p.client.PublishWithQoS(availabilityTopic(wandID), 1, true, payload)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
