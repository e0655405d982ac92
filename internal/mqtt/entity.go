package mqtt

import (
	"fmt"

	"wandbridge/internal/wand"
)

// Home Assistant component types used by the bridge.
const (
	ComponentSensor       = "sensor"
	ComponentBinarySensor = "binary_sensor"
)

// EntityConfig describes one Home Assistant entity for MQTT discovery.
type EntityConfig struct {
	Component string // sensor, binary_sensor
	ObjectID  string // globally unique, e.g. mcw_3012abcd_spell
	Name      string
	Icon      string

	Unit        string
	DeviceClass string
	StateClass  string
	Options     []string // enum sensors only
	PayloadOn   string   // binary sensors with non-default payloads
	PayloadOff  string

	StateTopic        string
	AttributesTopic   string
	AvailabilityTopic string

	DeviceInfo *DeviceInfo
}

// DeviceInfo groups all wand entities under one device in Home Assistant.
type DeviceInfo struct {
	Identifiers  []string
	Name         string
	Model        string
	Manufacturer string
	SWVersion    string
	SerialNumber string
}

// Topic layout below the configured prefix, one subtree per wand.
func spellTopic(id string) string        { return "wand/" + id + "/spell" }
func spellAttrsTopic(id string) string   { return "wand/" + id + "/spell/attributes" }
func modeTopic(id string) string         { return "wand/" + id + "/spell_mode" }
func batteryTopic(id string) string      { return "wand/" + id + "/battery" }
func batteryStateTopic(id string) string { return "wand/" + id + "/battery_state" }
func buttonTopic(id string, n int) string {
	return fmt.Sprintf("wand/%s/button/%d", id, n)
}
func fullTouchTopic(id string) string    { return "wand/" + id + "/button/all" }
func availabilityTopic(id string) string { return "wand/" + id + "/availability" }

// deviceFor builds the shared HA device block from the wand identity.
func deviceFor(info wand.Info) *DeviceInfo {
	id := info.Identifier()
	name := info.Name
	if name == "" {
		name = "Magic Caster Wand"
	}
	return &DeviceInfo{
		Identifiers:  []string{"mcw_" + id},
		Name:         name,
		Model:        string(info.Type),
		Manufacturer: wand.Manufacturer,
		SWVersion:    info.FirmwareVersion,
		SerialNumber: info.SerialNumber,
	}
}

// EntitiesForWand returns the discovery configs for every entity the
// bridge exposes for one wand.
func EntitiesForWand(info wand.Info) []*EntityConfig {
	id := info.Identifier()
	device := deviceFor(info)
	avail := availabilityTopic(id)

	batteryStates := make([]string, len(wand.BatteryStates))
	for i, s := range wand.BatteryStates {
		batteryStates[i] = string(s)
	}

	entities := []*EntityConfig{
		{
			Component:         ComponentSensor,
			ObjectID:          fmt.Sprintf("mcw_%s_spell", id),
			Name:              "Spell",
			Icon:              "mdi:magic-staff",
			StateTopic:        spellTopic(id),
			AttributesTopic:   spellAttrsTopic(id),
			AvailabilityTopic: avail,
			DeviceInfo:        device,
		},
		{
			Component:         ComponentSensor,
			ObjectID:          fmt.Sprintf("mcw_%s_spell_mode", id),
			Name:              "Spell Detection Mode",
			Icon:              "mdi:radar",
			StateTopic:        modeTopic(id),
			AvailabilityTopic: avail,
			DeviceInfo:        device,
		},
		{
			Component:         ComponentSensor,
			ObjectID:          fmt.Sprintf("mcw_%s_battery", id),
			Name:              "Battery",
			Unit:              "%",
			DeviceClass:       "battery",
			StateClass:        "measurement",
			StateTopic:        batteryTopic(id),
			AvailabilityTopic: avail,
			DeviceInfo:        device,
		},
		{
			Component:         ComponentSensor,
			ObjectID:          fmt.Sprintf("mcw_%s_battery_state", id),
			Name:              "Battery State",
			DeviceClass:       "enum",
			Options:           batteryStates,
			StateTopic:        batteryStateTopic(id),
			AvailabilityTopic: avail,
			DeviceInfo:        device,
		},
		{
			Component:         ComponentBinarySensor,
			ObjectID:          fmt.Sprintf("mcw_%s_button_all", id),
			Name:              "Full Touch",
			StateTopic:        fullTouchTopic(id),
			AvailabilityTopic: avail,
			DeviceInfo:        device,
		},
	}

	for n := 1; n <= 4; n++ {
		entities = append(entities, &EntityConfig{
			Component:         ComponentBinarySensor,
			ObjectID:          fmt.Sprintf("mcw_%s_button_%d", id, n),
			Name:              fmt.Sprintf("Pad %d", n),
			StateTopic:        buttonTopic(id, n),
			AvailabilityTopic: avail,
			DeviceInfo:        device,
		})
	}

	entities = append(entities, &EntityConfig{
		Component:   ComponentBinarySensor,
		ObjectID:    fmt.Sprintf("mcw_%s_connected", id),
		Name:        "Connected",
		DeviceClass: "connectivity",
		StateTopic:  availabilityTopic(id),
		PayloadOn:   PayloadOnline,
		PayloadOff:  PayloadOffline,
		DeviceInfo:  device,
	})

	return entities
}
