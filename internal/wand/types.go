package wand

// Type identifies the wand model, derived from the device ID string.
type Type string

const (
	TypeDefiant     Type = "DEFIANT"
	TypeLoyal       Type = "LOYAL"
	TypeHeroic      Type = "HEROIC"
	TypeHonourable  Type = "HONOURABLE"
	TypeAdventurous Type = "ADVENTUROUS"
	TypeWise        Type = "WISE"
	TypeUnknown     Type = "UNKNOWN"
)

// typeSuffixes maps the two-letter device ID suffix to a wand type.
// The suffix is obtained by dropping the last character of the device ID
// and taking the last two remaining characters, e.g. "WBMC22G1SHNW" -> "HN".
var typeSuffixes = map[string]Type{
	"DF": TypeDefiant,
	"LY": TypeLoyal,
	"HR": TypeHeroic,
	"HN": TypeHonourable,
	"AV": TypeAdventurous,
	"WS": TypeWise,
}

// TypeFromDeviceID extracts the wand type from a device ID string.
func TypeFromDeviceID(deviceID string) Type {
	if len(deviceID) < 3 {
		return TypeUnknown
	}
	suffix := deviceID[:len(deviceID)-1]
	suffix = suffix[len(suffix)-2:]
	if t, ok := typeSuffixes[suffix]; ok {
		return t
	}
	return TypeUnknown
}

// BatteryState is a coarse battery level classification.
type BatteryState string

const (
	BatteryCritical BatteryState = "Critical" // 0-15
	BatteryLow      BatteryState = "Low"      // 16-33
	BatteryMedium   BatteryState = "Medium"   // 34-55
	BatteryHigh     BatteryState = "High"     // 56-99
	BatteryCharging BatteryState = "Charging" // 100
)

// BatteryStates lists all states in ascending order of charge.
var BatteryStates = []BatteryState{
	BatteryCritical, BatteryLow, BatteryMedium, BatteryHigh, BatteryCharging,
}

// BatteryStateFromLevel classifies a battery percentage.
func BatteryStateFromLevel(level int) BatteryState {
	switch {
	case level >= 100:
		return BatteryCharging
	case level >= 56:
		return BatteryHigh
	case level >= 34:
		return BatteryMedium
	case level >= 16:
		return BatteryLow
	default:
		return BatteryCritical
	}
}

// ButtonState represents the capacitive touch pads on the wand grip.
type ButtonState struct {
	Pad1 bool `json:"pad1"`
	Pad2 bool `json:"pad2"`
	Pad3 bool `json:"pad3"`
	Pad4 bool `json:"pad4"`
}

// ButtonStateFromByte decodes the button bitmask. The pad states live in
// the low four bits of the payload byte (MSB-first bit order).
func ButtonStateFromByte(b byte) ButtonState {
	return ButtonState{
		Pad1: b&0x08 != 0,
		Pad2: b&0x04 != 0,
		Pad3: b&0x02 != 0,
		Pad4: b&0x01 != 0,
	}
}

// FullTouch reports whether all four pads are touched at once. The wand
// starts gesture tracking on this transition.
func (s ButtonState) FullTouch() bool {
	return s.Pad1 && s.Pad2 && s.Pad3 && s.Pad4
}

// Info holds the static identity of a connected wand.
type Info struct {
	Address         string `json:"address"`
	Name            string `json:"name"`
	DeviceID        string `json:"deviceId"`
	SerialNumber    string `json:"serialNumber"`
	SKU             string `json:"sku"`
	FirmwareVersion string `json:"firmwareVersion"`
	BoxAddress      string `json:"boxAddress"`
	Type            Type   `json:"type"`
}

// Identifier returns the short identifier used in entity IDs: the last
// eight hex digits of the MAC address without separators.
func (i Info) Identifier() string {
	addr := make([]byte, 0, len(i.Address))
	for j := 0; j < len(i.Address); j++ {
		if i.Address[j] != ':' {
			addr = append(addr, i.Address[j])
		}
	}
	if len(addr) > 8 {
		addr = addr[len(addr)-8:]
	}
	for j, c := range addr {
		if c >= 'A' && c <= 'F' {
			addr[j] = c + ('a' - 'A')
		}
	}
	return string(addr)
}
