package wand

import (
	"fmt"
	"strings"
)

// GATT UUIDs for the wand's vendor service.
const (
	ServiceUUID     = "57420001-587e-48a0-974c-544d6163c577"
	CommandCharUUID = "57420002-587e-48a0-974c-544d6163c577"
	NotifyCharUUID  = "57420003-587e-48a0-974c-544d6163c577"
	BatteryCharUUID = "00002a19-0000-1000-8000-00805f9b34fb"
	NamePrefix      = "MCW-"
	Manufacturer    = "Warner Bros. Entertainment Inc."
)

// Command opcodes written to the command characteristic.
const (
	CmdFirmwareVersion byte = 0x00
	CmdKeepAlive       byte = 0x01
	CmdBoxAddress      byte = 0x09
	CmdWandInfo        byte = 0x0E
	CmdMacro           byte = 0x68
	CmdButtonThreshold byte = 0xDC
	CmdCalibrate       byte = 0xFB
	CmdReset           byte = 0xFF
)

// Wand info subtypes for CmdWandInfo.
const (
	InfoSerialNumber byte = 0x01
	InfoSKU          byte = 0x02
	InfoDeviceID     byte = 0x04
)

// Message opcodes received on the notify characteristic.
const (
	MsgFirmwareVersion byte = 0x00
	MsgBoxAddress      byte = 0x09
	MsgWandInfo        byte = 0x0E
	MsgButtonState     byte = 0x10
	MsgSpellCast       byte = 0x24
	MsgThresholdAck    byte = 0xDD
	MsgCalibrateAck    byte = 0xFB
	MsgFactoryAck      byte = 0xFC
)

// FactoryUnlock is the payload that switches the wand into factory mode,
// enabling raw IMU streaming.
var FactoryUnlock = []byte{0xFE, 0x55, 0xAA}

// responseFor maps command opcodes to the message opcode that acknowledges
// them. Commands not listed here complete as soon as the write succeeds.
var responseFor = map[byte]byte{
	CmdFirmwareVersion: MsgFirmwareVersion,
	CmdBoxAddress:      MsgBoxAddress,
	CmdWandInfo:        MsgWandInfo,
	CmdCalibrate:       MsgCalibrateAck,
}

// DefaultButtonThresholds returns the per-channel touch sensitivity used
// during wand initialisation. Channels 0-3 are the pads, 4-7 their
// reference electrodes.
func DefaultButtonThresholds() []byte {
	t := make([]byte, 8)
	for i := range t {
		if i < 4 {
			t[i] = 5
		} else {
			t[i] = 8
		}
	}
	return t
}

// Message is a decoded notification from the wand.
type Message struct {
	Opcode byte
	Raw    []byte

	// Populated depending on Opcode.
	Firmware   string
	BoxAddress string
	InfoType   byte
	InfoValue  string
	Serial     uint32
	Buttons    ButtonState
	Spell      string
}

// DecodeMessage parses a raw notification payload.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty notification")
	}
	m := &Message{Opcode: data[0], Raw: data}
	switch m.Opcode {
	case MsgFirmwareVersion:
		// Version bytes are decimal components, e.g. [0x00 0x00 0x03] -> "0.3".
		parts := make([]string, len(data)-1)
		for i, b := range data[1:] {
			parts[i] = fmt.Sprintf("%d", b)
		}
		m.Firmware = strings.Join(parts, ".")
	case MsgBoxAddress:
		if len(data) < 7 {
			return nil, fmt.Errorf("box address message too short: %d bytes", len(data))
		}
		// Bytes arrive in little-endian order, so the MAC reads back to front.
		parts := make([]string, 6)
		for i := 0; i < 6; i++ {
			parts[i] = fmt.Sprintf("%02X", data[6-i])
		}
		m.BoxAddress = strings.Join(parts, ":")
	case MsgWandInfo:
		if len(data) < 2 {
			return nil, fmt.Errorf("wand info message too short: %d bytes", len(data))
		}
		m.InfoType = data[1]
		switch m.InfoType {
		case InfoSerialNumber:
			if len(data) < 6 {
				return nil, fmt.Errorf("serial number message too short: %d bytes", len(data))
			}
			m.Serial = uint32(data[2]) | uint32(data[3])<<8 | uint32(data[4])<<16 | uint32(data[5])<<24
			m.InfoValue = fmt.Sprintf("%d", m.Serial)
		case InfoSKU, InfoDeviceID:
			m.InfoValue = asciiTrim(data[2:])
		default:
			m.InfoValue = asciiTrim(data[2:])
		}
	case MsgButtonState:
		if len(data) < 2 {
			return nil, fmt.Errorf("button state message too short: %d bytes", len(data))
		}
		m.Buttons = ButtonStateFromByte(data[1])
	case MsgSpellCast:
		if len(data) < 4 {
			return nil, fmt.Errorf("spell cast message too short: %d bytes", len(data))
		}
		n := int(data[3])
		if len(data) < 4+n {
			return nil, fmt.Errorf("spell cast message truncated: want %d name bytes, have %d", n, len(data)-4)
		}
		name := asciiTrim(data[4 : 4+n])
		m.Spell = strings.ReplaceAll(name, "_", " ")
	case MsgThresholdAck, MsgCalibrateAck, MsgFactoryAck:
		// Bare acknowledgements, no payload to decode.
	default:
		return nil, fmt.Errorf("unknown message opcode 0x%02X", m.Opcode)
	}
	return m, nil
}

// asciiTrim strips NUL padding from fixed-width string fields.
func asciiTrim(b []byte) string {
	return strings.Trim(string(b), "\x00")
}

// ResponseOpcode returns the notification opcode that completes the given
// command, if any.
func ResponseOpcode(cmd byte) (byte, bool) {
	op, ok := responseFor[cmd]
	return op, ok
}
