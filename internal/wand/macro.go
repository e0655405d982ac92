package wand

import (
	"encoding/binary"
	"sort"
)

// Macro opcodes understood by the wand's light/haptics engine.
const (
	opDelay           byte = 0x10
	opWaitBusy        byte = 0x11
	opClearAll        byte = 0x20
	opLightTransition byte = 0x22
	opHapticBuzz      byte = 0x50
	opSetLoops        byte = 0x80
	opSetLoop         byte = 0x81
)

// LEDGroup addresses one of the wand's four lighting zones.
type LEDGroup byte

const (
	LEDTip      LEDGroup = 0
	LEDMidUpper LEDGroup = 1
	LEDMidLower LEDGroup = 2
	LEDPommel   LEDGroup = 3
)

// Color is an RGB triple for the wand LEDs.
type Color struct {
	R, G, B byte
}

var (
	ColorOff  = Color{}
	ColorBlue = Color{R: 0x00, G: 0x00, B: 0xFF}
)

// DefaultCastingColor is the tip color shown while a gesture is traced.
const DefaultCastingColor = "White"

// CastingColors are the selectable casting LED colors.
var CastingColors = map[string]Color{
	"White":   {R: 255, G: 255, B: 255},
	"Red":     {R: 255},
	"Green":   {G: 255},
	"Blue":    {B: 255},
	"Yellow":  {R: 255, G: 255},
	"Cyan":    {G: 255, B: 255},
	"Magenta": {R: 255, B: 255},
	"Orange":  {R: 255, G: 165},
	"Purple":  {R: 128, B: 128},
}

// CastingColorNames returns the selectable color names, default first.
func CastingColorNames() []string {
	names := make([]string, 0, len(CastingColors))
	names = append(names, DefaultCastingColor)
	rest := make([]string, 0, len(CastingColors)-1)
	for name := range CastingColors {
		if name != DefaultCastingColor {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Macro builds a byte sequence for the wand's macro engine. Steps are
// appended in order and flushed to the device with a single command write.
type Macro struct {
	buf []byte
}

// NewMacro returns an empty macro builder.
func NewMacro() *Macro {
	return &Macro{buf: make([]byte, 0, 64)}
}

// Delay pauses macro execution for the given number of milliseconds.
func (m *Macro) Delay(ms uint16) *Macro {
	m.buf = append(m.buf, opDelay, 0, 0)
	binary.LittleEndian.PutUint16(m.buf[len(m.buf)-2:], ms)
	return m
}

// WaitBusy blocks until the previous lighting transition completes.
func (m *Macro) WaitBusy() *Macro {
	m.buf = append(m.buf, opWaitBusy)
	return m
}

// ClearAll turns off every LED group.
func (m *Macro) ClearAll() *Macro {
	m.buf = append(m.buf, opClearAll)
	return m
}

// LightTransition fades one LED group to a color over the given duration.
func (m *Macro) LightTransition(group LEDGroup, c Color, ms uint16) *Macro {
	m.buf = append(m.buf, opLightTransition, byte(group), c.R, c.G, c.B, 0, 0)
	binary.LittleEndian.PutUint16(m.buf[len(m.buf)-2:], ms)
	return m
}

// Buzz fires the haptic motor for the given number of milliseconds.
func (m *Macro) Buzz(ms uint16) *Macro {
	m.buf = append(m.buf, opHapticBuzz, 0, 0)
	binary.LittleEndian.PutUint16(m.buf[len(m.buf)-2:], ms)
	return m
}

// SetLoops sets the repeat count for the loop section that follows.
func (m *Macro) SetLoops(n byte) *Macro {
	m.buf = append(m.buf, opSetLoops, n)
	return m
}

// SetLoop marks the start of the looped section.
func (m *Macro) SetLoop() *Macro {
	m.buf = append(m.buf, opSetLoop)
	return m
}

// Raw appends pre-encoded macro bytes, used for the canned payoff effects.
func (m *Macro) Raw(b []byte) *Macro {
	m.buf = append(m.buf, b...)
	return m
}

// Bytes returns the command payload: the control opcode followed by the
// encoded steps.
func (m *Macro) Bytes() []byte {
	out := make([]byte, 0, 1+len(m.buf))
	out = append(out, CmdMacro)
	out = append(out, m.buf...)
	return out
}

// Len returns the number of encoded step bytes, excluding the opcode.
func (m *Macro) Len() int {
	return len(m.buf)
}

// LightMacro is a convenience for a single solid-color transition.
func LightMacro(group LEDGroup, c Color, ms uint16) []byte {
	return NewMacro().LightTransition(group, c, ms).Bytes()
}

// BuzzMacro is a convenience for a single haptic pulse.
func BuzzMacro(ms uint16) []byte {
	return NewMacro().Buzz(ms).Bytes()
}
