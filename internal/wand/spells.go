package wand

import "strings"

// Spell couples a recognised gesture with the light and haptic payoff
// played back on the wand when the cast succeeds.
type Spell struct {
	Name   string
	payoff func(*Macro)
}

// DisplayName returns the human-readable spell name.
func (s Spell) DisplayName() string {
	return strings.ReplaceAll(s.Name, "_", " ")
}

// Payoff returns the encoded macro command for the spell's effect.
func (s Spell) Payoff() []byte {
	m := NewMacro()
	s.payoff(m)
	return m.Bytes()
}

// hexColor parses a six-digit RRGGBB string. Malformed input yields black.
func hexColor(s string) Color {
	if len(s) != 6 {
		return Color{}
	}
	var v [3]byte
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(s[i*2])
		lo, ok2 := hexNibble(s[i*2+1])
		if !ok1 || !ok2 {
			return Color{}
		}
		v[i] = hi<<4 | lo
	}
	return Color{R: v[0], G: v[1], B: v[2]}
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Spells lists every castable spell, ordered by the classifier's output
// index. The order is part of the model contract and must not change.
var Spells = []Spell{
	{"the_force_spell", func(m *Macro) {
		m.Buzz(350).
			LightTransition(LEDTip, hexColor("88AAFF"), 250).
			LightTransition(LEDMidUpper, hexColor("6688DD"), 200).
			Delay(200).ClearAll()
	}},
	{"colloportus", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("886633"), 300).
			LightTransition(LEDMidUpper, hexColor("664422"), 250).
			Delay(200).ClearAll()
	}},
	{"colloshoo", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("AA8844"), 300).
			Delay(200).ClearAll()
	}},
	{"the_hour_reversal_reversal_charm", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDPommel, hexColor("997722"), 200).
			LightTransition(LEDMidLower, hexColor("BB9944"), 200).
			LightTransition(LEDMidUpper, hexColor("DDBB66"), 200).
			LightTransition(LEDTip, hexColor("FFDD88"), 200).
			Delay(250).ClearAll()
	}},
	{"evanesco", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFFFFF"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("888888"), 150).Delay(100).
			LightTransition(LEDTip, hexColor("444444"), 100).Delay(100).
			ClearAll()
	}},
	{"herbivicus", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("00AA00"), 300).
			LightTransition(LEDMidUpper, hexColor("00DD00"), 250).
			LightTransition(LEDMidLower, hexColor("00FF00"), 200).
			Delay(250).ClearAll()
	}},
	{"orchideous", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FF66FF"), 300).
			LightTransition(LEDMidUpper, hexColor("FF99FF"), 250).
			Delay(200).ClearAll()
	}},
	{"brachiabindo", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("996633"), 300).
			Delay(200).ClearAll()
	}},
	{"meteolojinx", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("666688"), 300).
			LightTransition(LEDMidUpper, hexColor("888899"), 250).
			Delay(150).
			LightTransition(LEDTip, hexColor("FFFF00"), 100).
			Delay(10).ClearAll()
	}},
	{"riddikulus", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("FFFF00"), 200).
			LightTransition(LEDMidUpper, hexColor("FF00FF"), 200).
			LightTransition(LEDMidLower, hexColor("00FFFF"), 200).
			Delay(200).ClearAll()
	}},
	{"silencio", func(m *Macro) {
		m.Buzz(150).
			LightTransition(LEDTip, hexColor("9999AA"), 300).
			Delay(200).ClearAll()
	}},
	{"immobulus", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("88FFFF"), 350).
			LightTransition(LEDMidUpper, hexColor("66DDDD"), 300).
			Delay(250).ClearAll()
	}},
	{"confringo", func(m *Macro) {
		m.Buzz(400).
			LightTransition(LEDTip, hexColor("FF0000"), 100).
			LightTransition(LEDMidUpper, hexColor("FF4500"), 100).
			LightTransition(LEDMidLower, hexColor("FF6600"), 100).
			LightTransition(LEDPommel, hexColor("FFFF00"), 100).
			Delay(200).ClearAll()
	}},
	{"petrificus_totalus", func(m *Macro) {
		m.Buzz(350).
			LightTransition(LEDTip, hexColor("CCCCCC"), 300).
			LightTransition(LEDMidUpper, hexColor("AAAAAA"), 250).
			LightTransition(LEDMidLower, hexColor("888888"), 200).
			Delay(300).ClearAll()
	}},
	{"flipendo", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("FF6633"), 200).
			LightTransition(LEDMidUpper, hexColor("FF4422"), 150).
			Delay(150).ClearAll()
	}},
	{"the_cheering_charm", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFFF00"), 300).
			LightTransition(LEDMidUpper, hexColor("FFDD00"), 250).
			Delay(200).ClearAll()
	}},
	{"salvio_hexia", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("6666FF"), 400).
			LightTransition(LEDMidUpper, hexColor("4444FF"), 350).
			LightTransition(LEDMidLower, hexColor("2222FF"), 300).
			LightTransition(LEDPommel, hexColor("0000FF"), 250).
			Delay(250).ClearAll()
	}},
	{"pestis_incendium", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("FF0000"), 200).
			LightTransition(LEDMidUpper, hexColor("FF3300"), 200).
			LightTransition(LEDMidLower, hexColor("FF6600"), 200).
			LightTransition(LEDPommel, hexColor("FF9900"), 200).
			Delay(300).ClearAll()
	}},
	{"alohomora", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFD700"), 300).
			LightTransition(LEDMidUpper, hexColor("FFAA00"), 250).
			Delay(200).ClearAll()
	}},
	{"protego", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("0055FF"), 500).
			LightTransition(LEDMidUpper, hexColor("0055FF"), 400).
			LightTransition(LEDMidLower, hexColor("0055FF"), 300).
			Delay(300).ClearAll()
	}},
	{"langlock", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("AA6666"), 250).
			Delay(150).ClearAll()
	}},
	{"mucus_ad_nauseum", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("66FF66"), 250).
			Delay(150).ClearAll()
	}},
	{"flagrate", func(m *Macro) {
		m.Buzz(150).
			LightTransition(LEDTip, hexColor("FF6600"), 400).
			LightTransition(LEDMidUpper, hexColor("FF3300"), 300).
			Delay(300).
			LightTransition(LEDTip, hexColor("FF9900"), 300).
			Delay(200).ClearAll()
	}},
	{"glacius", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("00FFFF"), 400).
			LightTransition(LEDMidUpper, hexColor("88FFFF"), 300).
			LightTransition(LEDMidLower, hexColor("AAFFFF"), 250).
			Delay(300).ClearAll()
	}},
	{"finite", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("AAAAFF"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("6666FF"), 200).Delay(150).
			ClearAll()
	}},
	{"anteoculatia", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("8B4513"), 300).
			LightTransition(LEDMidUpper, hexColor("A0522D"), 250).
			Delay(200).ClearAll()
	}},
	{"expelliarmus", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("FF0000"), 200).
			LightTransition(LEDMidUpper, hexColor("FF0000"), 150).
			LightTransition(LEDPommel, hexColor("FF0000"), 100).
			Delay(300).ClearAll()
	}},
	{"expecto_patronum", func(m *Macro) {
		m.Buzz(400).
			LightTransition(LEDTip, hexColor("E0E0FF"), 300).
			LightTransition(LEDMidUpper, hexColor("C0C0FF"), 300).
			LightTransition(LEDMidLower, hexColor("A0A0FF"), 300).
			LightTransition(LEDPommel, hexColor("8080FF"), 300).
			Delay(500).
			LightTransition(LEDTip, hexColor("FFFFFF"), 1000).
			Delay(500).ClearAll()
	}},
	{"descendo", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("88AAFF"), 100).Delay(50).
			LightTransition(LEDMidUpper, hexColor("88AAFF"), 100).Delay(50).
			LightTransition(LEDMidLower, hexColor("88AAFF"), 100).Delay(50).
			LightTransition(LEDPommel, hexColor("6688DD"), 200).Delay(100).
			ClearAll()
	}},
	{"depulso", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("FF8844"), 250).
			LightTransition(LEDMidUpper, hexColor("FF6622"), 200).
			Delay(200).ClearAll()
	}},
	{"reducto", func(m *Macro) {
		m.Buzz(350).
			LightTransition(LEDTip, hexColor("FF3300"), 200).Delay(50).
			LightTransition(LEDTip, hexColor("FFAA00"), 150).Delay(100).
			ClearAll()
	}},
	{"colovaria", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FF0000"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("00FF00"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("0000FF"), 200).Delay(100).
			ClearAll()
	}},
	{"aberto", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFDD66"), 300).
			Delay(200).ClearAll()
	}},
	{"confundo", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("FFAAFF"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("AAFFFF"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("FFFFAA"), 200).Delay(150).
			ClearAll()
	}},
	{"densaugeo", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFFFCC"), 250).
			Delay(150).ClearAll()
	}},
	{"the_stretching_jinx", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFAA88"), 300).
			Delay(200).ClearAll()
	}},
	{"entomorphis", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("336633"), 250).
			Delay(150).ClearAll()
	}},
	{"the_hair_thickening_growing_charm", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("8B4513"), 300).
			Delay(200).ClearAll()
	}},
	{"bombarda", func(m *Macro) {
		m.Buzz(500).
			LightTransition(LEDTip, hexColor("FF4500"), 150).
			LightTransition(LEDMidUpper, hexColor("FF4500"), 120).
			LightTransition(LEDMidLower, hexColor("FF6600"), 100).
			LightTransition(LEDPommel, hexColor("FF8800"), 80).
			Delay(150).ClearAll()
	}},
	{"finestra", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("FFFFFF"), 150).
			LightTransition(LEDMidUpper, hexColor("CCCCFF"), 100).
			Delay(100).ClearAll()
	}},
	{"the_sleeping_charm", func(m *Macro) {
		m.Buzz(150).
			LightTransition(LEDTip, hexColor("6666AA"), 400).
			Delay(300).ClearAll()
	}},
	{"rictusempra", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFAACC"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("FFCCDD"), 200).Delay(150).
			ClearAll()
	}},
	{"piertotum_locomotor", func(m *Macro) {
		m.Buzz(350).
			LightTransition(LEDTip, hexColor("CCCCCC"), 250).
			LightTransition(LEDMidUpper, hexColor("AAAAAA"), 250).
			LightTransition(LEDMidLower, hexColor("888888"), 200).
			LightTransition(LEDPommel, hexColor("666666"), 150).
			Delay(300).ClearAll()
	}},
	{"expulso", func(m *Macro) {
		m.Buzz(400).
			LightTransition(LEDTip, hexColor("FF6600"), 150).
			LightTransition(LEDMidUpper, hexColor("FF3300"), 150).
			Delay(100).
			LightTransition(LEDTip, hexColor("FFAA00"), 200).
			Delay(150).ClearAll()
	}},
	{"impedimenta", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("8888FF"), 300).
			LightTransition(LEDMidUpper, hexColor("6666DD"), 250).
			Delay(200).ClearAll()
	}},
	{"ascendio", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDPommel, hexColor("88AAFF"), 100).Delay(50).
			LightTransition(LEDMidLower, hexColor("88AAFF"), 100).Delay(50).
			LightTransition(LEDMidUpper, hexColor("88AAFF"), 100).Delay(50).
			LightTransition(LEDTip, hexColor("AACCFF"), 200).Delay(100).
			ClearAll()
	}},
	{"incarcerous", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("8B4513"), 300).
			LightTransition(LEDMidUpper, hexColor("A0522D"), 250).
			Delay(200).ClearAll()
	}},
	{"ventus", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("88CCFF"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("AADDFF"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("88CCFF"), 200).Delay(100).
			ClearAll()
	}},
	{"revelio", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFFFFF"), 150).
			LightTransition(LEDMidUpper, hexColor("FFFF88"), 150).
			LightTransition(LEDMidLower, hexColor("FFFF00"), 150).
			Delay(200).ClearAll()
	}},
	{"accio", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("6688FF"), 300).
			LightTransition(LEDMidUpper, hexColor("4466DD"), 250).
			Delay(200).ClearAll()
	}},
	{"melefors", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FF8800"), 300).
			LightTransition(LEDMidUpper, hexColor("FF6600"), 250).
			Delay(200).ClearAll()
	}},
	{"scourgify", func(m *Macro) {
		m.Buzz(150).
			LightTransition(LEDTip, hexColor("88DDFF"), 300).
			Delay(200).ClearAll()
	}},
	{"wingardium_leviosa", func(m *Macro) {
		m.Buzz(150).
			LightTransition(LEDTip, hexColor("FFFFAA"), 300).Delay(200).
			LightTransition(LEDTip, hexColor("FFFF66"), 300).Delay(200).
			LightTransition(LEDTip, hexColor("FFFFAA"), 300).Delay(300).
			ClearAll()
	}},
	{"nox", func(m *Macro) {
		m.Buzz(100).
			LightTransition(LEDTip, hexColor("330033"), 200).
			Delay(100).ClearAll()
	}},
	{"stupefy", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("FF0000"), 150).Delay(50).
			LightTransition(LEDTip, hexColor("880000"), 150).Delay(50).
			LightTransition(LEDTip, hexColor("FF0000"), 150).Delay(100).
			ClearAll()
	}},
	{"spongify", func(m *Macro) {
		m.Buzz(150).
			LightTransition(LEDTip, hexColor("FFCCFF"), 300).
			Delay(200).ClearAll()
	}},
	{"lumos", func(m *Macro) {
		// Lumos leaves the tip lit, no trailing clear.
		m.Buzz(150).
			LightTransition(LEDTip, Color{R: 255, G: 255, B: 255}, 2000)
	}},
	{"appare_vestigium", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("FFDD00"), 300).
			LightTransition(LEDMidUpper, hexColor("FFCC00"), 300).
			Delay(300).ClearAll()
	}},
	{"verdimillious", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("00FF00"), 200).
			LightTransition(LEDMidUpper, hexColor("00AA00"), 150).
			Delay(100).
			LightTransition(LEDTip, hexColor("00FF00"), 150).
			Delay(200).ClearAll()
	}},
	{"fulgari", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("FFFF00"), 300).
			LightTransition(LEDMidUpper, hexColor("FFFF00"), 250).
			LightTransition(LEDMidLower, hexColor("FFFF00"), 200).
			Delay(300).ClearAll()
	}},
	{"reparo", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFDD88"), 300).
			LightTransition(LEDMidUpper, hexColor("FFCC66"), 250).
			Delay(200).ClearAll()
	}},
	{"locomotor", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("6699FF"), 250).Delay(100).
			LightTransition(LEDTip, hexColor("99AAFF"), 250).Delay(150).
			ClearAll()
	}},
	{"quietus", func(m *Macro) {
		m.Buzz(150).
			LightTransition(LEDTip, hexColor("666688"), 250).
			Delay(150).ClearAll()
	}},
	{"everte_statum", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("FF6644"), 200).
			LightTransition(LEDMidUpper, hexColor("FF4422"), 150).
			Delay(150).ClearAll()
	}},
	{"incendio", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FF4500"), 300).
			LightTransition(LEDMidUpper, hexColor("FF6600"), 200).
			Delay(100).
			LightTransition(LEDTip, hexColor("FF0000"), 300).
			Delay(200).ClearAll()
	}},
	{"aguamenti", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("0066FF"), 400).
			LightTransition(LEDMidUpper, hexColor("00AAFF"), 300).
			Delay(200).ClearAll()
	}},
	{"sonorus", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFAA66"), 250).
			Delay(150).ClearAll()
	}},
	{"cantis", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FFCC99"), 250).
			LightTransition(LEDMidUpper, hexColor("FFAA88"), 20).
			Delay(200).ClearAll()
	}},
	{"arania_exumai", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("FFFFFF"), 200).
			LightTransition(LEDMidUpper, hexColor("FFFF00"), 150).
			Delay(150).ClearAll()
	}},
	{"calvorio", func(m *Macro) {
		m.Buzz(150).
			LightTransition(LEDTip, hexColor("FFEECC"), 200).
			Delay(150).ClearAll()
	}},
	{"the_hour_reversal_charm", func(m *Macro) {
		m.Buzz(300).
			LightTransition(LEDTip, hexColor("FFDD88"), 200).
			LightTransition(LEDMidUpper, hexColor("DDBB66"), 200).
			LightTransition(LEDMidLower, hexColor("BB9944"), 200).
			LightTransition(LEDPommel, hexColor("997722"), 200).
			Delay(250).ClearAll()
	}},
	{"vermillious", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("FF0000"), 200).
			LightTransition(LEDMidUpper, hexColor("AA0000"), 150).
			Delay(100).
			LightTransition(LEDTip, hexColor("FF0000"), 150).
			Delay(200).ClearAll()
	}},
	{"the_pepper_breath_hex", func(m *Macro) {
		m.Buzz(250).
			LightTransition(LEDTip, hexColor("FF4400"), 300).
			LightTransition(LEDMidUpper, hexColor("FF6600"), 250).
			Delay(200).ClearAll()
	}},
}

// Feedback effects that are not classifier outputs.
var (
	SpellFail = Spell{"spell_fail", func(m *Macro) {
		m.Buzz(100).
			LightTransition(LEDTip, hexColor("FF0000"), 200).Delay(100).
			LightTransition(LEDTip, hexColor("000000"), 100).Delay(100).
			LightTransition(LEDTip, hexColor("FF0000"), 200).Delay(100).
			ClearAll()
	}}
	SpellSuccess = Spell{"spell_success", func(m *Macro) {
		m.Buzz(200).
			LightTransition(LEDTip, hexColor("00FF00"), 300).
			Delay(200).ClearAll()
	}}
)

var spellsByName = func() map[string]Spell {
	byName := make(map[string]Spell, len(Spells)+2)
	for _, s := range Spells {
		byName[s.Name] = s
	}
	byName[SpellFail.Name] = SpellFail
	byName[SpellSuccess.Name] = SpellSuccess
	return byName
}()

// SpellByIndex returns the spell for a classifier output index.
func SpellByIndex(i int) (Spell, bool) {
	if i < 0 || i >= len(Spells) {
		return Spell{}, false
	}
	return Spells[i], true
}

// SpellByName looks up a spell by its canonical underscored name.
func SpellByName(name string) (Spell, bool) {
	s, ok := spellsByName[name]
	return s, ok
}

// SpellNames returns the canonical names in classifier order.
func SpellNames() []string {
	names := make([]string, len(Spells))
	for i, s := range Spells {
		names[i] = s.Name
	}
	return names
}
