package wand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacroEncoding(t *testing.T) {
	m := NewMacro().
		Buzz(200).
		LightTransition(LEDTip, Color{R: 0xFF, G: 0xDD, B: 0x66}, 300).
		Delay(200).
		ClearAll()

	want := []byte{
		0x68,
		0x50, 0xC8, 0x00,
		0x22, 0x00, 0xFF, 0xDD, 0x66, 0x2C, 0x01,
		0x10, 0xC8, 0x00,
		0x20,
	}
	assert.Equal(t, want, m.Bytes())
}

func TestMacroLoopSteps(t *testing.T) {
	m := NewMacro().SetLoops(3).SetLoop().WaitBusy()
	assert.Equal(t, []byte{0x68, 0x80, 0x03, 0x81, 0x11}, m.Bytes())
}

func TestLightAndBuzzHelpers(t *testing.T) {
	assert.Equal(t, []byte{0x68, 0x22, 0x03, 0x00, 0x00, 0xFF, 0xF4, 0x01},
		LightMacro(LEDPommel, ColorBlue, 500))
	assert.Equal(t, []byte{0x68, 0x50, 0x64, 0x00}, BuzzMacro(100))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, Color{R: 0xFF, G: 0x45, B: 0x00}, hexColor("FF4500"))
	assert.Equal(t, Color{}, hexColor("nope"))
	assert.Equal(t, Color{}, hexColor("FFF"))
}

func TestSpellOrdering(t *testing.T) {
	require.Len(t, Spells, 73)
	assert.Equal(t, "the_force_spell", Spells[0].Name)
	assert.Equal(t, "lumos", Spells[56].Name)
	assert.Equal(t, "the_pepper_breath_hex", Spells[72].Name)
}

func TestSpellLookup(t *testing.T) {
	s, ok := SpellByIndex(26)
	require.True(t, ok)
	assert.Equal(t, "expelliarmus", s.Name)

	_, ok = SpellByIndex(len(Spells))
	assert.False(t, ok)
	_, ok = SpellByIndex(-1)
	assert.False(t, ok)

	s, ok = SpellByName("expecto_patronum")
	require.True(t, ok)
	assert.Equal(t, "expecto patronum", s.DisplayName())

	_, ok = SpellByName("abracadabra")
	assert.False(t, ok)
}

func TestSpellPayoffIsMacroCommand(t *testing.T) {
	for _, s := range Spells {
		payoff := s.Payoff()
		require.NotEmpty(t, payoff, "spell %s", s.Name)
		assert.Equal(t, CmdMacro, payoff[0], "spell %s", s.Name)
		assert.Greater(t, len(payoff), 3, "spell %s", s.Name)
	}
}

func TestFeedbackSpells(t *testing.T) {
	assert.Equal(t, CmdMacro, SpellFail.Payoff()[0])
	assert.Equal(t, CmdMacro, SpellSuccess.Payoff()[0])

	_, ok := SpellByName("spell_fail")
	assert.True(t, ok)
}
