package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndGetAll(t *testing.T) {
	store := NewStore(10)

	store.Add(EventLogin, "admin", "10.0.0.2", true, "")
	store.Add(EventWandConnect, "", "", true, "MCW-ABCD")
	store.Add(EventSpellCast, "", "", true, "lumos")

	all := store.GetAll()
	require.Len(t, all, 3)

	// Newest first.
	assert.Equal(t, EventSpellCast, all[0].Type)
	assert.Equal(t, EventWandConnect, all[1].Type)
	assert.Equal(t, EventLogin, all[2].Type)
	assert.Equal(t, "lumos", all[0].Details)
	assert.EqualValues(t, 3, store.LastID())
}

func TestRingBufferEviction(t *testing.T) {
	store := NewStore(3)

	for i := 0; i < 5; i++ {
		store.Add(EventSpellCast, "", "", true, fmt.Sprintf("spell-%d", i))
	}

	assert.Equal(t, 3, store.Count())

	all := store.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, "spell-4", all[0].Details)
	assert.Equal(t, "spell-2", all[2].Details)

	// IDs keep increasing even after eviction.
	assert.EqualValues(t, 5, store.LastID())
}

func TestGetLast(t *testing.T) {
	store := NewStore(10)

	store.Add(EventLogin, "admin", "10.0.0.2", true, "")
	store.Add(EventLogout, "admin", "10.0.0.2", true, "")

	last := store.GetLast(1)
	require.Len(t, last, 1)
	assert.Equal(t, EventLogout, last[0].Type)

	// Asking for more than stored returns everything.
	assert.Len(t, store.GetLast(50), 2)
}

func TestGetSince(t *testing.T) {
	store := NewStore(10)

	store.Add(EventCalibration, "admin", "10.0.0.2", true, "")
	store.Add(EventMacroSent, "admin", "10.0.0.2", true, "buzz")
	store.Add(EventSettingsChange, "admin", "10.0.0.2", true, "led color")

	since := store.GetSince(1)
	require.Len(t, since, 2)
	assert.Equal(t, EventSettingsChange, since[0].Type)
	assert.Equal(t, EventMacroSent, since[1].Type)

	assert.Empty(t, store.GetSince(store.LastID()))
}
