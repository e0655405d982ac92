package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wandbridge/internal/wand"
)

func newTestStorage(t *testing.T) *BoltStorage {
	t.Helper()
	store, err := NewBoltStorage(filepath.Join(t.TempDir(), "wandbridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSectionData(t *testing.T) {
	store := newTestStorage(t)

	require.NoError(t, store.SetString("mqtt", "broker", "tcp://localhost:1883"))
	value, err := store.GetString("mqtt", "broker")
	require.NoError(t, err)
	assert.Equal(t, "tcp://localhost:1883", value)

	require.NoError(t, store.SetInt("bridge", "spellTimeout", 30))
	timeout, err := store.GetInt("bridge", "spellTimeout")
	require.NoError(t, err)
	assert.Equal(t, 30, timeout)

	require.NoError(t, store.SetBool("mqtt", "discoveryPublished", true))
	published, err := store.GetBool("mqtt", "discoveryPublished")
	require.NoError(t, err)
	assert.True(t, published)

	type settings struct {
		Color   string `json:"color"`
		Enabled bool   `json:"enabled"`
	}
	require.NoError(t, store.SetJSON("bridge", "led", settings{Color: "Blue", Enabled: true}))
	var got settings
	require.NoError(t, store.GetJSON("bridge", "led", &got))
	assert.Equal(t, settings{Color: "Blue", Enabled: true}, got)

	all, err := store.List("mqtt")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Delete("mqtt", "broker"))
	_, err = store.GetString("mqtt", "broker")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteAll("mqtt"))
	all, err = store.List("mqtt")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSectionDataNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.Get("nonexistent", "key")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetBool("bridge", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSectionDataBadValues(t *testing.T) {
	store := newTestStorage(t)

	require.NoError(t, store.SetString("bridge", "spellTimeout", "soon"))
	_, err := store.GetInt("bridge", "spellTimeout")
	assert.Error(t, err)

	_, err = store.GetBool("bridge", "spellTimeout")
	assert.Error(t, err)
}

func TestKnownWands(t *testing.T) {
	store := newTestStorage(t)

	info := wand.Info{
		Address:         "C0:4E:30:12:AB:CD",
		Name:            "MCW-ABCD",
		DeviceID:        "WBMC22G1SHNW",
		SerialNumber:    "12345",
		FirmwareVersion: "0.3",
		Type:            wand.TypeHonourable,
	}
	require.NoError(t, store.SaveWand(info))

	got, err := store.GetWand(info.Identifier())
	require.NoError(t, err)
	assert.Equal(t, info, got)

	// Saving again under the same identifier overwrites, not duplicates.
	info.FirmwareVersion = "0.4"
	require.NoError(t, store.SaveWand(info))

	wands, err := store.ListWands()
	require.NoError(t, err)
	require.Len(t, wands, 1)
	assert.Equal(t, "0.4", wands[0].FirmwareVersion)

	require.NoError(t, store.DeleteWand(info.Identifier()))
	_, err = store.GetWand(info.Identifier())
	assert.ErrorIs(t, err, ErrWandNotFound)
}

func TestSaveWandWithoutAddress(t *testing.T) {
	store := newTestStorage(t)
	assert.Error(t, store.SaveWand(wand.Info{Name: "MCW-0000"}))
}

func TestStorageSatisfiesInterface(t *testing.T) {
	var _ Storage = newTestStorage(t)
}
