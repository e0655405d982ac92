package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "casts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	spells := []string{"lumos", "expelliarmus", "incendio"}
	for i, name := range spells {
		cast := &Cast{
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			WandID:     "3012abcd",
			Spell:      name,
			Source:     SourceServer,
			Confidence: 0.995,
		}
		require.NoError(t, store.Record(ctx, cast))
		assert.NotZero(t, cast.ID)
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "incendio", recent[0].Spell)
	assert.Equal(t, "expelliarmus", recent[1].Spell)
	assert.Equal(t, base.Add(2*time.Minute), recent[0].Timestamp)
	assert.Equal(t, 0.995, recent[0].Confidence)
}

func TestRecordFillsTimestamp(t *testing.T) {
	store := newTestStore(t)

	cast := &Cast{WandID: "3012abcd", Spell: "lumos", Source: SourceWand}
	require.NoError(t, store.Record(context.Background(), cast))
	assert.False(t, cast.Timestamp.IsZero())
}

func TestSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &Cast{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			WandID:    "3012abcd",
			Spell:     "lumos",
			Source:    SourceWand,
		}))
	}

	casts, err := store.Since(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, casts, 2)
}

func TestCountBySpell(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"lumos", "lumos", "nox"} {
		require.NoError(t, store.Record(ctx, &Cast{
			WandID: "3012abcd",
			Spell:  name,
			Source: SourceServer,
		}))
	}

	counts, err := store.CountBySpell(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"lumos": 2, "nox": 1}, counts)
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Record(ctx, &Cast{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			WandID:    "3012abcd",
			Spell:     "lumos",
			Source:    SourceWand,
		}))
	}

	removed, err := store.Prune(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	remaining, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
