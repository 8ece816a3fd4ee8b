package repos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribconnect/contribconnect/internal/graph"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := graph.Open(graph.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewRegistry(store, nil)
}

func TestAddAndGet(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	cfg, err := registry.Add(ctx, "acme", "widgets", true)
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", cfg.FullName())
	assert.Equal(t, StatusPending, cfg.IngestStatus)
	assert.True(t, cfg.Enabled)

	got, err := registry.Get(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Org)
	assert.Equal(t, "widgets", got.Repo)
}

func TestGet_NotConfigured(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Get(context.Background(), "acme", "missing")
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestList_SortedAndFiltered(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, "zeta", "last", true)
	require.NoError(t, err)
	_, err = registry.Add(ctx, "acme", "first", true)
	require.NoError(t, err)
	_, err = registry.Add(ctx, "beta", "off", false)
	require.NoError(t, err)

	all, err := registry.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "acme/first", all[0].FullName())
	assert.Equal(t, "beta/off", all[1].FullName())
	assert.Equal(t, "zeta/last", all[2].FullName())

	enabled, err := registry.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	for _, cfg := range enabled {
		assert.True(t, cfg.Enabled)
	}
}

func TestSetEnabled(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, "acme", "widgets", true)
	require.NoError(t, err)

	require.NoError(t, registry.SetEnabled(ctx, "acme", "widgets", false))
	cfg, err := registry.Get(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	// Auto-creates when absent
	require.NoError(t, registry.SetEnabled(ctx, "acme", "gadgets", true))
	cfg, err = registry.Get(ctx, "acme", "gadgets")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
}

func TestRemove(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, "acme", "widgets", true)
	require.NoError(t, err)
	require.NoError(t, registry.Remove(ctx, "acme", "widgets"))

	_, err = registry.Get(ctx, "acme", "widgets")
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestRecordIngest(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	// Auto-creates the entry on first record
	require.NoError(t, registry.RecordIngest(ctx, "acme", "widgets", StatusError, "rate limited"))
	cfg, err := registry.Get(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, StatusError, cfg.IngestStatus)
	assert.Equal(t, "rate limited", cfg.LastError)
	assert.False(t, cfg.LastIngestAt.IsZero())

	require.NoError(t, registry.RecordIngest(ctx, "acme", "widgets", StatusSuccess, ""))
	cfg, err = registry.Get(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, cfg.IngestStatus)
	assert.Empty(t, cfg.LastError)
}

func TestCheckpoint_ZeroWhenAbsent(t *testing.T) {
	registry := newTestRegistry(t)

	checkpoint, err := registry.Checkpoint(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 0, checkpoint)
}

func TestCheckpoint_SetAndGet(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, registry.SetCheckpoint(ctx, "acme", "widgets", 128, at))

	checkpoint, err := registry.Checkpoint(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 128, checkpoint)

	cfg, err := registry.Get(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.LastProcessedPR)
	assert.True(t, cfg.CheckpointAt.Equal(at))
}

func TestCheckpoint_Reset(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.SetCheckpoint(ctx, "acme", "widgets", 55, time.Now().UTC()))
	require.NoError(t, registry.ResetCheckpoint(ctx, "acme", "widgets"))

	checkpoint, err := registry.Checkpoint(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 0, checkpoint)
}

func TestCheckpoint_SurvivesStatusUpdates(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.SetCheckpoint(ctx, "acme", "widgets", 77, time.Now().UTC()))
	require.NoError(t, registry.RecordIngest(ctx, "acme", "widgets", StatusSuccess, ""))

	checkpoint, err := registry.Checkpoint(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 77, checkpoint)
}
