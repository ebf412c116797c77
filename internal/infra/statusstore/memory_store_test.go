package statusstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/fevertrack/internal/domain/episode"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	status := episode.Status{EpisodeID: "ep-1", CurrentDay: 3, DangerSigns: []episode.DangerSign{episode.SignBleeding}}
	require.NoError(t, store.SaveStatus(context.Background(), status, time.Minute))

	got, found, err := store.GetStatus(context.Background(), "ep-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 3, got.CurrentDay)

	got.DangerSigns[0] = episode.SignConfusion
	again, _, _ := store.GetStatus(context.Background(), "ep-1")
	require.Equal(t, episode.SignBleeding, again.DangerSigns[0])

	_, found, err = store.GetStatus(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, store.SaveStatus(context.Background(), episode.Status{EpisodeID: "ep-1"}, time.Minute))

	now = now.Add(2 * time.Minute)
	_, found, err := store.GetStatus(context.Background(), "ep-1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStore_KeepsLaterSnapshot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	newer := episode.Status{EpisodeID: "ep-1", SnapshotSeq: 2, DangerSigns: []episode.DangerSign{episode.SignBleeding}}
	older := episode.Status{EpisodeID: "ep-1", SnapshotSeq: 1, DangerSigns: []episode.DangerSign{}}

	require.NoError(t, store.SaveStatus(ctx, newer, time.Minute))
	require.NoError(t, store.SaveStatus(ctx, older, time.Minute))
	got, found, err := store.GetStatus(ctx, "ep-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, got.SnapshotSeq)
	require.Equal(t, []episode.DangerSign{episode.SignBleeding}, got.DangerSigns)

	// a rebuilt status for the same snapshot replaces the entry
	rebuilt := newer
	rebuilt.CurrentDay = 4
	require.NoError(t, store.SaveStatus(ctx, rebuilt, time.Minute))
	got, _, _ = store.GetStatus(ctx, "ep-1")
	require.Equal(t, 4, got.CurrentDay)
}

func TestMemoryStore_ExpiredEntryDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, store.SaveStatus(ctx, episode.Status{EpisodeID: "ep-1", SnapshotSeq: 5}, time.Minute))

	now = now.Add(2 * time.Minute)
	require.NoError(t, store.SaveStatus(ctx, episode.Status{EpisodeID: "ep-1", SnapshotSeq: 3}, time.Minute))
	got, found, err := store.GetStatus(ctx, "ep-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 3, got.SnapshotSeq)
}

func TestMemoryStore_ConcurrentSavesConverge(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	const writers = 40

	var wg sync.WaitGroup
	for i := writers; i >= 1; i-- {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			_ = store.SaveStatus(ctx, episode.Status{EpisodeID: "ep-1", SnapshotSeq: seq}, time.Minute)
		}(i)
	}
	wg.Wait()

	got, found, err := store.GetStatus(ctx, "ep-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, writers, got.SnapshotSeq)
}
