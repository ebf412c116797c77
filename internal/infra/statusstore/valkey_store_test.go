package statusstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/infra/kv"
)

func TestTTLSeconds(t *testing.T) {
	require.Equal(t, int64(0), ttlSeconds(0))
	require.Equal(t, int64(0), ttlSeconds(-time.Minute))
	require.Equal(t, int64(1), ttlSeconds(200*time.Millisecond))
	require.Equal(t, int64(3600), ttlSeconds(time.Hour))
}

func TestStatusKey(t *testing.T) {
	store := NewValkeyStore(nil, "")
	require.Equal(t, "fevertrack:status:ep-1", store.statusKey("ep-1"))
}

func TestValkeyStore_KeepsLaterSnapshot(t *testing.T) {
	addr := os.Getenv("FEVERTRACK_TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("FEVERTRACK_TEST_VALKEY_ADDR not set")
	}
	ctx := context.Background()
	client, err := kv.Connect(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	store := NewValkeyStore(client, "fevertrack-test-"+uuid.NewString())

	newer := episode.Status{EpisodeID: "ep-1", SnapshotSeq: 2, DangerSigns: []episode.DangerSign{episode.SignConfusion}}
	older := episode.Status{EpisodeID: "ep-1", SnapshotSeq: 1}
	require.NoError(t, store.SaveStatus(ctx, newer, time.Minute))
	require.NoError(t, store.SaveStatus(ctx, older, time.Minute))

	got, found, err := store.GetStatus(ctx, "ep-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, got.SnapshotSeq)
	require.Equal(t, []episode.DangerSign{episode.SignConfusion}, got.DangerSigns)

	newest := episode.Status{EpisodeID: "ep-1", SnapshotSeq: 3}
	require.NoError(t, store.SaveStatus(ctx, newest, 0))
	got, _, err = store.GetStatus(ctx, "ep-1")
	require.NoError(t, err)
	require.Equal(t, 3, got.SnapshotSeq)
}
