package alertsink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/fevertrack/internal/infra/kv"
)

func TestValkeySink_EvictLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sink := NewValkeySink(nil, "", "", 2, logger)

	var removed []string
	sink.evict(context.Background(), []string{"a-1", "a-2", "a-3"}, func(_ context.Context, id string) error {
		removed = append(removed, id)
		if id == "a-2" {
			return errors.New("READONLY You can't write against a read only replica")
		}
		return nil
	})

	require.Equal(t, []string{"a-1", "a-2", "a-3"}, removed)
	out := buf.String()
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "stale alert eviction failed")
	require.Contains(t, out, "alertId=a-2")
	require.NotContains(t, out, "alertId=a-1")
}

// newTestValkey connects to FEVERTRACK_TEST_VALKEY_ADDR, skipping when unset.
func newTestValkey(t *testing.T) valkey.Client {
	t.Helper()
	addr := os.Getenv("FEVERTRACK_TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("FEVERTRACK_TEST_VALKEY_ADDR not set")
	}
	client, err := kv.Connect(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestValkeySink_PublishAndTrim(t *testing.T) {
	client := newTestValkey(t)
	ctx := context.Background()
	prefix := "fevertrack-test-" + uuid.NewString()
	sink := NewValkeySink(client, prefix, "", 2, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"a-1", "a-2", "a-3"} {
		require.NoError(t, sink.Publish(ctx, alertAt(id, base)))
		base = base.Add(time.Minute)
	}
	alerts, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Equal(t, "a-3", alerts[0].ID)

	err = client.Do(ctx, client.B().Get().Key(sink.alertKey("a-1")).Build()).Error()
	require.True(t, valkey.IsValkeyNil(err))
}

func TestValkeySink_FailedIndexLeavesNoEntry(t *testing.T) {
	client := newTestValkey(t)
	ctx := context.Background()
	prefix := "fevertrack-test-" + uuid.NewString()
	sink := NewValkeySink(client, prefix, "", 10, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	// a string at the index key makes ZADD fail inside the transaction
	require.NoError(t, client.Do(ctx, client.B().Set().Key(sink.indexKey()).Value("not-a-zset").Build()).Error())
	err := sink.Publish(ctx, alertAt("a-1", time.Now()))
	require.Error(t, err)

	err = client.Do(ctx, client.B().Get().Key(sink.alertKey("a-1")).Build()).Error()
	require.True(t, valkey.IsValkeyNil(err))
}
