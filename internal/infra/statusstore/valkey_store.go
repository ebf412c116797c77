package statusstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

// saveIfNewer writes KEYS[1] unless it holds the status of a later snapshot.
// ARGV: payload, snapshot seq, ttl seconds (0 keeps no expiry).
var saveIfNewer = valkey.NewLuaScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local ok, decoded = pcall(cjson.decode, current)
  if ok and type(decoded) == 'table' and tonumber(decoded.snapshotSeq or 0) > tonumber(ARGV[2]) then
    return 0
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// ValkeyStore caches composed statuses in a Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "fevertrack"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) GetStatus(ctx context.Context, episodeID string) (episode.Status, bool, error) {
	if episodeID == "" {
		return episode.Status{}, false, nil
	}
	cmd := s.client.B().Get().Key(s.statusKey(episodeID)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return episode.Status{}, false, nil
		}
		return episode.Status{}, false, err
	}
	var status episode.Status
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		return episode.Status{}, false, err
	}
	if status.DangerSigns == nil {
		status.DangerSigns = []episode.DangerSign{}
	}
	return status, true, nil
}

// SaveStatus stores the status atomically unless the cached entry belongs to a
// later snapshot of the same episode.
func (s *ValkeyStore) SaveStatus(ctx context.Context, status episode.Status, ttl time.Duration) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return saveIfNewer.Exec(ctx, s.client,
		[]string{s.statusKey(status.EpisodeID)},
		[]string{string(payload), strconv.Itoa(status.SnapshotSeq), strconv.FormatInt(ttlSeconds(ttl), 10)},
	).Error()
}

func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	if ttl < time.Second {
		return 1
	}
	return int64(ttl / time.Second)
}

func (s *ValkeyStore) statusKey(episodeID string) string {
	return fmt.Sprintf("%s:status:%s", s.prefix, episodeID)
}

var _ tracking.StatusStore = (*ValkeyStore)(nil)
