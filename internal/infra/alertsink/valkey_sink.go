package alertsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

// ValkeySink stores alerts as JSON entries indexed by a sorted set keyed on
// creation time, and fans each new alert out on a pub/sub channel.
type ValkeySink struct {
	client    valkey.Client
	prefix    string
	channel   string
	maxAlerts int
	logger    *slog.Logger
}

// NewValkeySink constructs a Valkey-backed alert sink.
func NewValkeySink(client valkey.Client, prefix, channel string, maxAlerts int, logger *slog.Logger) *ValkeySink {
	if prefix == "" {
		prefix = "fevertrack"
	}
	if channel == "" {
		channel = prefix + ":alerts:live"
	}
	if maxAlerts <= 0 {
		maxAlerts = 500
	}
	return &ValkeySink{
		client:    client,
		prefix:    prefix,
		channel:   channel,
		maxAlerts: maxAlerts,
		logger:    logger.With("component", "alertsink.valkey"),
	}
}

// Publish indexes the alert, trims the index and notifies live subscribers.
// The entry and its index member are written in one MULTI/EXEC; if either
// write fails both are removed again.
func (s *ValkeySink) Publish(ctx context.Context, event episode.AlertEvent) error {
	payload, err := json.Marshal(tracking.Alert{AlertEvent: event})
	if err != nil {
		return err
	}
	if err := s.index(ctx, event, string(payload)); err != nil {
		if cleanupErr := s.removeAlert(ctx, event.ID); cleanupErr != nil {
			s.logger.Warn("partial alert cleanup failed", "alertId", event.ID, "error", cleanupErr)
		}
		return err
	}
	s.trim(ctx)
	if err := s.client.Do(ctx, s.client.B().Publish().Channel(s.channel).Message(string(payload)).Build()).Error(); err != nil {
		s.logger.Warn("alert fan-out failed", "alertId", event.ID, "error", err)
	}
	return nil
}

func (s *ValkeySink) index(ctx context.Context, event episode.AlertEvent, payload string) error {
	resps := s.client.DoMulti(ctx,
		s.client.B().Multi().Build(),
		s.client.B().Set().Key(s.alertKey(event.ID)).Value(payload).Build(),
		s.client.B().Zadd().Key(s.indexKey()).ScoreMember().ScoreMember(float64(event.CreatedAt.UnixMilli()), event.ID).Build(),
		s.client.B().Exec().Build(),
	)
	for _, resp := range resps {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	results, err := resps[len(resps)-1].ToArray()
	if err != nil {
		return err
	}
	for _, result := range results {
		if err := result.Error(); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns the newest alerts first.
func (s *ValkeySink) Recent(ctx context.Context, limit int) ([]tracking.Alert, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.client.Do(ctx, s.client.B().Zrevrange().Key(s.indexKey()).Start(0).Stop(int64(limit-1)).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return []tracking.Alert{}, nil
		}
		return nil, err
	}
	out := make([]tracking.Alert, 0, len(ids))
	for _, id := range ids {
		alert, found, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, alert)
		}
	}
	return out, nil
}

func (s *ValkeySink) MarkRead(ctx context.Context, alertID string) (bool, error) {
	alert, found, err := s.load(ctx, alertID)
	if err != nil || !found {
		return false, err
	}
	alert.IsRead = true
	payload, err := json.Marshal(alert)
	if err != nil {
		return false, err
	}
	if err := s.client.Do(ctx, s.client.B().Set().Key(s.alertKey(alertID)).Value(string(payload)).Build()).Error(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ValkeySink) Dismiss(ctx context.Context, alertID string) (bool, error) {
	removed, err := s.client.Do(ctx, s.client.B().Zrem().Key(s.indexKey()).Member(alertID).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.alertKey(alertID)).Build()).Error(); err != nil {
		return false, err
	}
	return removed > 0, nil
}

// Subscribe blocks delivering live alerts to fn until ctx is cancelled.
func (s *ValkeySink) Subscribe(ctx context.Context, fn func(episode.AlertEvent)) error {
	return s.client.Receive(ctx, s.client.B().Subscribe().Channel(s.channel).Build(), func(msg valkey.PubSubMessage) {
		var alert tracking.Alert
		if err := json.Unmarshal([]byte(msg.Message), &alert); err != nil {
			s.logger.Warn("alert decode failed", "error", err)
			return
		}
		fn(alert.AlertEvent)
	})
}

func (s *ValkeySink) load(ctx context.Context, alertID string) (tracking.Alert, bool, error) {
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.alertKey(alertID)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return tracking.Alert{}, false, nil
		}
		return tracking.Alert{}, false, err
	}
	var alert tracking.Alert
	if err := json.Unmarshal([]byte(payload), &alert); err != nil {
		return tracking.Alert{}, false, err
	}
	return alert, true, nil
}

// trim drops the oldest entries beyond maxAlerts.
func (s *ValkeySink) trim(ctx context.Context) {
	stale, err := s.client.Do(ctx, s.client.B().Zrange().Key(s.indexKey()).Min("0").Max(fmt.Sprint(-s.maxAlerts-1)).Build()).AsStrSlice()
	if err != nil {
		if !valkey.IsValkeyNil(err) {
			s.logger.Warn("alert index trim failed", "error", err)
		}
		return
	}
	s.evict(ctx, stale, s.removeAlert)
}

func (s *ValkeySink) evict(ctx context.Context, ids []string, remove func(context.Context, string) error) {
	for _, id := range ids {
		if err := remove(ctx, id); err != nil {
			s.logger.Warn("stale alert eviction failed", "alertId", id, "error", err)
		}
	}
}

// removeAlert drops the index member and the entry of one alert.
func (s *ValkeySink) removeAlert(ctx context.Context, id string) error {
	resps := s.client.DoMulti(ctx,
		s.client.B().Zrem().Key(s.indexKey()).Member(id).Build(),
		s.client.B().Del().Key(s.alertKey(id)).Build(),
	)
	var errs []error
	for _, resp := range resps {
		if err := resp.Error(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ValkeySink) alertKey(id string) string {
	return fmt.Sprintf("%s:alert:%s", s.prefix, id)
}

func (s *ValkeySink) indexKey() string {
	return fmt.Sprintf("%s:alerts", s.prefix)
}

var _ tracking.Alerts = (*ValkeySink)(nil)
