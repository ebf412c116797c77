package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/yanqian/fevertrack/internal/domain/episode"
)

var (
	// ErrEpisodeNotFound is returned by repositories for unknown episode ids.
	ErrEpisodeNotFound = errors.New("episode not found")
	// ErrActiveEpisodeExists is returned by Create when the patient already has an active episode.
	ErrActiveEpisodeExists = errors.New("patient already has an active episode")
)

// Repository persists episodes and their snapshot logs.
//
// Update is the only mutation path for an existing episode: implementations hold
// an exclusive lock or transaction on the episode for the duration of fn and
// persist the snapshots fn appended plus any state change. If fn fails nothing
// is written.
type Repository interface {
	Create(ctx context.Context, ep *episode.Episode) error
	Get(ctx context.Context, id string) (*episode.Episode, error)
	FindActiveByPatient(ctx context.Context, patientID string) (*episode.Episode, bool, error)
	ListByPatient(ctx context.Context, patientID string) ([]*episode.Episode, error)
	Update(ctx context.Context, id string, fn func(ep *episode.Episode) error) (*episode.Episode, error)
}

// StatusStore caches the last composed status per episode. SaveStatus must not
// replace the status of a later snapshot (higher SnapshotSeq) with an earlier one.
type StatusStore interface {
	SaveStatus(ctx context.Context, status episode.Status, ttl time.Duration) error
	GetStatus(ctx context.Context, episodeID string) (episode.Status, bool, error)
}

// AlertSink delivers alert events. It decides how, the engine only decides whether.
type AlertSink interface {
	Publish(ctx context.Context, event episode.AlertEvent) error
}

// AlertInbox lets clinicians review delivered alerts.
type AlertInbox interface {
	Recent(ctx context.Context, limit int) ([]Alert, error)
	MarkRead(ctx context.Context, alertID string) (bool, error)
	Dismiss(ctx context.Context, alertID string) (bool, error)
}

// AlertFeed delivers alerts live. Subscribe blocks until ctx is cancelled or
// the feed fails.
type AlertFeed interface {
	Subscribe(ctx context.Context, fn func(episode.AlertEvent)) error
}

// Alerts is implemented by sinks that also keep an inbox and a live feed.
type Alerts interface {
	AlertSink
	AlertInbox
	AlertFeed
}

// Predictor calls the external disease classifier.
type Predictor interface {
	Predict(ctx context.Context, in PredictionInput) (episode.Prediction, error)
}

// Archiver stores the full log of a resolved episode.
type Archiver interface {
	Archive(ctx context.Context, rec episode.Record) (string, error)
}
