package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

// ObjectStorage is the blob store behind the archiver.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Archiver writes resolved episodes as JSON documents.
type Archiver struct {
	storage ObjectStorage
	logger  *slog.Logger
}

// NewArchiver wraps an object storage.
func NewArchiver(storage ObjectStorage, logger *slog.Logger) *Archiver {
	return &Archiver{storage: storage, logger: logger.With("component", "archive")}
}

// Key returns the object key of an archived episode.
func Key(patientID, episodeID string) string {
	return fmt.Sprintf("episodes/%s/%s.json", patientID, episodeID)
}

// Archive stores the full record and returns its key.
func (a *Archiver) Archive(ctx context.Context, rec episode.Record) (string, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode episode archive: %w", err)
	}
	key := Key(rec.PatientID, rec.ID)
	if err := a.storage.Put(ctx, key, payload, "application/json"); err != nil {
		return "", fmt.Errorf("store episode archive: %w", err)
	}
	a.logger.Info("episode archived", "key", key, "snapshots", len(rec.Snapshots))
	return key, nil
}

// Fetch reads an archived episode back.
func (a *Archiver) Fetch(ctx context.Context, patientID, episodeID string) (episode.Record, error) {
	body, err := a.storage.Get(ctx, Key(patientID, episodeID))
	if err != nil {
		return episode.Record{}, err
	}
	defer body.Close()
	var rec episode.Record
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		return episode.Record{}, fmt.Errorf("decode episode archive: %w", err)
	}
	return rec, nil
}

var _ tracking.Archiver = (*Archiver)(nil)
