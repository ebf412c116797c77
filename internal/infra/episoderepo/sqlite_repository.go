package episoderepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS episodes (
	id               TEXT PRIMARY KEY,
	patient_id       TEXT NOT NULL,
	status           TEXT NOT NULL,
	started_at       TEXT NOT NULL,
	resolved_at      TEXT,
	medical_history  TEXT NOT NULL,
	exposure_history TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS episodes_one_active_per_patient
	ON episodes (patient_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS episode_snapshots (
	id             TEXT PRIMARY KEY,
	episode_id     TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	day_of_illness INTEGER NOT NULL,
	recorded_at    TEXT NOT NULL,
	payload        TEXT NOT NULL,
	UNIQUE (episode_id, seq),
	FOREIGN KEY (episode_id) REFERENCES episodes(id)
);
`

// SQLiteRepository is an embedded single-node implementation of tracking.Repository.
type SQLiteRepository struct {
	db *sql.DB
	// SQLite allows one writer; Update holds this for the whole read-modify-write.
	writeMu sync.Mutex
}

// NewSQLiteRepository opens a SQLite database and runs migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Create(ctx context.Context, ep *episode.Episode) error {
	medical, err := json.Marshal(ep.MedicalHistory())
	if err != nil {
		return fmt.Errorf("marshal medical history: %w", err)
	}
	exposure, err := json.Marshal(ep.ExposureHistory())
	if err != nil {
		return fmt.Errorf("marshal exposure history: %w", err)
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO episodes (id, patient_id, status, started_at, resolved_at, medical_history, exposure_history)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ep.ID(), ep.PatientID(), string(ep.State()), formatTime(ep.StartedAt()), formatTimePtr(ep.ResolvedAt()),
		string(medical), string(exposure),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return tracking.ErrActiveEpisodeExists
	}
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*episode.Episode, error) {
	return r.load(ctx, r.db, id)
}

func (r *SQLiteRepository) FindActiveByPatient(ctx context.Context, patientID string) (*episode.Episode, bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM episodes WHERE patient_id = ? AND status = 'active' LIMIT 1`, patientID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ep, err := r.load(ctx, r.db, id)
	if err != nil {
		return nil, false, err
	}
	return ep, true, nil
}

func (r *SQLiteRepository) ListByPatient(ctx context.Context, patientID string) ([]*episode.Episode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM episodes WHERE patient_id = ? ORDER BY started_at DESC`, patientID,
	)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*episode.Episode, 0, len(ids))
	for _, id := range ids {
		ep, err := r.load(ctx, r.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, fn func(ep *episode.Episode) error) (*episode.Episode, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ep, err := r.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	before := ep.Len()
	if err := fn(ep); err != nil {
		return nil, err
	}

	for i, snap := range ep.SnapshotsSince(before) {
		payload, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO episode_snapshots (id, episode_id, seq, day_of_illness, recorded_at, payload)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			snap.ID, id, before+i, snap.DayOfIllness, formatTime(snap.RecordedAt), string(payload),
		); err != nil {
			return nil, fmt.Errorf("insert snapshot: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE episodes SET status = ?, resolved_at = ? WHERE id = ?`,
		string(ep.State()), formatTimePtr(ep.ResolvedAt()), id,
	); err != nil {
		return nil, fmt.Errorf("update episode: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ep, nil
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SQLiteRepository) load(ctx context.Context, q sqlQuerier, id string) (*episode.Episode, error) {
	var (
		rec        episode.Record
		status     string
		startedAt  string
		resolvedAt sql.NullString
		medical    string
		exposure   string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, patient_id, status, started_at, resolved_at, medical_history, exposure_history
		 FROM episodes WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.PatientID, &status, &startedAt, &resolvedAt, &medical, &exposure)
	if err == sql.ErrNoRows {
		return nil, tracking.ErrEpisodeNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Status = episode.State(status)
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if resolvedAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse resolved_at: %w", err)
		}
		rec.ResolvedAt = &at
	}
	if err := json.Unmarshal([]byte(medical), &rec.MedicalHistory); err != nil {
		return nil, fmt.Errorf("unmarshal medical history: %w", err)
	}
	if err := json.Unmarshal([]byte(exposure), &rec.ExposureHistory); err != nil {
		return nil, fmt.Errorf("unmarshal exposure history: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT payload FROM episode_snapshots WHERE episode_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rec.Snapshots = []episode.Snapshot{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var snap episode.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		rec.Snapshots = append(rec.Snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return episode.Restore(rec)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

var _ tracking.Repository = (*SQLiteRepository)(nil)
