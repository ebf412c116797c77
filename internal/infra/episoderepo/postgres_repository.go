package episoderepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS episodes (
	id               TEXT PRIMARY KEY,
	patient_id       TEXT NOT NULL,
	status           TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	resolved_at      TIMESTAMPTZ,
	medical_history  JSONB NOT NULL,
	exposure_history JSONB NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS episodes_one_active_per_patient
	ON episodes (patient_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS episode_snapshots (
	id             TEXT PRIMARY KEY,
	episode_id     TEXT NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
	seq            INTEGER NOT NULL,
	day_of_illness INTEGER NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL,
	payload        JSONB NOT NULL,
	UNIQUE (episode_id, seq)
);
`

const uniqueViolation = "23505"

// PostgresRepository implements tracking.Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the episode tables when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, postgresSchema)
	return err
}

func (r *PostgresRepository) Create(ctx context.Context, ep *episode.Episode) error {
	medical, err := json.Marshal(ep.MedicalHistory())
	if err != nil {
		return err
	}
	exposure, err := json.Marshal(ep.ExposureHistory())
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO episodes (id, patient_id, status, started_at, resolved_at, medical_history, exposure_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ep.ID(), ep.PatientID(), string(ep.State()), ep.StartedAt(), ep.ResolvedAt(), medical, exposure)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return tracking.ErrActiveEpisodeExists
	}
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*episode.Episode, error) {
	return r.load(ctx, r.pool, id, false)
}

func (r *PostgresRepository) FindActiveByPatient(ctx context.Context, patientID string) (*episode.Episode, bool, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM episodes
		WHERE patient_id = $1 AND status = 'active'
		LIMIT 1
	`, patientID).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	ep, err := r.load(ctx, r.pool, id, false)
	if err != nil {
		return nil, false, err
	}
	return ep, true, nil
}

func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID string) ([]*episode.Episode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM episodes
		WHERE patient_id = $1
		ORDER BY started_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]*episode.Episode, 0, len(ids))
	for _, id := range ids {
		ep, err := r.load(ctx, r.pool, id, false)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// Update locks the episode row for the duration of fn and writes the
// snapshots fn appended plus the episode status in the same transaction.
func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(ep *episode.Episode) error) (*episode.Episode, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ep, err := r.load(ctx, tx, id, true)
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
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO episode_snapshots (id, episode_id, seq, day_of_illness, recorded_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, snap.ID, id, before+i, snap.DayOfIllness, snap.RecordedAt, payload); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE episodes SET status = $1, resolved_at = $2 WHERE id = $3
	`, string(ep.State()), ep.ResolvedAt(), id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ep, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PostgresRepository) load(ctx context.Context, q querier, id string, forUpdate bool) (*episode.Episode, error) {
	query := `
		SELECT id, patient_id, status, started_at, resolved_at, medical_history, exposure_history
		FROM episodes
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var (
		rec        episode.Record
		status     string
		resolvedAt *time.Time
		medical    []byte
		exposure   []byte
	)
	if err := q.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.PatientID, &status, &rec.StartedAt, &resolvedAt, &medical, &exposure); err != nil {
		if err == pgx.ErrNoRows {
			return nil, tracking.ErrEpisodeNotFound
		}
		return nil, err
	}
	rec.Status = episode.State(status)
	rec.ResolvedAt = resolvedAt
	if err := json.Unmarshal(medical, &rec.MedicalHistory); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exposure, &rec.ExposureHistory); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT payload FROM episode_snapshots
		WHERE episode_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, err
	}
	rec.Snapshots = make([]episode.Snapshot, 0, len(payloads))
	for _, raw := range payloads {
		var snap episode.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, err
		}
		rec.Snapshots = append(rec.Snapshots, snap)
	}
	return episode.Restore(rec)
}

var _ tracking.Repository = (*PostgresRepository)(nil)
